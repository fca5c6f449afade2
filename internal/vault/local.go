package vault

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Local is a vault directory on the local filesystem.
// A relative root is resolved against the working directory of the process.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: filepath.Clean(root)}
}

func (l *Local) Root() string {
	return l.root
}

// EnsureRoot creates only the last path segment, a missing parent is an error.
func (l *Local) EnsureRoot() error {
	err := os.Mkdir(l.root, dirPerm)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return err
	}
	fi, statErr := os.Stat(l.root)
	if statErr != nil {
		return statErr
	}
	if !fi.IsDir() {
		return errors.Errorf("not a directory: %s", l.root)
	}
	return nil
}

func (l *Local) WriteFile(name string, data []byte) (err error) {
	f, err := os.OpenFile(filepath.Join(l.root, name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	_, err = f.Write(data)
	return err
}
