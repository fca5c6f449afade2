package vault

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
)

// SFTP is a vault directory on a remote host, reached through an open SFTP session.
// The session is owned by the caller.
type SFTP struct {
	client *sftp.Client
	root   string
}

func NewSFTP(client *sftp.Client, root string) *SFTP {
	return &SFTP{
		client: client,
		root:   filepath.ToSlash(filepath.Clean(root)),
	}
}

func (s *SFTP) Root() string {
	return s.root
}

func (s *SFTP) EnsureRoot() error {
	fi, err := s.client.Stat(s.root)
	if err == nil {
		if !fi.IsDir() {
			return errors.Errorf("not a directory: %s", s.root)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "stat remote")
	}
	if err := s.client.Mkdir(s.root); err != nil {
		return errors.Wrap(err, "mkdir remote")
	}
	return nil
}

func (s *SFTP) WriteFile(name string, data []byte) (err error) {
	remotePath := filepath.ToSlash(filepath.Join(s.root, name))
	f, err := s.client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return errors.Wrap(err, "create remote")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if _, err = f.Write(data); err != nil {
		return errors.Wrap(err, "write remote")
	}
	return nil
}
