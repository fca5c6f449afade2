package fixture

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dirVault is a minimal local vault, the real ones live in internal/vault.
type dirVault struct {
	root   string
	writes []string
	failAt string
}

func (d *dirVault) Root() string { return d.root }

func (d *dirVault) EnsureRoot() error {
	err := os.Mkdir(d.root, 0o755)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	return err
}

func (d *dirVault) WriteFile(name string, data []byte) error {
	if name == d.failAt {
		return errors.New("disk full")
	}
	d.writes = append(d.writes, name)
	return os.WriteFile(filepath.Join(d.root, name), data, 0o644)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestGenerator_Create(t *testing.T) {
	v := &dirVault{root: filepath.Join(t.TempDir(), "Stress Test")}
	params := Params{Prefix: DefaultPrefix, Files: 3, Items: 5, TaskEvery: 2}

	require.NoError(t, NewGenerator(v, nil).Create(context.Background(), params))

	assert.Equal(t, []string{
		"tasks-stress-test-1.md",
		"tasks-stress-test-2.md",
		"tasks-stress-test-3.md",
	}, listDir(t, v.root))

	for i := 1; i <= params.Files; i++ {
		basename := Basename(params.Prefix, i)
		want, err := Content(basename, i, params.Items, params.TaskEvery)
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(v.root, basename+".md"))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestGenerator_WritesInIndexOrder(t *testing.T) {
	v := &dirVault{root: t.TempDir()}
	params := Params{Prefix: "p", Files: 12, Items: 1, TaskEvery: 1}

	require.NoError(t, NewGenerator(v, nil).Create(context.Background(), params))

	require.Len(t, v.writes, 12)
	assert.Equal(t, "p-1.md", v.writes[0])
	assert.Equal(t, "p-10.md", v.writes[9])
	assert.Equal(t, "p-12.md", v.writes[11])
}

func TestGenerator_ZeroFilesStillCreatesDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "fresh")
	v := &dirVault{root: root}

	require.NoError(t, NewGenerator(v, nil).Create(context.Background(), Params{Prefix: "p", TaskEvery: 1}))

	fi, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.Empty(t, listDir(t, root))
}

func TestGenerator_StopsAtFirstWriteError(t *testing.T) {
	v := &dirVault{root: t.TempDir(), failAt: "p-2.md"}
	params := Params{Prefix: "p", Files: 4, Items: 1, TaskEvery: 1}

	err := NewGenerator(v, nil).Create(context.Background(), params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write p-2.md")
	assert.Equal(t, []string{"p-1.md"}, listDir(t, v.root))
}

func TestGenerator_InvalidParamsTouchNothing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "untouched")
	v := &dirVault{root: root}

	err := NewGenerator(v, nil).Create(context.Background(), Params{Prefix: "p", Files: 1})
	require.True(t, errors.Is(err, ErrInvalidStride))

	_, statErr := os.Stat(root)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerator_CancelledContext(t *testing.T) {
	v := &dirVault{root: t.TempDir()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewGenerator(v, nil).Create(ctx, Params{Prefix: "p", Files: 3, Items: 1, TaskEvery: 1})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, v.writes)
}
