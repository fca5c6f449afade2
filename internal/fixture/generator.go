package fixture

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const fileExt = ".md"

// Vault is the place fixture files are written to.
type Vault interface {
	// Root returns the directory the fixtures are written into.
	Root() string
	// EnsureRoot creates the final segment of Root if it does not exist.
	EnsureRoot() error
	// WriteFile creates or truncates name inside Root and writes data to it.
	WriteFile(name string, data []byte) error
}

type Generator struct {
	vault Vault
	log   *zap.Logger
}

func NewGenerator(vault Vault, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{vault: vault, log: log}
}

// Create writes params.Files fixture files into the vault, one at a time.
// The first failure stops the run; files written before it are left in place.
func (g *Generator) Create(ctx context.Context, params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}

	g.log.Info("generating fixtures",
		zap.String("dir", g.vault.Root()),
		zap.Int("files", params.Files),
		zap.Int("items", params.Items),
		zap.Int("task_every", params.TaskEvery),
	)

	if err := g.vault.EnsureRoot(); err != nil {
		return errors.Wrapf(err, "prepare %s", g.vault.Root())
	}

	for i := 1; i <= params.Files; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		basename := Basename(params.Prefix, i)
		content, err := Content(basename, i, params.Items, params.TaskEvery)
		if err != nil {
			return err
		}

		name := basename + fileExt
		if err := g.vault.WriteFile(name, []byte(content)); err != nil {
			return errors.Wrapf(err, "write %s", name)
		}
		g.log.Debug("fixture written", zap.String("name", name), zap.Int("bytes", len(content)))
	}

	g.log.Info("fixtures generated", zap.String("dir", g.vault.Root()), zap.Int("files", params.Files))
	return nil
}
