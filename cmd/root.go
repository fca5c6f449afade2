package cmd

import (
	"context"
	"fmt"

	"github.com/hashmap-kz/stressgen/internal/fixture"
	"github.com/hashmap-kz/stressgen/internal/logger"
	"github.com/hashmap-kz/stressgen/internal/vault"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"k8s.io/cli-runtime/pkg/genericiooptions"
)

// runEnv is what every subcommand gets once flags and config are resolved.
type runEnv struct {
	v       *viper.Viper
	cfg     *Config
	log     *zap.Logger
	streams genericiooptions.IOStreams
}

func NewRootCmd(ctx context.Context, streams genericiooptions.IOStreams) *cobra.Command {
	env := &runEnv{v: newViper(), streams: streams}

	rootCmd := &cobra.Command{
		Use:   "stressgen",
		Short: "Generate Markdown task fixtures for stress-testing a vault",
		Long: `
Writes a fixed set of Markdown files, each with two headings followed by
list items, every n-th of them being a task. Existing files with the same
names are overwritten.

Run without arguments to generate the default set into
"` + fixture.DefaultDir + `".
`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.init(cmd)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			defer env.syncLog()
			return generate(ctx, env, vault.NewLocal(env.cfg.Dir))
		},
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})
	rootCmd.SetOut(streams.Out)
	rootCmd.SetErr(streams.ErrOut)

	addGenerateFlags(rootCmd)
	rootCmd.AddCommand(newSFTPCmd(ctx, env))
	rootCmd.AddCommand(newPVCCmd(ctx, env))
	return rootCmd
}

func (e *runEnv) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(e.v, cmd)
	if err != nil {
		return err
	}
	log, err := logger.New(e.streams.ErrOut, cfg.LogLevel)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.log = log
	return nil
}

// syncLog flushes the logger; RunE defers it so failed runs are flushed too.
func (e *runEnv) syncLog() {
	if e.log != nil {
		_ = e.log.Sync()
	}
}

func generate(ctx context.Context, env *runEnv, target fixture.Vault) error {
	gen := fixture.NewGenerator(target, env.log)
	if err := gen.Create(ctx, env.cfg.Params); err != nil {
		env.log.Error("fixture generation failed", zap.Error(err))
		return err
	}
	_, err := fmt.Fprintln(env.streams.Out, "Done")
	return err
}
