package cmd

import (
	"context"
	"time"

	"github.com/hashmap-kz/stressgen/internal/clients"
	"github.com/hashmap-kz/stressgen/internal/vault"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const keyPassword = "password"

type SFTPOptions struct {
	Host          string
	Port          int
	User          string
	Password      string
	KeyPath       string
	KeyPassphrase string
	Timeout       time.Duration
}

func newSFTPCmd(ctx context.Context, env *runEnv) *cobra.Command {
	opts := SFTPOptions{}
	cmd := &cobra.Command{
		Use:   "sftp",
		Short: "Generate fixtures into a vault on a remote host over SFTP",
		Long: `
Example:

Write 50 files into a vault on a remote host, authenticating with a key:

stressgen sftp \
  --host notes.internal \
  --user obsidian \
  --key-path ~/.ssh/id_ed25519 \
  --dir "/home/obsidian/vault/Stress Test" \
  --files 50
`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			defer env.syncLog()
			opts.Password = env.v.GetString(keyPassword)
			return runSFTP(ctx, env, &opts)
		},
	}
	cmd.Flags().StringVar(&opts.Host, "host", "", "SSH host (required)")
	cmd.Flags().IntVar(&opts.Port, "port", 22, "SSH port")
	cmd.Flags().StringVar(&opts.User, "user", "root", "SSH user")
	cmd.Flags().StringVar(&opts.Password, keyPassword, "", "SSH password (or "+envPrefix+"_PASSWORD)")
	cmd.Flags().StringVar(&opts.KeyPath, "key-path", "", "Path to a private key")
	cmd.Flags().StringVar(&opts.KeyPassphrase, "key-passphrase", "", "Passphrase of the private key")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "SSH connect timeout")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func runSFTP(ctx context.Context, env *runEnv, opts *SFTPOptions) error {
	env.log.Info("init SFTP client", zap.String("host", opts.Host), zap.Int("port", opts.Port))
	client, err := clients.NewSFTPClient(&clients.SFTPConfig{
		Host:     opts.Host,
		Port:     opts.Port,
		User:     opts.User,
		Pass:     opts.Password,
		PkeyPath: opts.KeyPath,
		PkeyPass: opts.KeyPassphrase,
		Timeout:  opts.Timeout,
	})
	if err != nil {
		return err
	}
	defer closeSFTP(env.log, client)

	return generate(ctx, env, vault.NewSFTP(client.SFTPClient(), env.cfg.Dir))
}

func closeSFTP(log *zap.Logger, client *clients.SFTPClient) {
	if err := client.Close(); err != nil {
		log.Error("error closing SFTP client", zap.Error(err))
	} else {
		log.Debug("SFTP connection closed")
	}
}
