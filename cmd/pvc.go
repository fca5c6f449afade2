package cmd

import (
	"context"
	"path"
	"time"

	"github.com/hashmap-kz/stressgen/internal/clients"
	"github.com/hashmap-kz/stressgen/internal/kube"
	"github.com/hashmap-kz/stressgen/internal/vault"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/kubernetes"
)

const (
	cleanupTimeout = 10 * time.Second
	dialTimeout    = 10 * time.Second
)

type PVCOptions struct {
	PVC          string
	MountPath    string
	Image        string
	StartTimeout time.Duration
}

func newPVCCmd(ctx context.Context, env *runEnv) *cobra.Command {
	configFlags := genericclioptions.NewConfigFlags(true)
	opts := PVCOptions{}
	cmd := &cobra.Command{
		Use:   "pvc",
		Short: "Generate fixtures into a vault stored on a PVC via a temporary pod",
		Long: `
Starts a helper pod with sshd on the node the PVC is attached to, writes the
fixtures over SFTP and removes the pod afterwards. --dir is resolved against
--mount-path.

Example:

stressgen pvc \
  --namespace notes \
  --pvc obsidian-vault \
  --mount-path /vault \
  --dir "Tasks-Demo/Stress Test"
`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			defer env.syncLog()
			return runPVC(ctx, env, configFlags, &opts)
		},
	}
	cmd.Flags().StringVar(&opts.PVC, "pvc", "", "PVC name (required)")
	cmd.Flags().StringVar(&opts.MountPath, "mount-path", "", "Mount path inside the helper pod (required)")
	cmd.Flags().StringVar(&opts.Image, "image", kube.DefaultImage, "Helper pod image, must provide apk")
	cmd.Flags().DurationVar(&opts.StartTimeout, "start-timeout", 5*time.Minute, "How long to wait for the helper pod and sshd")
	for _, rf := range []string{"pvc", "mount-path"} {
		_ = cmd.MarkFlagRequired(rf)
	}
	configFlags.AddFlags(cmd.Flags())
	return cmd
}

func runPVC(ctx context.Context, env *runEnv, configFlags *genericclioptions.ConfigFlags, opts *PVCOptions) error {
	namespace, _, err := configFlags.ToRawKubeConfigLoader().Namespace()
	if err != nil {
		return errors.Wrap(err, "resolve namespace")
	}

	env.log.Info("init k8s client")
	restConfig, err := configFlags.ToRESTConfig()
	if err != nil {
		return errors.Wrap(err, "load kubeconfig")
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return err
	}

	keyPair, err := clients.GenerateEd25519Keys()
	if err != nil {
		return err
	}
	pkey, err := keyPair.PrivateKeyToPEM()
	if err != nil {
		return err
	}

	helper := kube.NewHelper(client, kube.Options{
		Namespace:     namespace,
		PVC:           opts.PVC,
		MountPath:     opts.MountPath,
		AuthorizedKey: keyPair.AuthorizedKey(),
		Image:         opts.Image,
		StartTimeout:  opts.StartTimeout,
	}, env.log)
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := helper.Cleanup(cleanupCtx); err != nil {
			env.log.Error("cannot delete helper objects", zap.String("name", helper.Name()), zap.Error(err))
		} else {
			env.log.Info("helper objects deleted", zap.String("name", helper.Name()))
		}
	}()

	endpoint, err := helper.Start(ctx)
	if err != nil {
		return err
	}

	sftpConfig := helperSFTPConfig(endpoint, pkey)
	env.log.Info("waiting while SSHD is ready")
	waitCtx, cancel := context.WithTimeout(ctx, opts.StartTimeout)
	defer cancel()
	if err := clients.WaitReady(waitCtx, sftpConfig, 2*time.Second); err != nil {
		return err
	}

	sftpClient, err := clients.NewSFTPClient(sftpConfig)
	if err != nil {
		return err
	}
	defer closeSFTP(env.log, sftpClient)

	root := path.Join(opts.MountPath, env.cfg.Dir)
	return generate(ctx, env, vault.NewSFTP(sftpClient.SFTPClient(), root))
}

// helperSFTPConfig logs into the helper sshd as root with the throwaway key.
func helperSFTPConfig(endpoint *kube.Endpoint, pkey []byte) *clients.SFTPConfig {
	return &clients.SFTPConfig{
		Host:      endpoint.Host,
		Port:      endpoint.Port,
		User:      "root",
		PkeyBytes: pkey,
		Timeout:   dialTimeout,
	}
}
