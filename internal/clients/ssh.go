package clients

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type SFTPConfig struct {
	Host string
	Port int
	User string
	Pass string

	PkeyBytes []byte
	PkeyPath  string
	PkeyPass  string // Optional, if private key is created with a passphrase

	Timeout time.Duration
}

func (c *SFTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

type SFTPClient struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

func NewSFTPClient(cfg *SFTPConfig) (*SFTPClient, error) {
	authMethods, err := getAuthsMethods(cfg.Pass, cfg.PkeyBytes, cfg.PkeyPath, cfg.PkeyPass)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // fixture targets are throwaway hosts
		Timeout:         cfg.Timeout,
	}

	sshClient, err := ssh.Dial("tcp", cfg.Addr(), config)
	if err != nil {
		return nil, errors.Wrapf(err, "ssh dial %s", cfg.Addr())
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, errors.Wrap(err, "open sftp session")
	}

	return &SFTPClient{
		sshClient:  sshClient,
		sftpClient: sftpClient,
	}, nil
}

func (s *SFTPClient) SFTPClient() *sftp.Client {
	return s.sftpClient
}

func (s *SFTPClient) Close() error {
	var err error
	if s.sftpClient != nil {
		err = s.sftpClient.Close()
	}
	if s.sshClient != nil {
		if sshErr := s.sshClient.Close(); err == nil {
			err = sshErr
		}
	}
	return err
}

// WaitReady polls until the sshd behind cfg accepts an SFTP session or ctx is done.
func WaitReady(ctx context.Context, cfg *SFTPConfig, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		client, err := NewSFTPClient(cfg)
		if err == nil {
			return client.Close()
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(err, "sshd not ready on %s", cfg.Addr())
		case <-ticker.C:
		}
	}
}

// internal

func isPasswordProtectedPrivateKey(key []byte) bool {
	_, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		return errors.As(err, &missing)
	}
	return false
}

func getSigner(key []byte, passphrase string) (ssh.Signer, error) {
	if isPasswordProtectedPrivateKey(key) {
		if passphrase == "" {
			return nil, &ssh.PassphraseMissingError{}
		}
		return ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(key)
}

// Authentication with password or private_key+optional(passphrase)
func getAuthsMethods(password string, privateKeyBytes []byte, privateKeyFilename, privateKeyPassphrase string) ([]ssh.AuthMethod, error) {
	if password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}

	var key []byte
	switch {
	case privateKeyBytes != nil:
		key = privateKeyBytes
	case privateKeyFilename != "":
		var err error
		key, err = os.ReadFile(privateKeyFilename)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("neither password, pkey-bytes nor pkey-path are defined")
	}

	signer, err := getSigner(key, privateKeyPassphrase)
	if err != nil {
		return nil, err
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}
