package clients

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// KeyPair is a throwaway ed25519 identity used to log into a helper sshd.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey

	sshPublicKey ssh.PublicKey
}

func GenerateEd25519Keys() (*KeyPair, error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate ed25519 key")
	}
	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		PublicKey:    pubKey,
		PrivateKey:   privKey,
		sshPublicKey: sshPubKey,
	}, nil
}

// AuthorizedKey returns the public key in authorized_keys format, without the trailing newline.
func (k *KeyPair) AuthorizedKey() string {
	return string(bytes.TrimSpace(ssh.MarshalAuthorizedKey(k.sshPublicKey)))
}

func (k *KeyPair) PrivateKeyToPEM() ([]byte, error) {
	keyBytes, err := x509.MarshalPKCS8PrivateKey(k.PrivateKey)
	if err != nil {
		return nil, err
	}

	keyBuf := &bytes.Buffer{}
	err = pem.Encode(keyBuf, &pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes})
	if err != nil {
		return nil, err
	}

	return keyBuf.Bytes(), nil
}
