// Package tpmstore implements keymanager.SecretStore by sealing the master
// secret to the platform TPM instead of writing it to a plain file. It is
// offered alongside the file-backed default, never required by it.
package tpmstore

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
)

const masterSecretLen = 32

// devicePaths are tried in order; the first one that opens wins.
var devicePaths = []string{"/dev/tpmrm0", "/dev/tpm0"}

// TPMSecretStore seals the 32-byte master secret under the TPM's storage
// hierarchy primary key. The Ed25519 signing key is kept in the same
// directory as a plain file — only the master secret benefits from sealing,
// since it is the root of the session/segment key hierarchy.
type TPMSecretStore struct {
	Dir string
}

// New returns a TPMSecretStore rooted at dir, creating dir (mode 0700) if
// needed.
func New(dir string) (*TPMSecretStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("tpmstore: create dir: %w", err)
	}
	return &TPMSecretStore{Dir: dir}, nil
}

func (s *TPMSecretStore) sealedPath() string { return filepath.Join(s.Dir, "master.key.tpm") }
func (s *TPMSecretStore) signingPath() string { return filepath.Join(s.Dir, "signing.key") }

// Available reports whether a TPM device is present and opens successfully.
func Available() bool {
	for _, p := range devicePaths {
		f, err := os.OpenFile(p, os.O_RDWR, 0)
		if err == nil {
			f.Close()
			return true
		}
	}
	return false
}

func openDevice() (transport.TPMCloser, error) {
	var lastErr error
	for _, p := range devicePaths {
		tp, err := transport.OpenTPM(p)
		if err == nil {
			return tp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("tpmstore: no TPM device available: %w", lastErr)
}

func (s *TPMSecretStore) LoadOrCreateMaster() ([]byte, error) {
	if data, err := os.ReadFile(s.sealedPath()); err == nil {
		return s.unseal(data)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("tpmstore: read sealed secret: %w", err)
	}

	secret := make([]byte, masterSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("tpmstore: generate master secret: %w", err)
	}
	sealed, err := s.seal(secret)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.sealedPath(), sealed, 0o600); err != nil {
		return nil, fmt.Errorf("tpmstore: persist sealed secret: %w", err)
	}
	return secret, nil
}

// seal wraps data under a fresh TPM primary key in the owner hierarchy,
// using TPM2_Create with a keyed-hash (sealed-data) object template.
func (s *TPMSecretStore) seal(data []byte) ([]byte, error) {
	tp, err := openDevice()
	if err != nil {
		return nil, err
	}
	defer tp.Close()

	primary, err := tpm2.CreatePrimary{
		PrimaryHandle: tpm2.TPMRHOwner,
		InPublic:      tpm2.New2B(tpm2.RSASRKTemplate),
	}.Execute(tp)
	if err != nil {
		return nil, fmt.Errorf("tpmstore: create primary: %w", err)
	}
	defer func() {
		tpm2.FlushContext{FlushHandle: primary.ObjectHandle}.Execute(tp)
	}()

	created, err := tpm2.Create{
		ParentHandle: tpm2.AuthHandle{Handle: primary.ObjectHandle, Auth: tpm2.PasswordAuth(nil)},
		InSensitive: tpm2.TPM2BSensitiveCreate{
			Sensitive: &tpm2.TPMSSensitiveCreate{
				Data: tpm2.NewTPMUSensitiveCreate(&tpm2.TPM2BSensitiveData{Buffer: data}),
			},
		},
		InPublic: tpm2.New2B(tpm2.TPMTPublic{
			Type:    tpm2.TPMAlgKeyedHash,
			NameAlg: tpm2.TPMAlgSHA256,
			ObjectAttributes: tpm2.TPMAObject{
				FixedTPM:     true,
				FixedParent:  true,
				UserWithAuth: true,
			},
		}),
	}.Execute(tp)
	if err != nil {
		return nil, fmt.Errorf("tpmstore: seal: %w", err)
	}

	pub := created.OutPublic.Bytes()
	priv := created.OutPrivate.Buffer
	return encodeSealedBlob(pub, priv), nil
}

func (s *TPMSecretStore) unseal(blob []byte) ([]byte, error) {
	pubBytes, privBytes, err := decodeSealedBlob(blob)
	if err != nil {
		return nil, err
	}

	tp, err := openDevice()
	if err != nil {
		return nil, err
	}
	defer tp.Close()

	primary, err := tpm2.CreatePrimary{
		PrimaryHandle: tpm2.TPMRHOwner,
		InPublic:      tpm2.New2B(tpm2.RSASRKTemplate),
	}.Execute(tp)
	if err != nil {
		return nil, fmt.Errorf("tpmstore: create primary: %w", err)
	}
	defer func() {
		tpm2.FlushContext{FlushHandle: primary.ObjectHandle}.Execute(tp)
	}()

	outPublic := tpm2.BytesAs2B[tpm2.TPMTPublic](pubBytes)

	loaded, err := tpm2.Load{
		ParentHandle: tpm2.AuthHandle{Handle: primary.ObjectHandle, Auth: tpm2.PasswordAuth(nil)},
		InPublic:     outPublic,
		InPrivate:    tpm2.TPM2BPrivate{Buffer: privBytes},
	}.Execute(tp)
	if err != nil {
		return nil, fmt.Errorf("tpmstore: load sealed object: %w", err)
	}
	defer func() {
		tpm2.FlushContext{FlushHandle: loaded.ObjectHandle}.Execute(tp)
	}()

	unsealed, err := tpm2.Unseal{
		ItemHandle: tpm2.AuthHandle{Handle: loaded.ObjectHandle, Auth: tpm2.PasswordAuth(nil)},
	}.Execute(tp)
	if err != nil {
		return nil, fmt.Errorf("tpmstore: unseal: %w", err)
	}
	return unsealed.OutData.Buffer, nil
}

func (s *TPMSecretStore) LoadOrCreateSigningKey() (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(s.signingPath())
	if err == nil {
		if len(data) == ed25519.SeedSize {
			return ed25519.NewKeyFromSeed(data), nil
		}
		return ed25519.PrivateKey(data), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("tpmstore: read signing key: %w", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("tpmstore: generate signing key: %w", err)
	}
	if err := os.WriteFile(s.signingPath(), priv.Seed(), 0o600); err != nil {
		return nil, fmt.Errorf("tpmstore: persist signing key: %w", err)
	}
	return priv, nil
}
