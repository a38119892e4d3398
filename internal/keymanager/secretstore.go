package keymanager

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"inputguard/internal/security"
)

// MasterSecretLen is the size of the master secret in bytes.
const MasterSecretLen = 32

// ErrCorruptSecret is returned when a stored secret has the wrong length.
var ErrCorruptSecret = errors.New("keymanager: stored secret has unexpected length")

// SecretStore loads or creates the master secret and the long-lived Ed25519
// signing key. Implementations decide how the material is actually held at
// rest; the file-backed implementation is the default, a TPM-backed one is
// offered alongside it (see the tpmstore subpackage) — never required.
type SecretStore interface {
	// LoadOrCreateMaster returns the 32-byte master secret, creating and
	// persisting a fresh one on first use.
	LoadOrCreateMaster() ([]byte, error)
	// LoadOrCreateSigningKey returns the long-lived Ed25519 signing key,
	// creating and persisting a fresh one on first use.
	LoadOrCreateSigningKey() (ed25519.PrivateKey, error)
}

// FileSecretStore is the default SecretStore: raw key material under a
// directory with owner-only permissions, written atomically and checked for
// insecure permissions on every read.
type FileSecretStore struct {
	Dir string
}

// NewFileSecretStore returns a FileSecretStore rooted at dir, creating dir
// with mode 0700 if it does not exist.
func NewFileSecretStore(dir string) (*FileSecretStore, error) {
	if err := security.EnsureSecureDir(dir); err != nil {
		return nil, fmt.Errorf("keymanager: create secrets dir: %w", err)
	}
	return &FileSecretStore{Dir: dir}, nil
}

func (s *FileSecretStore) masterPath() string  { return filepath.Join(s.Dir, "master.key") }
func (s *FileSecretStore) signingPath() string { return filepath.Join(s.Dir, "signing.key") }

func (s *FileSecretStore) LoadOrCreateMaster() ([]byte, error) {
	data, err := security.ReadSecureFile(s.masterPath(), MasterSecretLen)
	if err == nil {
		if len(data) != MasterSecretLen {
			security.Wipe(data)
			return nil, fmt.Errorf("%w: %s", ErrCorruptSecret, s.masterPath())
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keymanager: read master secret: %w", err)
	}

	secret := make([]byte, MasterSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("keymanager: generate master secret: %w", err)
	}
	if err := security.WriteSecretFile(s.masterPath(), secret); err != nil {
		return nil, fmt.Errorf("keymanager: persist master secret: %w", err)
	}
	return secret, nil
}

func (s *FileSecretStore) LoadOrCreateSigningKey() (ed25519.PrivateKey, error) {
	data, err := security.ReadSecureFile(s.signingPath(), 0)
	if err == nil {
		key, parseErr := parseSigningKey(data)
		security.Wipe(data)
		return key, parseErr
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keymanager: read signing key: %w", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keymanager: generate signing key: %w", err)
	}
	seed := priv.Seed()
	if err := security.WriteSecretFile(s.signingPath(), seed); err != nil {
		return nil, fmt.Errorf("keymanager: persist signing key: %w", err)
	}
	return priv, nil
}

var _ SecretStore = (*FileSecretStore)(nil)
