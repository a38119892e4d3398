package keymanager

import (
	"crypto/ed25519"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Errors returned when a signing key file doesn't match a supported format.
var (
	ErrInvalidKeyFormat = errors.New("keymanager: invalid signing key format")
	ErrUnsupportedKey   = errors.New("keymanager: unsupported key type (expected Ed25519)")
)

// parseSigningKey accepts a raw 32-byte seed, a raw 64-byte private key, or
// an OpenSSH-formatted Ed25519 private key.
func parseSigningKey(data []byte) (ed25519.PrivateKey, error) {
	if len(data) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(data), nil
	}
	if len(data) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(data), nil
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidKeyFormat
	}
	parsed, err := ssh.ParseRawPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("keymanager: parse OpenSSH signing key: %w", err)
	}
	switch k := parsed.(type) {
	case *ed25519.PrivateKey:
		return *k, nil
	case ed25519.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedKey, parsed)
	}
}
