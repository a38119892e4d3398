package aead

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ChaCha20Suite is the CHACHA20P suite: 32-byte key, a fresh random 12-byte
// nonce per call, tag carried inside the library's ciphertext form.
type ChaCha20Suite struct{}

func (ChaCha20Suite) ID() string  { return IDChaCha20P }
func (ChaCha20Suite) KeyLen() int { return chacha20poly1305.KeySize }

func (ChaCha20Suite) Encrypt(key, plaintext, aad []byte) ([]byte, Params, error) {
	aeadCipher, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("aead: chacha20poly1305 init: %w", err)
	}

	nonce := make([]byte, aeadCipher.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("aead: generate nonce: %w", err)
	}

	ciphertext := aeadCipher.Seal(nil, nonce, plaintext, aad)
	return ciphertext, Params{"nonce": hex.EncodeToString(nonce)}, nil
}

func (ChaCha20Suite) Decrypt(key, ciphertext, aad []byte, params Params) ([]byte, error) {
	aeadCipher, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("aead: chacha20poly1305 init: %w", err)
	}

	nonceHex, ok := params["nonce"]
	if !ok {
		return nil, fmt.Errorf("aead: missing nonce param")
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return nil, fmt.Errorf("aead: decode nonce: %w", err)
	}

	plaintext, err := aeadCipher.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

var _ Suite = ChaCha20Suite{}
