// Package aead exposes the two interchangeable authenticated-encryption
// suites used by the segment writer and verifier behind one small
// interface.
package aead

import "errors"

// Suite ids, matching the header's "suite" wire value exactly.
const (
	IDChaCha20P = "CHACHA20P"
	IDAESSIV    = "AES_SIV"
)

// ErrSuiteUnavailable is returned when a suite is requested that this build
// does not support.
var ErrSuiteUnavailable = errors.New("aead: suite unavailable")

// ErrAuthenticationFailed is returned by Decrypt on tag/tamper mismatch.
var ErrAuthenticationFailed = errors.New("aead: authentication failed")

// Params carries suite-specific values that travel in the header alongside
// the ciphertext (e.g. CHACHA20P's nonce). Values are hex-encoded strings.
type Params map[string]string

// Suite is implemented by each AEAD construction.
type Suite interface {
	ID() string
	KeyLen() int
	Encrypt(key, plaintext, aad []byte) (ciphertext []byte, params Params, err error)
	Decrypt(key, ciphertext, aad []byte, params Params) (plaintext []byte, err error)
}

// ByID returns the suite for id, or (nil, false) if unavailable.
func ByID(id string) (Suite, bool) {
	switch id {
	case IDChaCha20P:
		return ChaCha20Suite{}, true
	case IDAESSIV:
		return AESSIVSuite{}, true
	default:
		return nil, false
	}
}
