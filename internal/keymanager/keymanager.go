// Package keymanager owns the master secret and signing key, and derives
// per-session and per-segment key material from them via HKDF-SHA256.
package keymanager

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const saltLen = 16

// SessionKeys is the per-process-start key material derived from the
// master secret. The signing key is long-lived across sessions; session_key
// and chain_hmac_key are scoped to this one session.
type SessionKeys struct {
	SessionID    string
	SessionKey   [32]byte
	ChainHMACKey [32]byte
	SigningKey   ed25519.PrivateKey
}

// KeyManager loads the master secret and signing key once, then derives
// session and segment key material on demand.
type KeyManager struct {
	store  SecretStore
	master []byte
	signer ed25519.PrivateKey
}

// Load opens store and reads (creating if absent) the master secret and
// signing key.
func Load(store SecretStore) (*KeyManager, error) {
	master, err := store.LoadOrCreateMaster()
	if err != nil {
		return nil, err
	}
	signer, err := store.LoadOrCreateSigningKey()
	if err != nil {
		return nil, err
	}
	return &KeyManager{store: store, master: master, signer: signer}, nil
}

// SigningPublicKey returns the long-lived Ed25519 public key.
func (km *KeyManager) SigningPublicKey() ed25519.PublicKey {
	return km.signer.Public().(ed25519.PublicKey)
}

// NewSession generates a fresh session salt and derives session_key and
// chain_hmac_key from the master secret.
func (km *KeyManager) NewSession() (SessionKeys, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return SessionKeys{}, fmt.Errorf("keymanager: generate session salt: %w", err)
	}
	return km.deriveSession(salt)
}

func (km *KeyManager) deriveSession(salt []byte) (SessionKeys, error) {
	sessionKey, err := hkdfDerive(km.master, salt, []byte("session-key"), 32)
	if err != nil {
		return SessionKeys{}, err
	}
	chainKey, err := hkdfDerive(km.master, salt, []byte("hmac-chain"), 32)
	if err != nil {
		return SessionKeys{}, err
	}

	sk := SessionKeys{SessionID: hex.EncodeToString(salt), SigningKey: km.signer}
	copy(sk.SessionKey[:], sessionKey)
	copy(sk.ChainHMACKey[:], chainKey)
	return sk, nil
}

// DeriveSessionByID re-derives SessionKeys for a known session id (its
// 16-byte salt hex-encoded). Used by the verifier, which only ever sees the
// session id on the wire.
func (km *KeyManager) DeriveSessionByID(sessionID string) (SessionKeys, error) {
	salt, err := hex.DecodeString(sessionID)
	if err != nil {
		return SessionKeys{}, fmt.Errorf("keymanager: decode session id: %w", err)
	}
	return km.deriveSession(salt)
}

// RatchetSegmentKey derives the next segment key from the current ratchet
// key, the previous segment's chain-tag prefix (or 16 zero bytes for the
// first segment), and the suite id, per the per-segment ratchet:
//
//	seg_key = HKDF-SHA256(current_key, prev_tag, "segment-key:"+suite_id, keyLen)
func RatchetSegmentKey(currentKey, prevTag []byte, suiteID string, keyLen int) ([]byte, error) {
	info := []byte("segment-key:" + suiteID)
	return hkdfDerive(currentKey, prevTag, info, keyLen)
}

func hkdfDerive(ikm, salt, info []byte, keyLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, keyLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("keymanager: hkdf derive: %w", err)
	}
	return out, nil
}
