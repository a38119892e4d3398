package aead

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChaCha20RoundTrip(t *testing.T) {
	s := ChaCha20Suite{}
	key := make([]byte, s.KeyLen())
	_, _ = rand.Read(key)
	aad := []byte(`{"ver":1}`)
	pt := []byte("hello world, padded out")

	ct, params, err := s.Encrypt(key, pt, aad)
	require.NoError(t, err)
	got, err := s.Decrypt(key, ct, aad, params)
	require.NoError(t, err)
	assert.Equal(t, pt, got)
}

func TestChaCha20TamperDetected(t *testing.T) {
	s := ChaCha20Suite{}
	key := make([]byte, s.KeyLen())
	_, _ = rand.Read(key)
	aad := []byte("aad")
	ct, params, err := s.Encrypt(key, []byte("plaintext"), aad)
	require.NoError(t, err)
	ct[0] ^= 0xff
	_, err = s.Decrypt(key, ct, aad, params)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAESSIVRoundTrip(t *testing.T) {
	s := AESSIVSuite{}
	key := make([]byte, s.KeyLen())
	_, _ = rand.Read(key)
	aad := []byte(`{"ver":1,"suite":"AES_SIV"}`)
	pt := make([]byte, 256)
	copy(pt, []byte("a segment's worth of serialized records"))

	ct, params, err := s.Encrypt(key, pt, aad)
	require.NoError(t, err)
	got, err := s.Decrypt(key, ct, aad, params)
	require.NoError(t, err)
	assert.Equal(t, pt, got)
}

func TestAESSIVTamperDetected(t *testing.T) {
	s := AESSIVSuite{}
	key := make([]byte, s.KeyLen())
	_, _ = rand.Read(key)
	aad := []byte("aad")
	ct, params, err := s.Encrypt(key, []byte("some plaintext bytes"), aad)
	require.NoError(t, err)
	ct[0] ^= 0xff
	_, err = s.Decrypt(key, ct, aad, params)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAESSIVDeterministicSameInputs(t *testing.T) {
	s := AESSIVSuite{}
	key := make([]byte, s.KeyLen())
	_, _ = rand.Read(key)
	aad := []byte("aad")
	pt := []byte("repeatable plaintext")

	ct1, _, err := s.Encrypt(key, pt, aad)
	require.NoError(t, err)
	ct2, _, err := s.Encrypt(key, pt, aad)
	require.NoError(t, err)
	assert.Equal(t, ct1, ct2, "AES_SIV is nonce-less and must be deterministic for identical inputs")
}

func TestByID(t *testing.T) {
	s, ok := ByID(IDChaCha20P)
	require.True(t, ok)
	assert.Equal(t, IDChaCha20P, s.ID())

	s, ok = ByID(IDAESSIV)
	require.True(t, ok)
	assert.Equal(t, IDAESSIV, s.ID())

	_, ok = ByID("unknown")
	assert.False(t, ok)
}
