package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"fmt"
)

// aesSIVKeyLen is two AES-256 halves: one for S2V (CMAC), one for CTR.
const aesSIVKeyLen = 64

// AESSIVSuite is the AES_SIV suite: 64-byte key, no nonce, RFC 5297
// S2V+CTR construction built on stdlib crypto/aes + crypto/cipher. The
// 16-byte synthetic IV doubles as the authentication tag and is appended to
// the ciphertext.
type AESSIVSuite struct{}

func (AESSIVSuite) ID() string  { return IDAESSIV }
func (AESSIVSuite) KeyLen() int { return aesSIVKeyLen }

func (AESSIVSuite) Encrypt(key, plaintext, aad []byte) ([]byte, Params, error) {
	if len(key) != aesSIVKeyLen {
		return nil, nil, fmt.Errorf("aead: AES_SIV key must be %d bytes, got %d", aesSIVKeyLen, len(key))
	}
	k1, k2 := key[:aesSIVKeyLen/2], key[aesSIVKeyLen/2:]

	v, err := s2v(k1, aad, plaintext)
	if err != nil {
		return nil, nil, fmt.Errorf("aead: s2v: %w", err)
	}

	block, err := aes.NewCipher(k2)
	if err != nil {
		return nil, nil, fmt.Errorf("aead: AES_SIV cipher init: %w", err)
	}
	stream := cipher.NewCTR(block, ctrIV(v))

	ciphertext := make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)

	return append(ciphertext, v...), Params{}, nil
}

func (AESSIVSuite) Decrypt(key, ciphertext, aad []byte, _ Params) ([]byte, error) {
	if len(key) != aesSIVKeyLen {
		return nil, fmt.Errorf("aead: AES_SIV key must be %d bytes, got %d", aesSIVKeyLen, len(key))
	}
	if len(ciphertext) < aesBlockSize {
		return nil, fmt.Errorf("aead: AES_SIV ciphertext too short")
	}
	k1, k2 := key[:aesSIVKeyLen/2], key[aesSIVKeyLen/2:]

	tag := ciphertext[len(ciphertext)-aesBlockSize:]
	ct := ciphertext[:len(ciphertext)-aesBlockSize]

	block, err := aes.NewCipher(k2)
	if err != nil {
		return nil, fmt.Errorf("aead: AES_SIV cipher init: %w", err)
	}
	stream := cipher.NewCTR(block, ctrIV(tag))

	plaintext := make([]byte, len(ct))
	stream.XORKeyStream(plaintext, ct)

	expected, err := s2v(k1, aad, plaintext)
	if err != nil {
		return nil, fmt.Errorf("aead: s2v: %w", err)
	}
	if !hmac.Equal(expected, tag) {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// ctrIV zeroes the top bit of the two 32-bit words inside v that RFC 5297
// requires masked before use as a CTR counter, per its "zeroing out" step.
func ctrIV(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	out[8] &= 0x7f
	out[12] &= 0x7f
	return out
}

var _ Suite = AESSIVSuite{}
