package segment

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"inputguard/internal/canonjson"
)

// HeaderVersion is the only header format version this code understands.
const HeaderVersion = 1

// Header is the per-segment header, persisted alongside the encrypted body.
// Field order here matches the wire layout in json.Marshal's natural
// encounter order for readability; the signature and AAD forms are
// produced separately via canonjson and do not depend on this order.
type Header struct {
	Ver       int    `json:"ver"`
	Suite     string `json:"suite"`
	Session   string `json:"session"`
	PaddedLen int    `json:"padded_len"`
	HKDFInfo  string `json:"hkdf_info"`
	PrevTag   string `json:"prev_tag"`
	SignPub   string `json:"sign_pub"`
	Nonce     string `json:"nonce,omitempty"`
	ChainTag  string `json:"chain_tag"`
	Sig       string `json:"sig"`
}

// ParseHeader decodes a header from its persisted JSON bytes.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return Header{}, fmt.Errorf("segment: parse header: %w", err)
	}
	return h, nil
}

// StemBytes returns the AAD stem: the fixed-order compact-JSON subset used
// as AEAD associated data.
func (h Header) StemBytes() ([]byte, error) {
	return canonjson.EncodeOrdered([]canonjson.KV{
		{Key: "ver", Value: h.Ver},
		{Key: "suite", Value: h.Suite},
		{Key: "session", Value: h.Session},
		{Key: "padded_len", Value: h.PaddedLen},
		{Key: "hkdf_info", Value: h.HKDFInfo},
		{Key: "prev_tag", Value: h.PrevTag},
		{Key: "sign_pub", Value: h.SignPub},
	})
}

// SignatureBytes returns the full header minus sig, sorted-key compact JSON
// — the exact bytes that were signed (or must be re-verified against).
func (h Header) SignatureBytes() ([]byte, error) {
	m := map[string]any{
		"ver":        h.Ver,
		"suite":      h.Suite,
		"session":    h.Session,
		"padded_len": h.PaddedLen,
		"hkdf_info":  h.HKDFInfo,
		"prev_tag":   h.PrevTag,
		"sign_pub":   h.SignPub,
		"chain_tag":  h.ChainTag,
	}
	if h.Nonce != "" {
		m["nonce"] = h.Nonce
	}
	return canonjson.EncodeSorted(m)
}

// Sign computes Sig in place from the signing key.
func (h *Header) Sign(priv ed25519.PrivateKey) error {
	b, err := h.SignatureBytes()
	if err != nil {
		return err
	}
	h.Sig = fmt.Sprintf("%x", ed25519.Sign(priv, b))
	return nil
}

// VerifySignature checks Sig against sign_pub over SignatureBytes.
func (h Header) VerifySignature() (bool, error) {
	pub, err := hexDecode(h.SignPub)
	if err != nil {
		return false, fmt.Errorf("segment: decode sign_pub: %w", err)
	}
	sig, err := hexDecode(h.Sig)
	if err != nil {
		return false, fmt.Errorf("segment: decode sig: %w", err)
	}
	b, err := h.SignatureBytes()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(pub), b, sig), nil
}
