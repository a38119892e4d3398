// Package canonjson is the single canonical JSON encoder shared by the
// segment writer and the verifier, so AAD and signature bytes are
// bit-identical on both sides.
package canonjson

import (
	"bytes"
	"encoding/json"
	"sort"
)

// KV is one field in an ordered encoding.
type KV struct {
	Key   string
	Value any
}

// EncodeOrdered serializes pairs in the exact order given, with compact
// separators and no extra whitespace. Used for the AAD stem, where field
// order is part of the cryptographic contract.
func EncodeOrdered(pairs []KV) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeSorted serializes m with keys sorted lexicographically and compact
// separators. Used for the header's signature form.
func EncodeSorted(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]KV, len(keys))
	for i, k := range keys {
		pairs[i] = KV{Key: k, Value: m[k]}
	}
	return EncodeOrdered(pairs)
}
