package schemavalidation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHeader() map[string]any {
	return map[string]any{
		"ver":        1,
		"suite":      "CHACHA20P",
		"session":    "ab12",
		"padded_len": 512,
		"hkdf_info":  "segment-key:CHACHA20P",
		"prev_tag":   "00000000000000000000000000000000",
		"sign_pub":   "abababababababababababababababababababababababababababababababab",
		"nonce":      "aabbccddeeff00112233445566778899",
		"chain_tag":  "cdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcd",
		"sig":        "efefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefefef",
	}
}

func marshal(t *testing.T, m map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func TestValidHeaderPasses(t *testing.T) {
	h := validHeader()
	require.NoError(t, ValidateHeader(marshal(t, h)))
}

func TestMissingFieldFails(t *testing.T) {
	h := validHeader()
	delete(h, "chain_tag")
	assert.Error(t, ValidateHeader(marshal(t, h)))
}

func TestBadSuiteFails(t *testing.T) {
	h := validHeader()
	h["suite"] = "ROT13"
	assert.Error(t, ValidateHeader(marshal(t, h)))
}

func TestBadPaddedLenFails(t *testing.T) {
	h := validHeader()
	h["padded_len"] = 300
	assert.Error(t, ValidateHeader(marshal(t, h)))
}

func TestNotJSONFails(t *testing.T) {
	assert.Error(t, ValidateHeader([]byte("not json")))
}
