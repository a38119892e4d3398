package segmentverify

import (
	"crypto/hmac"
	"crypto/sha256"
)

func chainTag(chainKey, stem, ciphertext, prevChainTag []byte) []byte {
	mac := hmac.New(sha256.New, chainKey)
	mac.Write(stem)
	mac.Write(ciphertext)
	mac.Write(prevChainTag)
	return mac.Sum(nil)
}
