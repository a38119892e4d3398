package tpmstore

import (
	"encoding/binary"
	"fmt"
)

// encodeSealedBlob packs the TPM public/private halves of a sealed object as
// len(pub) || pub || len(priv) || priv for storage as a single file.
func encodeSealedBlob(pub, priv []byte) []byte {
	out := make([]byte, 4+len(pub)+4+len(priv))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(pub)))
	copy(out[4:], pub)
	offset := 4 + len(pub)
	binary.BigEndian.PutUint32(out[offset:offset+4], uint32(len(priv)))
	copy(out[offset+4:], priv)
	return out
}

func decodeSealedBlob(blob []byte) (pub, priv []byte, err error) {
	if len(blob) < 8 {
		return nil, nil, fmt.Errorf("tpmstore: sealed blob too short")
	}
	pubLen := binary.BigEndian.Uint32(blob[0:4])
	if uint32(len(blob)) < 4+pubLen+4 {
		return nil, nil, fmt.Errorf("tpmstore: sealed blob corrupted")
	}
	pub = blob[4 : 4+pubLen]
	offset := 4 + pubLen
	privLen := binary.BigEndian.Uint32(blob[offset : offset+4])
	if uint32(len(blob)) < offset+4+privLen {
		return nil, nil, fmt.Errorf("tpmstore: sealed blob corrupted")
	}
	priv = blob[offset+4 : offset+4+privLen]
	return pub, priv, nil
}
