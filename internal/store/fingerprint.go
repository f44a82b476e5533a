package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint derives the cache key for an operation+variables pair. The hash
// covers the operation text and the canonicalized variables JSON with length
// framing, so distinct pairs cannot collide by concatenation (two inputs that
// happen to join into the same string still hash differently).
func Fingerprint(operationText string, variablesJSON []byte) string {
	h := sha256.New()

	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(operationText)))
	h.Write(lenBuf[:])
	h.Write([]byte(operationText))

	vars := canonicalizeJSON(variablesJSON)
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(vars)))
	h.Write(lenBuf[:])
	h.Write(vars)

	return hex.EncodeToString(h.Sum(nil))
}

// canonicalizeJSON re-marshals the variables so that key order does not
// change the fingerprint. Invalid or empty input is hashed as-is; the pair
// still keys consistently, it just loses order independence.
func canonicalizeJSON(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return data
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return data
	}
	return canonical
}
