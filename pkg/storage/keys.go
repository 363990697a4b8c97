package storage

import (
	"encoding/binary"
	"strings"
)

const (
	keySnapshot = "ob:snapshot"
	prefixNonce = "n:"
)

func kSnapshot() []byte { return []byte(keySnapshot) }

func kNonce(pubKey string) []byte { return []byte(prefixNonce + pubKey) }

func noncePrefix() []byte { return []byte(prefixNonce) }

// nonceKeySuffix strips the nonce prefix from a raw key.
func nonceKeySuffix(raw []byte) (string, bool) {
	s := string(raw)
	if !strings.HasPrefix(s, prefixNonce) {
		return "", false
	}
	return s[len(prefixNonce):], true
}

func nonceValue(n uint64) []byte {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], n)
	return v[:]
}

func parseNonceValue(v []byte) (uint64, bool) {
	if len(v) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
