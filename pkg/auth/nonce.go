package auth

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// NonceStore persists nonce high-water marks so a restart does not reopen the
// replay window for previously used signatures.
type NonceStore interface {
	PutNonce(pubKey string, nonce uint64) error
	Nonces() (map[string]uint64, error)
}

// NonceRegistry tracks the highest nonce admitted per public key. One entry
// per key that has ever submitted; entries are never evicted — a key's
// high-water mark must outlive its resting orders to keep replay protection
// intact. Safe for concurrent use.
type NonceRegistry struct {
	mu    sync.Mutex
	seen  map[string]uint64
	store NonceStore // optional
	log   *zap.SugaredLogger
}

// NewNonceRegistry builds a registry, seeding it from the store when one is
// given. Store may be nil (in-memory only, used in tests).
func NewNonceRegistry(store NonceStore, log *zap.SugaredLogger) (*NonceRegistry, error) {
	r := &NonceRegistry{seen: make(map[string]uint64), store: store, log: log}
	if store != nil {
		loaded, err := store.Nonces()
		if err != nil {
			return nil, err
		}
		for k, n := range loaded {
			r.seen[k] = n
		}
	}
	return r, nil
}

// Admit records nonce for key if it is strictly greater than the highest
// nonce already admitted for that key. Persistence is best-effort: a store
// failure is logged and does not undo the in-memory admission.
func (r *NonceRegistry) Admit(key string, nonce uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.seen[key]; ok && nonce <= last {
		return false
	}
	r.seen[key] = nonce
	if r.store != nil {
		if err := r.store.PutNonce(key, nonce); err != nil {
			r.log.Warnw("nonce_persist_failed", "err", err)
		}
	}
	return true
}

// Len returns the number of keys tracked.
func (r *NonceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// normalizeKey canonicalizes a hex public key for registry lookups.
func normalizeKey(pubHex string) string {
	return strings.ToLower(strings.TrimPrefix(pubHex, "0x"))
}
