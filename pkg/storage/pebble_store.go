package storage

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/crudolabs/crudo/pkg/auth"
	"github.com/crudolabs/crudo/pkg/book"
	"github.com/crudolabs/crudo/pkg/engine"
)

// Key schema:
//   ob:snapshot  → encoded book snapshot (checksummed JSON)
//   n:<pubkey>   → nonce high-water mark (8-byte big-endian, see keys.go)
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveSnapshot persists the book snapshot. Synced: the snapshot is the crash
// recovery point, the WAL only covers the tail.
func (s *PebbleStore) SaveSnapshot(_ context.Context, snap *book.Snapshot) error {
	data, err := book.EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := s.db.Set(kSnapshot(), data, pebble.Sync); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted snapshot, or ok=false when none exists.
// A snapshot that fails checksum verification is surfaced as an error so the
// caller can decide to start empty.
func (s *PebbleStore) LoadSnapshot(_ context.Context) (*book.Snapshot, bool, error) {
	val, closer, err := s.db.Get(kSnapshot())
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	defer closer.Close()
	snap, err := book.DecodeSnapshot(val)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// PutNonce persists the nonce high-water mark for one public key.
func (s *PebbleStore) PutNonce(pubKey string, nonce uint64) error {
	if err := s.db.Set(kNonce(pubKey), nonceValue(nonce), pebble.Sync); err != nil {
		return fmt.Errorf("put nonce: %w", err)
	}
	return nil
}

// Nonces loads every persisted nonce high-water mark.
func (s *PebbleStore) Nonces() (map[string]uint64, error) {
	prefix := noncePrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("load nonces: %w", err)
	}
	defer iter.Close()

	out := make(map[string]uint64)
	for iter.First(); iter.Valid(); iter.Next() {
		key, ok := nonceKeySuffix(iter.Key())
		if !ok {
			continue
		}
		n, ok := parseNonceValue(iter.Value())
		if !ok {
			continue
		}
		out[key] = n
	}
	return out, nil
}

var _ engine.SnapshotGateway = (*PebbleStore)(nil)
var _ auth.NonceStore = (*PebbleStore)(nil)
