package book

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// RestingOrder is the serialized form of one resting order.
type RestingOrder struct {
	ID     uint64 `json:"id"`
	Price  int64  `json:"price"`
	Amount int64  `json:"amount"`
	Trader string `json:"trader"`
	Side   string `json:"side"`
}

// Snapshot is a complete serialized copy of both sides of the book plus the
// id counter. Orders appear best price first, FIFO within each level, so a
// round trip restores the book exactly.
type Snapshot struct {
	Bids   []RestingOrder `json:"bids"`
	Asks   []RestingOrder `json:"asks"`
	NextID uint64         `json:"nextId"`
}

// snapshotEnvelope wraps a snapshot with an integrity checksum for storage.
type snapshotEnvelope struct {
	Checksum string          `json:"checksum"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// Snapshot captures the current book state.
func (b *Book) Snapshot() *Snapshot {
	s := &Snapshot{
		Bids:   make([]RestingOrder, 0, len(b.bids)),
		Asks:   make([]RestingOrder, 0, len(b.asks)),
		NextID: b.nextID,
	}
	walk(b.bids, func(i, j int64) bool { return i > j }, func(o *Order) {
		s.Bids = append(s.Bids, restingOrder(o))
	})
	walk(b.asks, func(i, j int64) bool { return i < j }, func(o *Order) {
		s.Asks = append(s.Asks, restingOrder(o))
	})
	return s
}

func restingOrder(o *Order) RestingOrder {
	return RestingOrder{ID: o.ID, Price: o.Price, Amount: o.Amount, Trader: o.Trader, Side: o.Side.String()}
}

// Restore replaces the book contents with the snapshot. The id counter is
// taken from the snapshot, bumped past the highest resting id if the snapshot
// predates it.
func (b *Book) Restore(s *Snapshot) error {
	fresh := New()
	for _, entries := range [][]RestingOrder{s.Bids, s.Asks} {
		for _, r := range entries {
			side, err := ParseSide(r.Side)
			if err != nil {
				return fmt.Errorf("restore order %d: %w", r.ID, err)
			}
			if r.Price <= 0 || r.Amount <= 0 {
				return fmt.Errorf("restore order %d: non-positive price=%d amount=%d", r.ID, r.Price, r.Amount)
			}
			fresh.Insert(&Order{ID: r.ID, Price: r.Price, Amount: r.Amount, Side: side, Trader: r.Trader})
			if r.ID >= fresh.nextID {
				fresh.nextID = r.ID + 1
			}
		}
	}
	if s.NextID > fresh.nextID {
		fresh.nextID = s.NextID
	}
	*b = *fresh
	return nil
}

// EncodeSnapshot serializes a snapshot with a SHA3-256 checksum over the
// canonical JSON payload.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	sum := sha3.Sum256(payload)
	return json.Marshal(snapshotEnvelope{
		Checksum: hex.EncodeToString(sum[:]),
		Snapshot: payload,
	})
}

// DecodeSnapshot parses an encoded snapshot and verifies its checksum. A
// checksum mismatch means the stored snapshot is corrupt and must not be
// loaded.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	sum := sha3.Sum256(env.Snapshot)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return nil, fmt.Errorf("decode snapshot: checksum mismatch")
	}
	var s Snapshot
	if err := json.Unmarshal(env.Snapshot, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}
