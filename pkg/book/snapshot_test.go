package book

import (
	"bytes"
	"testing"
)

func populatedBook() *Book {
	b := New()
	b.Insert(&Order{ID: b.NextID(), Price: 10050, Amount: 100000, Side: Sell, Trader: "alice"})
	b.Insert(&Order{ID: b.NextID(), Price: 10100, Amount: 500000, Side: Sell, Trader: "bob"})
	b.Insert(&Order{ID: b.NextID(), Price: 10100, Amount: 200000, Side: Sell, Trader: "carol"})
	b.Insert(&Order{ID: b.NextID(), Price: 9900, Amount: 300000, Side: Buy, Trader: "dave"})
	return b
}

func TestSnapshotRoundTrip(t *testing.T) {
	b := populatedBook()
	snap := b.Snapshot()

	restored := New()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if restored.PeekNextID() != b.PeekNextID() {
		t.Fatalf("next id = %d, want %d", restored.PeekNextID(), b.PeekNextID())
	}
	if restored.Len() != b.Len() {
		t.Fatalf("order count = %d, want %d", restored.Len(), b.Len())
	}

	// A snapshot of the restored book must match the original exactly:
	// per-side lists including id, price, amount, trader, and queue order.
	again := restored.Snapshot()
	if len(again.Bids) != len(snap.Bids) || len(again.Asks) != len(snap.Asks) {
		t.Fatalf("side sizes differ: %d/%d vs %d/%d",
			len(again.Bids), len(again.Asks), len(snap.Bids), len(snap.Asks))
	}
	for i := range snap.Asks {
		if again.Asks[i] != snap.Asks[i] {
			t.Fatalf("ask %d differs: %+v vs %+v", i, again.Asks[i], snap.Asks[i])
		}
	}
	for i := range snap.Bids {
		if again.Bids[i] != snap.Bids[i] {
			t.Fatalf("bid %d differs: %+v vs %+v", i, again.Bids[i], snap.Bids[i])
		}
	}
}

func TestSnapshotFIFOOrderPreserved(t *testing.T) {
	b := populatedBook()
	snap := b.Snapshot()

	// bob rested at 10100 before carol; the snapshot must list bob first.
	var at10100 []string
	for _, r := range snap.Asks {
		if r.Price == 10100 {
			at10100 = append(at10100, r.Trader)
		}
	}
	if len(at10100) != 2 || at10100[0] != "bob" || at10100[1] != "carol" {
		t.Fatalf("10100 queue order = %v, want [bob carol]", at10100)
	}
}

func TestRestoreBumpsNextIDPastRestingOrders(t *testing.T) {
	snap := &Snapshot{
		Asks:   []RestingOrder{{ID: 42, Price: 100, Amount: 5, Trader: "a", Side: "sell"}},
		NextID: 1, // stale counter; restore must not reuse id 42
	}
	b := New()
	if err := b.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := b.NextID(); got != 43 {
		t.Fatalf("next id after restore = %d, want 43", got)
	}
}

func TestRestoreRejectsInvalidOrders(t *testing.T) {
	cases := []RestingOrder{
		{ID: 1, Price: 0, Amount: 5, Trader: "a", Side: "sell"},
		{ID: 1, Price: 100, Amount: 0, Trader: "a", Side: "sell"},
		{ID: 1, Price: 100, Amount: 5, Trader: "a", Side: "short"},
	}
	for _, bad := range cases {
		b := New()
		if err := b.Restore(&Snapshot{Asks: []RestingOrder{bad}, NextID: 2}); err == nil {
			t.Fatalf("restore accepted invalid order %+v", bad)
		}
	}
}

func TestEncodeDecodeSnapshot(t *testing.T) {
	snap := populatedBook().Snapshot()
	data, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.NextID != snap.NextID || len(decoded.Bids) != len(snap.Bids) || len(decoded.Asks) != len(snap.Asks) {
		t.Fatalf("decoded snapshot differs: %+v vs %+v", decoded, snap)
	}
}

func TestDecodeSnapshotDetectsCorruption(t *testing.T) {
	data, err := EncodeSnapshot(populatedBook().Snapshot())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	tampered := bytes.Replace(data, []byte("alice"), []byte("mallc"), 1)
	if bytes.Equal(tampered, data) {
		t.Fatal("tamper did not change payload")
	}
	if _, err := DecodeSnapshot(tampered); err == nil {
		t.Fatal("expected checksum mismatch for tampered snapshot")
	}
}
