package storage

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crudolabs/crudo/pkg/book"
)

func openTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	s, err := NewPebbleStore(filepath.Join(t.TempDir(), "book.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadSnapshotEmptyStore(t *testing.T) {
	s := openTestStore(t)
	snap, ok, err := s.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok || snap != nil {
		t.Fatalf("empty store returned a snapshot: %+v", snap)
	}
}

func TestSnapshotSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b := book.New()
	b.Insert(&book.Order{ID: b.NextID(), Price: 10050, Amount: 100000, Side: book.Sell, Trader: "alice"})
	b.Insert(&book.Order{ID: b.NextID(), Price: 9900, Amount: 50000, Side: book.Buy, Trader: "bob"})
	want := b.Snapshot()

	if err := s.SaveSnapshot(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("saved snapshot not found")
	}
	if got.NextID != want.NextID {
		t.Fatalf("nextId = %d, want %d", got.NextID, want.NextID)
	}
	if len(got.Bids) != 1 || len(got.Asks) != 1 {
		t.Fatalf("got %d bids / %d asks, want 1/1", len(got.Bids), len(got.Asks))
	}
	if got.Asks[0] != want.Asks[0] || got.Bids[0] != want.Bids[0] {
		t.Fatalf("resting orders differ: %+v vs %+v", got, want)
	}
}

func TestSaveSnapshotOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b := book.New()
	b.Insert(&book.Order{ID: b.NextID(), Price: 10050, Amount: 100000, Side: book.Sell, Trader: "alice"})
	if err := s.SaveSnapshot(ctx, b.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Later snapshot of an empty book replaces the earlier one.
	if err := s.SaveSnapshot(ctx, book.New().Snapshot()); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	got, ok, err := s.LoadSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(got.Bids) != 0 || len(got.Asks) != 0 {
		t.Fatalf("stale snapshot survived: %+v", got)
	}
}

func TestNoncePersistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "book.db")
	s, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.PutNonce("key1", 5); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutNonce("key2", 9); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutNonce("key1", 7); err != nil { // overwrite high-water mark
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Survives reopen.
	s, err = NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	nonces, err := s.Nonces()
	if err != nil {
		t.Fatalf("nonces: %v", err)
	}
	if len(nonces) != 2 || nonces["key1"] != 7 || nonces["key2"] != 9 {
		t.Fatalf("nonces = %v, want key1=7 key2=9", nonces)
	}
}

func TestNonceScanIgnoresSnapshotKey(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveSnapshot(context.Background(), book.New().Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.PutNonce("key1", 1); err != nil {
		t.Fatalf("put: %v", err)
	}
	nonces, err := s.Nonces()
	if err != nil {
		t.Fatalf("nonces: %v", err)
	}
	if len(nonces) != 1 {
		t.Fatalf("nonce scan picked up foreign keys: %v", nonces)
	}
}

func TestFileWALAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.wal")
	w, err := NewFileWAL(path)
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	w.Append(`{"id":1}`)
	w.Append(`{"id":2}`)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening appends, never truncates.
	w, err = NewFileWAL(path)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}
	w.Append(`{"id":3}`)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("read wal: %v", err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{`{"id":1}`, `{"id":2}`, `{"id":3}`}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("wal lines = %v, want %v", lines, want)
	}
}
