package tests

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/crudolabs/crudo/pkg/auth"
	"github.com/crudolabs/crudo/pkg/book"
	"github.com/crudolabs/crudo/pkg/engine"
	"github.com/crudolabs/crudo/pkg/storage"
)

// node bundles the persistent pieces the way cmd/node wires them, minus the
// HTTP surface, so a test can stop and restart the whole stack against the
// same data directory.
type node struct {
	store *storage.PebbleStore
	wal   *storage.FileWAL
	eng   *engine.Engine
}

func startNode(t *testing.T, dataDir string) *node {
	t.Helper()
	log := zap.NewNop().Sugar()

	store, err := storage.NewPebbleStore(filepath.Join(dataDir, "book.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	wal, err := storage.NewFileWAL(filepath.Join(dataDir, "orders.wal"))
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	reg, err := auth.NewNonceRegistry(store, log)
	if err != nil {
		t.Fatalf("nonce registry: %v", err)
	}
	authn := auth.NewAuthenticator(reg, log)

	eng := engine.New(book.New(), authn, engine.Config{
		Gateway: store,
		WAL:     wal,
		Logger:  log,
	})
	if err := eng.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	return &node{store: store, wal: wal, eng: eng}
}

func (n *node) stop(t *testing.T) {
	t.Helper()
	// cmd/node checkpoints on shutdown; do the same so the restarted node
	// sees the final book rather than the last async save.
	if err := n.store.SaveSnapshot(context.Background(), n.eng.SnapshotNow()); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if err := n.wal.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}
	if err := n.store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
}

func signedOrder(t *testing.T, s *auth.Signer, trader string, price, amount int64, side book.Side, nonce uint64) engine.Submission {
	t.Helper()
	return engine.Submission{
		Price:     price,
		Amount:    amount,
		Side:      side,
		Trader:    trader,
		PublicKey: s.PublicKeyHex(),
		Signature: s.SignOrder(price, amount, side.String(), nonce, trader),
		Nonce:     nonce,
	}
}

func TestRestartRestoresBookAndReplayProtection(t *testing.T) {
	dataDir := t.TempDir()

	alice, err := auth.GenerateSigner()
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	bob, err := auth.GenerateSigner()
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	n := startNode(t, dataDir)

	// Alice rests an ask, Bob lifts part of it, Bob rests a bid below.
	if _, err := n.eng.Submit(signedOrder(t, alice, "alice", 10100, 100000, book.Sell, 1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	accepted, err := n.eng.Submit(signedOrder(t, bob, "bob", 10100, 40000, book.Buy, 1))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(accepted.Trades) != 1 || accepted.Trades[0].Quantity != 40000 {
		t.Fatalf("trades = %v, want one fill of 40000", accepted.Trades)
	}
	if _, err := n.eng.Submit(signedOrder(t, bob, "bob", 9900, 50000, book.Buy, 2)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	lastID := accepted.OrderID
	n.stop(t)

	// Restart against the same data dir.
	n = startNode(t, dataDir)
	defer n.stop(t)

	bids, asks := n.eng.Depth()
	if len(asks) != 1 || asks[0].Price != 10100 || asks[0].Amount != 60000 {
		t.Fatalf("restored asks = %v, want 60000@10100", asks)
	}
	if len(bids) != 1 || bids[0].Price != 9900 || bids[0].Amount != 50000 {
		t.Fatalf("restored bids = %v, want 50000@9900", bids)
	}

	// Nonce high-water marks survive the restart: a valid signature with an
	// already used nonce stays dead.
	replay := signedOrder(t, bob, "bob", 9900, 50000, book.Buy, 2)
	if _, err := n.eng.Submit(replay); !errors.Is(err, engine.ErrNonceReplayed) {
		t.Fatalf("replay after restart: err = %v, want ErrNonceReplayed", err)
	}

	// Fresh orders keep working and ids continue past the snapshot.
	acc, err := n.eng.Submit(signedOrder(t, bob, "bob", 9950, 10000, book.Buy, 3))
	if err != nil {
		t.Fatalf("submit after restart: %v", err)
	}
	if acc.OrderID <= lastID {
		t.Fatalf("post-restart id %d not past pre-restart id %d", acc.OrderID, lastID)
	}

	// Every accepted submission across both runs left a WAL line.
	f, err := os.Open(filepath.Join(dataDir, "orders.wal"))
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	if lines != 4 {
		t.Fatalf("wal has %d lines, want 4 accepted submissions", lines)
	}
}

func TestCheckpointReadableByBareStore(t *testing.T) {
	dataDir := t.TempDir()

	n := startNode(t, dataDir)
	alice, err := auth.GenerateSigner()
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	if _, err := n.eng.Submit(signedOrder(t, alice, "alice", 10100, 100000, book.Sell, 1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	n.stop(t)

	// The shutdown checkpoint is a plain store read for tooling: no engine
	// required, checksum verified on decode.
	store, err := storage.NewPebbleStore(filepath.Join(dataDir, "book.db"))
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()
	snap, ok, err := store.LoadSnapshot(context.Background())
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(snap.Asks) != 1 {
		t.Fatalf("snapshot asks = %v", snap.Asks)
	}
}
