package engine

import (
	"context"

	"github.com/crudolabs/crudo/pkg/book"
)

// TradeSink receives the ordered list of trades produced by one submission,
// for broadcast. Delivery is best-effort: the book mutation has already
// committed and is authoritative by the time a sink is called.
type TradeSink interface {
	PublishTrades(ctx context.Context, trades []book.Trade) error
}

// SnapshotGateway persists book snapshots after mutation and provides the
// startup snapshot, if one exists.
type SnapshotGateway interface {
	SaveSnapshot(ctx context.Context, s *book.Snapshot) error
	LoadSnapshot(ctx context.Context) (*book.Snapshot, bool, error)
}

// WAL is the append-only local durability log. A line is written for every
// accepted submission before the asynchronous snapshot hand-off, so the book
// can be reconstructed after a crash even if the gateway lagged behind.
type WAL interface {
	Append(line string)
}

// NopSink discards trades.
type NopSink struct{}

func (NopSink) PublishTrades(context.Context, []book.Trade) error { return nil }

// NopGateway persists nothing and never has a snapshot.
type NopGateway struct{}

func (NopGateway) SaveSnapshot(context.Context, *book.Snapshot) error { return nil }
func (NopGateway) LoadSnapshot(context.Context) (*book.Snapshot, bool, error) {
	return nil, false, nil
}

// MultiSink fans trades out to several sinks in order. The first error is
// returned after all sinks have been tried.
type MultiSink []TradeSink

func (m MultiSink) PublishTrades(ctx context.Context, trades []book.Trade) error {
	var first error
	for _, s := range m {
		if err := s.PublishTrades(ctx, trades); err != nil && first == nil {
			first = err
		}
	}
	return first
}
