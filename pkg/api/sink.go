package api

import (
	"context"
	"time"

	"github.com/crudolabs/crudo/pkg/book"
	"github.com/crudolabs/crudo/pkg/engine"
)

// Broadcaster adapts the WebSocket hub into a trade sink: each trade goes out
// on the "trades" channel and the refreshed depth on "orderbook".
type Broadcaster struct {
	server *Server
}

func NewBroadcaster(server *Server) *Broadcaster {
	return &Broadcaster{server: server}
}

func (b *Broadcaster) PublishTrades(_ context.Context, trades []book.Trade) error {
	s := b.server
	for _, t := range trades {
		s.hub.BroadcastToChannel("trades", TradeUpdate{
			Type:        "trade",
			TakerID:     t.TakerID,
			MakerID:     t.MakerID,
			Price:       s.scales.FromTicks(t.Price),
			Quantity:    s.scales.FromLots(t.Quantity),
			TakerTrader: t.TakerTrader,
			MakerTrader: t.MakerTrader,
			Timestamp:   t.Timestamp,
		})
	}

	bids, asks := s.eng.Depth()
	s.hub.BroadcastToChannel("orderbook", OrderbookUpdate{
		Type:      "orderbook",
		Bids:      s.depthLevels(bids),
		Asks:      s.depthLevels(asks),
		Timestamp: time.Now().UnixMilli(),
	})
	return nil
}

var _ engine.TradeSink = (*Broadcaster)(nil)
