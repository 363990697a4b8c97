package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crudolabs/crudo/pkg/auth"
	"github.com/crudolabs/crudo/pkg/book"
	"github.com/crudolabs/crudo/pkg/util"
)

// Rejection reasons. A rejected submission produces no id, no trades and no
// book mutation; the caller cannot distinguish a bad signature from malformed
// key material by contract.
var (
	ErrMalformed     = errors.New("rejected: malformed submission")
	ErrBadSignature  = errors.New("rejected: signature not admitted")
	ErrNonceReplayed = errors.New("rejected: nonce already used")
)

// Submission is one inbound order before authentication. Price is in ticks,
// Amount in lots; PublicKey and Signature are hex-encoded proof of key
// ownership over auth.OrderMessage and are not retained after admission.
type Submission struct {
	Price     int64
	Amount    int64
	Side      book.Side
	Trader    string
	PublicKey string
	Signature string
	Nonce     uint64
}

func (s Submission) validate() error {
	if s.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrMalformed)
	}
	if s.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrMalformed)
	}
	if s.Side != book.Buy && s.Side != book.Sell {
		return fmt.Errorf("%w: invalid side", ErrMalformed)
	}
	if s.Trader == "" {
		return fmt.Errorf("%w: missing trader", ErrMalformed)
	}
	if s.PublicKey == "" || s.Signature == "" {
		return fmt.Errorf("%w: missing auth proof", ErrMalformed)
	}
	return nil
}

// Accepted is the result of an admitted submission: the assigned id, the
// trades produced in match order, and how much of the order rests (zero when
// fully filled).
type Accepted struct {
	OrderID       uint64
	Trades        []book.Trade
	RestingAmount int64
}

// Config carries the engine's collaborators. Zero values fall back to no-op
// implementations so tests can wire only what they observe.
type Config struct {
	Sink           TradeSink
	Gateway        SnapshotGateway
	WAL            WAL
	Clock          util.Clock
	Logger         *zap.SugaredLogger
	QueueDepth     int           // bounded publish queue, default 64
	PublishTimeout time.Duration // per hand-off call, default 5s
	RecentTrades   int           // ring buffer size for the trades endpoint, default 256
}

// Engine matches incoming orders against the book under price-time priority.
// Submissions are serialized: the mutex is held for the whole of one Submit,
// so the multi-level sweep observes a stable book and trade emission is
// exactly once. Once a submission is admitted, matching cannot fail — the
// order fully fills, partially fills and rests, or rests untouched.
type Engine struct {
	mu   sync.RWMutex
	book *book.Book
	auth *auth.Authenticator

	sink    TradeSink
	gateway SnapshotGateway
	wal     WAL
	clock   util.Clock
	log     *zap.SugaredLogger

	pubCh      chan publishBatch
	pubTimeout time.Duration

	recent    []book.Trade
	recentCap int
}

type publishBatch struct {
	trades []book.Trade
	snap   *book.Snapshot
}

func New(b *book.Book, a *auth.Authenticator, cfg Config) *Engine {
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}
	if cfg.Gateway == nil {
		cfg.Gateway = NopGateway{}
	}
	if cfg.WAL == nil {
		cfg.WAL = nopWAL{}
	}
	if cfg.Clock == nil {
		cfg.Clock = util.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.RecentTrades <= 0 {
		cfg.RecentTrades = 256
	}
	return &Engine{
		book:       b,
		auth:       a,
		sink:       cfg.Sink,
		gateway:    cfg.Gateway,
		wal:        cfg.WAL,
		clock:      cfg.Clock,
		log:        cfg.Logger,
		pubCh:      make(chan publishBatch, cfg.QueueDepth),
		pubTimeout: cfg.PublishTimeout,
		recentCap:  cfg.RecentTrades,
	}
}

type nopWAL struct{}

func (nopWAL) Append(string) {}

// SetSink replaces the trade sink. The WebSocket broadcaster is constructed
// around the engine, so wiring happens in two steps; call before Start.
func (e *Engine) SetSink(s TradeSink) {
	if s != nil {
		e.sink = s
	}
}

// Restore loads the startup snapshot from the gateway, if present, rebuilding
// both sides and the id counter. A corrupt snapshot is logged and skipped; the
// engine starts empty.
func (e *Engine) Restore(ctx context.Context) error {
	snap, ok, err := e.gateway.LoadSnapshot(ctx)
	if err != nil {
		e.log.Warnw("snapshot_load_failed", "err", err)
		return nil
	}
	if !ok {
		e.log.Infow("no_snapshot_found")
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.book.Restore(snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	e.log.Infow("snapshot_restored",
		"bids", len(snap.Bids), "asks", len(snap.Asks), "next_id", snap.NextID)
	return nil
}

// Start launches the background publisher that drains the hand-off queue.
// It returns immediately; the publisher stops when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go e.publishLoop(ctx)
}

// Submit authenticates, matches and (if unfilled) rests one order, per
// price-time priority. It returns the trades produced in execution order, or
// a rejection error with no side effects and no id assigned.
func (e *Engine) Submit(sub Submission) (*Accepted, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}
	msg := auth.OrderMessage(sub.Price, sub.Amount, sub.Side.String(), sub.Nonce, sub.Trader)
	if !e.auth.Verify(sub.PublicKey, sub.Signature, msg) {
		return nil, ErrBadSignature
	}
	if !e.auth.AdmitNonce(sub.PublicKey, sub.Nonce) {
		return nil, ErrNonceReplayed
	}

	e.mu.Lock()
	o := &book.Order{
		ID:     e.book.NextID(),
		Price:  sub.Price,
		Amount: sub.Amount,
		Side:   sub.Side,
		Trader: sub.Trader,
	}
	trades := e.match(o)
	if e.book.Crossed() {
		panic(fmt.Sprintf("engine: book crossed after settling order %d", o.ID))
	}
	e.appendRecent(trades)
	e.wal.Append(walLine(o.ID, sub, e.clock.Now()))
	snap := e.book.Snapshot()
	resting := o.Amount
	e.mu.Unlock()

	e.log.Infow("order_accepted",
		"id", o.ID, "side", sub.Side.String(), "price", sub.Price,
		"amount", sub.Amount, "trades", len(trades), "resting", resting)

	e.enqueue(publishBatch{trades: trades, snap: snap})
	return &Accepted{OrderID: o.ID, Trades: trades, RestingAmount: resting}, nil
}

// match walks the opposing side while the order still crosses, consuming
// levels best price first and each level's queue oldest first. The remainder,
// if any, rests at the order's limit price as the newest order at that level.
func (e *Engine) match(o *book.Order) []book.Trade {
	var trades []book.Trade
	opp := o.Side.Opposite()
	ts := e.clock.Now().UnixMilli()

	for o.Amount > 0 {
		price, ok := e.book.BestOpposing(o.Side)
		if !ok || !crosses(o, price) {
			break
		}
		maker := e.book.PeekFront(opp, price)
		qty := min64(o.Amount, maker.Amount)
		if qty <= 0 {
			panic(fmt.Sprintf("engine: non-positive fill qty %d (taker %d, maker %d)", qty, o.ID, maker.ID))
		}
		o.Amount -= qty
		maker.Amount -= qty
		trades = append(trades, book.Trade{
			TakerID:     o.ID,
			MakerID:     maker.ID,
			Price:       maker.Price,
			Quantity:    qty,
			TakerTrader: o.Trader,
			MakerTrader: maker.Trader,
			Timestamp:   ts,
		})
		if maker.Amount == 0 {
			e.book.PopFront(opp, price)
		}
	}

	if o.Amount > 0 {
		e.book.Insert(o)
	}
	return trades
}

// crosses reports whether the opposing best price is executable against the
// order's limit: ask <= a buy's limit, bid >= a sell's limit.
func crosses(o *book.Order, opposingBest int64) bool {
	if o.Side == book.Buy {
		return opposingBest <= o.Price
	}
	return opposingBest >= o.Price
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Depth returns aggregated levels, bids best-first then asks best-first.
func (e *Engine) Depth() ([]book.Level, []book.Level) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.BidLevels(), e.book.AskLevels()
}

// SnapshotNow returns a consistent snapshot taken outside any in-flight match.
func (e *Engine) SnapshotNow() *book.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Snapshot()
}

// RecentTrades returns up to n of the most recent trades, newest last.
func (e *Engine) RecentTrades(n int) []book.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n <= 0 || n > len(e.recent) {
		n = len(e.recent)
	}
	out := make([]book.Trade, n)
	copy(out, e.recent[len(e.recent)-n:])
	return out
}

func (e *Engine) appendRecent(trades []book.Trade) {
	e.recent = append(e.recent, trades...)
	if over := len(e.recent) - e.recentCap; over > 0 {
		e.recent = append(e.recent[:0:0], e.recent[over:]...)
	}
}

// enqueue hands a batch to the background publisher without blocking the
// submit path. Overflow drops the batch: the in-memory book is authoritative
// and a later batch carries a fresher snapshot.
func (e *Engine) enqueue(b publishBatch) {
	select {
	case e.pubCh <- b:
	default:
		e.log.Warnw("publish_queue_full", "dropped_trades", len(b.trades))
	}
}

func (e *Engine) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-e.pubCh:
			e.publish(ctx, batch)
		}
	}
}

// publish delivers one batch to the sink and gateway with a timeout per call.
// Failures are logged, never rolled back into the book; a persistent failure
// stream is the operator's signal of a durability gap.
func (e *Engine) publish(ctx context.Context, batch publishBatch) {
	if len(batch.trades) > 0 {
		cctx, cancel := context.WithTimeout(ctx, e.pubTimeout)
		if err := e.sink.PublishTrades(cctx, batch.trades); err != nil {
			e.log.Warnw("trade_broadcast_failed", "trades", len(batch.trades), "err", err)
		}
		cancel()
	}
	cctx, cancel := context.WithTimeout(ctx, e.pubTimeout)
	if err := e.gateway.SaveSnapshot(cctx, batch.snap); err != nil {
		e.log.Warnw("snapshot_save_failed", "err", err)
	}
	cancel()
}

// walLine formats one accepted submission as a JSON log line.
func walLine(id uint64, sub Submission, now time.Time) string {
	entry := struct {
		ID     uint64 `json:"id"`
		Price  int64  `json:"price"`
		Amount int64  `json:"amount"`
		Side   string `json:"side"`
		Trader string `json:"trader"`
		Nonce  uint64 `json:"nonce"`
		TS     int64  `json:"ts"`
	}{id, sub.Price, sub.Amount, sub.Side.String(), sub.Trader, sub.Nonce, now.UnixMilli()}
	data, _ := json.Marshal(entry)
	return string(data)
}
