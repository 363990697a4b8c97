package book

import (
	"container/heap"
	"fmt"
	"sort"
)

// Book holds the two sides of the order book: price -> FIFO queue of resting
// orders, with heap-based best-price tracking for O(1) peek. Bids are consumed
// highest price first, asks lowest price first; within a price level, oldest
// order first.
//
// Book is not safe for concurrent use. The matching engine serializes all
// access: one submission mutates the book at a time, and the multi-level sweep
// of a single submission must observe a stable book throughout.
//
// Invariants, enforced after every mutation:
//   - no price level with an empty queue exists in either map
//   - no resting order has a non-positive amount
//   - order ids only increase and are never reused
type Book struct {
	bidHeap *maxPriceHeap
	askHeap *minPriceHeap

	bids map[int64][]*Order
	asks map[int64][]*Order

	nextID uint64 // next id to assign; ids start at 1
}

// New returns an empty book with the id counter at 1.
func New() *Book {
	bidHeap := &maxPriceHeap{}
	askHeap := &minPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &Book{
		bidHeap: bidHeap,
		askHeap: askHeap,
		bids:    make(map[int64][]*Order),
		asks:    make(map[int64][]*Order),
		nextID:  1,
	}
}

// NextID assigns and returns the next order id. Ids are never reused, even
// after the order they were issued to is fully filled and removed.
func (b *Book) NextID() uint64 {
	id := b.nextID
	b.nextID++
	return id
}

// PeekNextID returns the id the next accepted order will receive.
func (b *Book) PeekNextID() uint64 { return b.nextID }

// Insert appends o to the FIFO queue at its price on its own side, creating
// the level if absent. The order becomes the newest at that price.
func (b *Book) Insert(o *Order) {
	if o.Price <= 0 || o.Amount <= 0 {
		panic(fmt.Sprintf("book: insert of invalid order id=%d price=%d amount=%d", o.ID, o.Price, o.Amount))
	}
	side, priceHeap := b.bids, heap.Interface(b.bidHeap)
	if o.Side == Sell {
		side, priceHeap = b.asks, b.askHeap
	}
	if len(side[o.Price]) == 0 {
		heap.Push(priceHeap, o.Price)
	}
	side[o.Price] = append(side[o.Price], o)
}

// BestBid returns the highest bid price, if any.
func (b *Book) BestBid() (int64, bool) {
	if b.bidHeap.Len() == 0 {
		return 0, false
	}
	return b.bidHeap.Peek(), true
}

// BestAsk returns the lowest ask price, if any.
func (b *Book) BestAsk() (int64, bool) {
	if b.askHeap.Len() == 0 {
		return 0, false
	}
	return b.askHeap.Peek(), true
}

// BestOpposing returns the top price on the side that an order of side s
// would consume: asks for a buy, bids for a sell.
func (b *Book) BestOpposing(s Side) (int64, bool) {
	if s == Buy {
		return b.BestAsk()
	}
	return b.BestBid()
}

// PeekFront returns the oldest resting order at the given level without
// removing it. The level must exist; a registered level with an empty queue
// is an internal-consistency error.
func (b *Book) PeekFront(s Side, price int64) *Order {
	level := b.level(s, price)
	if len(level) == 0 {
		panic(fmt.Sprintf("book: empty %s level at price %d", s, price))
	}
	return level[0]
}

// PopFront removes the oldest resting order at the given level. If the queue
// empties, the level is deleted from both the map and the heap, so no empty
// level is ever observable.
func (b *Book) PopFront(s Side, price int64) {
	level := b.level(s, price)
	if len(level) == 0 {
		panic(fmt.Sprintf("book: pop from empty %s level at price %d", s, price))
	}
	if s == Buy {
		b.bids[price] = level[1:]
		if len(b.bids[price]) == 0 {
			delete(b.bids, price)
			removeFromHeap(b.bidHeap, price)
		}
		return
	}
	b.asks[price] = level[1:]
	if len(b.asks[price]) == 0 {
		delete(b.asks, price)
		removeFromHeap(b.askHeap, price)
	}
}

func (b *Book) level(s Side, price int64) []*Order {
	if s == Buy {
		return b.bids[price]
	}
	return b.asks[price]
}

// removeFromHeap removes one price from a price heap (O(N) worst case, only
// taken when a level empties).
func removeFromHeap(h heap.Interface, price int64) {
	switch hp := h.(type) {
	case *maxPriceHeap:
		for i := 0; i < hp.Len(); i++ {
			if (*hp)[i] == price {
				heap.Remove(hp, i)
				return
			}
		}
	case *minPriceHeap:
		for i := 0; i < hp.Len(); i++ {
			if (*hp)[i] == price {
				heap.Remove(hp, i)
				return
			}
		}
	}
}

// Crossed reports whether the best bid meets or exceeds the best ask. A
// crossed book is a transient mid-match state only; it must never hold once a
// submission has settled.
func (b *Book) Crossed() bool {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	return okB && okA && bid >= ask
}

// Len returns the total number of resting orders on both sides.
func (b *Book) Len() int {
	n := 0
	for _, level := range b.bids {
		n += len(level)
	}
	for _, level := range b.asks {
		n += len(level)
	}
	return n
}

// BidLevels returns aggregated bid levels sorted best-first (price descending).
func (b *Book) BidLevels() []Level {
	levels := aggregate(b.bids)
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	return levels
}

// AskLevels returns aggregated ask levels sorted best-first (price ascending).
func (b *Book) AskLevels() []Level {
	levels := aggregate(b.asks)
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	return levels
}

func aggregate(side map[int64][]*Order) []Level {
	levels := make([]Level, 0, len(side))
	for price, orders := range side {
		if len(orders) == 0 {
			panic(fmt.Sprintf("book: empty level at price %d", price))
		}
		var total int64
		for _, o := range orders {
			if o.Amount <= 0 {
				panic(fmt.Sprintf("book: resting order %d has amount %d", o.ID, o.Amount))
			}
			total += o.Amount
		}
		levels = append(levels, Level{Price: price, Amount: total})
	}
	return levels
}

// walk visits every resting order on one side, best price first, FIFO within
// each level.
func walk(side map[int64][]*Order, bestFirst func(i, j int64) bool, fn func(*Order)) {
	prices := make([]int64, 0, len(side))
	for p := range side {
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool { return bestFirst(prices[i], prices[j]) })
	for _, p := range prices {
		for _, o := range side[p] {
			fn(o)
		}
	}
}
