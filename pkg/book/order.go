package book

import "fmt"

// Side is the direction of an order.
type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the side an order of side s consumes liquidity from.
func (s Side) Opposite() Side { return -s }

// ParseSide parses the wire representation ("buy"/"sell").
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("invalid side %q", s)
	}
}

// Order is a resting intent to trade. Price is in integer ticks, Amount in
// integer lots; Amount is decremented as fills occur and an order whose
// Amount reaches zero is removed from the book, never retained.
type Order struct {
	ID     uint64
	Price  int64
	Amount int64
	Side   Side
	Trader string
}

// Trade is an immutable record of one execution. Price is always the maker's
// resting price.
type Trade struct {
	TakerID     uint64 `json:"takerId"`
	MakerID     uint64 `json:"makerId"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	TakerTrader string `json:"takerTrader"`
	MakerTrader string `json:"makerTrader"`
	Timestamp   int64  `json:"timestamp"` // Unix milliseconds
}

// Level is an aggregated price level (total resting amount at one price).
type Level struct {
	Price  int64 `json:"price"`
	Amount int64 `json:"amount"`
}
