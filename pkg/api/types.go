package api

// Request/response types for REST endpoints and WebSocket messages.

// SubmitOrderRequest is the payload for POST /api/v1/orders. Price and amount
// are decimal numbers on the wire and converted to fixed point at this edge;
// the core only sees integer ticks and lots. PublicKey must be hex of 32
// bytes and Signature hex of 64 bytes, covering the canonical order message
// (price|amount|side|nonce|trader in fixed-point units, domain-prefixed).
type SubmitOrderRequest struct {
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	Side      string  `json:"side"` // "buy" | "sell"
	Trader    string  `json:"trader"`
	PublicKey string  `json:"publicKey"`
	Signature string  `json:"signature"`
	Nonce     uint64  `json:"nonce"`
}

// SubmitOrderResponse reports the outcome of an accepted submission.
type SubmitOrderResponse struct {
	Status        string      `json:"status"` // "accepted"
	OrderID       uint64      `json:"orderId"`
	Trades        []TradeInfo `json:"trades"`
	RestingAmount float64     `json:"restingAmount"` // 0 = fully filled
}

// TradeInfo is one execution, prices and quantities in decimal units.
type TradeInfo struct {
	TakerID     uint64  `json:"takerId"`
	MakerID     uint64  `json:"makerId"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	TakerTrader string  `json:"takerTrader"`
	MakerTrader string  `json:"makerTrader"`
	Timestamp   int64   `json:"timestamp"`
}

// DepthLevel is one aggregated price level.
type DepthLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// OrderbookResponse is the aggregated depth: bids high to low, asks low to
// high.
type OrderbookResponse struct {
	Bids      []DepthLevel `json:"bids"`
	Asks      []DepthLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}

// ErrorResponse is returned for all errors, including rejected submissions.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is sent by a client to manage channel subscriptions.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"` // "trades", "orderbook"
}

// TradeUpdate is broadcast on the "trades" channel per execution.
type TradeUpdate struct {
	Type        string  `json:"type"` // "trade"
	TakerID     uint64  `json:"takerId"`
	MakerID     uint64  `json:"makerId"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	TakerTrader string  `json:"takerTrader"`
	MakerTrader string  `json:"makerTrader"`
	Timestamp   int64   `json:"timestamp"`
}

// OrderbookUpdate is broadcast on the "orderbook" channel after a submission
// settles.
type OrderbookUpdate struct {
	Type      string       `json:"type"` // "orderbook"
	Bids      []DepthLevel `json:"bids"`
	Asks      []DepthLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}
