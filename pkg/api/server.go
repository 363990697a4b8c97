package api

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/crudolabs/crudo/pkg/book"
	"github.com/crudolabs/crudo/pkg/engine"
)

// Scales converts between wire decimals and the core's fixed-point units.
// Price ticks = price * Price; amount lots = amount * Amount.
type Scales struct {
	Price  int64
	Amount int64
}

func (s Scales) ToTicks(v float64) int64   { return int64(math.Round(v * float64(s.Price))) }
func (s Scales) ToLots(v float64) int64    { return int64(math.Round(v * float64(s.Amount))) }
func (s Scales) FromTicks(v int64) float64 { return float64(v) / float64(s.Price) }
func (s Scales) FromLots(v int64) float64  { return float64(v) / float64(s.Amount) }

// Server exposes order submission and book queries over REST, and trade/book
// updates over WebSocket.
type Server struct {
	eng    *engine.Engine
	router *mux.Router
	hub    *Hub
	scales Scales
	log    *zap.SugaredLogger
}

func NewServer(eng *engine.Engine, scales Scales, log *zap.SugaredLogger) *Server {
	s := &Server{
		eng:    eng,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		scales: scales,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Hub returns the WebSocket hub so it can be wired as a trade sink.
func (s *Server) Hub() *Hub { return s.hub }

// Start runs the hub and blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	side, err := book.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "rejected", err.Error())
		return
	}

	res, err := s.eng.Submit(engine.Submission{
		Price:     s.scales.ToTicks(req.Price),
		Amount:    s.scales.ToLots(req.Amount),
		Side:      side,
		Trader:    req.Trader,
		PublicKey: req.PublicKey,
		Signature: req.Signature,
		Nonce:     req.Nonce,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, "rejected", err.Error())
		return
	}

	respondJSON(w, SubmitOrderResponse{
		Status:        "accepted",
		OrderID:       res.OrderID,
		Trades:        s.tradeInfos(res.Trades),
		RestingAmount: s.scales.FromLots(res.RestingAmount),
	})
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	bids, asks := s.eng.Depth()
	respondJSON(w, OrderbookResponse{
		Bids:      s.depthLevels(bids),
		Asks:      s.depthLevels(asks),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.tradeInfos(s.eng.RecentTrades(100)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) tradeInfos(trades []book.Trade) []TradeInfo {
	out := make([]TradeInfo, len(trades))
	for i, t := range trades {
		out[i] = TradeInfo{
			TakerID:     t.TakerID,
			MakerID:     t.MakerID,
			Price:       s.scales.FromTicks(t.Price),
			Quantity:    s.scales.FromLots(t.Quantity),
			TakerTrader: t.TakerTrader,
			MakerTrader: t.MakerTrader,
			Timestamp:   t.Timestamp,
		}
	}
	return out
}

func (s *Server) depthLevels(levels []book.Level) []DepthLevel {
	out := make([]DepthLevel, len(levels))
	for i, l := range levels {
		out[i] = DepthLevel{Price: s.scales.FromTicks(l.Price), Amount: s.scales.FromLots(l.Amount)}
	}
	return out
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errStr, Message: message})
}
