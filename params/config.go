package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Node struct {
	APIAddr        string
	DataDir        string // pebble store lives at <DataDir>/book.db
	WALPath        string // append-only accepted-order log
	LogFile        string
	PublishQueue   int           // bounded depth of the async publish queue
	PublishTimeout time.Duration // per sink/gateway call
}

// Market fixes the single tradable asset and its fixed-point scales. Prices
// are stored as integer ticks (decimal price * PriceScale) and amounts as
// integer lots (decimal amount * AmountScale).
type Market struct {
	Asset       string
	PriceScale  int64
	AmountScale int64
}

// Broadcast selects which trade sinks run beside the always-on WebSocket hub.
type Broadcast struct {
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	P2PEnabled   bool
	P2PListen    string // multiaddr
	P2PBootstrap []string
}

type Config struct {
	Node      Node
	Market    Market
	Broadcast Broadcast
}

func Default() Config {
	return Config{
		Node: Node{
			APIAddr:        ":8080",
			DataDir:        "data",
			WALPath:        "data/orders.wal",
			LogFile:        "data/node.log",
			PublishQueue:   64,
			PublishTimeout: 5 * time.Second,
		},
		Market: Market{
			Asset:       "CRDO",
			PriceScale:  100,   // cents
			AmountScale: 10000, // 1e-4 units
		},
		Broadcast: Broadcast{
			KafkaTopic: "crudo.trades",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("WAL_PATH"); v != "" {
		cfg.Node.WALPath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("PUBLISH_QUEUE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Node.PublishQueue = n
		}
	}
	if v := os.Getenv("PUBLISH_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Node.PublishTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("ASSET"); v != "" {
		cfg.Market.Asset = v
	}
	if v := os.Getenv("PRICE_SCALE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Market.PriceScale = n
		}
	}
	if v := os.Getenv("AMOUNT_SCALE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Market.AmountScale = n
		}
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Broadcast.KafkaEnabled = true
		cfg.Broadcast.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Broadcast.KafkaTopic = v
	}
	if v := os.Getenv("P2P_LISTEN"); v != "" {
		cfg.Broadcast.P2PEnabled = true
		cfg.Broadcast.P2PListen = v
	}
	if v := os.Getenv("P2P_BOOTSTRAP"); v != "" {
		cfg.Broadcast.P2PBootstrap = splitList(v)
	}

	return cfg
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
