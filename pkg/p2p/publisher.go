package p2p

import (
	"context"
	"encoding/json"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/crudolabs/crudo/pkg/book"
	"github.com/crudolabs/crudo/pkg/engine"
)

const topicTrades = "crudo-trades"

// Publisher gossips executed trades to peers over libp2p pubsub. It is a
// best-effort trade sink: a publish failure never affects the book.
type Publisher struct {
	h     host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	log   *zap.SugaredLogger
}

type Config struct {
	ListenAddr string   // multiaddr, e.g. /ip4/0.0.0.0/tcp/9000; empty = ephemeral
	Bootstrap  []string // peer multiaddrs to dial at startup
	Logger     *zap.SugaredLogger
}

func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}
	topic, err := ps.Join(topicTrades)
	if err != nil {
		return nil, err
	}

	p := &Publisher{h: h, ps: ps, topic: topic, log: cfg.Logger}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return p, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (p *Publisher) PublishTrades(ctx context.Context, trades []book.Trade) error {
	for _, t := range trades {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := p.topic.Publish(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe returns a subscription to the trades topic; used by peers (and
// tests) to observe the gossip stream.
func (p *Publisher) Subscribe() (*pubsub.Subscription, error) {
	return p.topic.Subscribe()
}

func (p *Publisher) Close() error { return p.h.Close() }

var _ engine.TradeSink = (*Publisher)(nil)
