package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/crudolabs/crudo/params"
	"github.com/crudolabs/crudo/pkg/api"
	"github.com/crudolabs/crudo/pkg/auth"
	"github.com/crudolabs/crudo/pkg/book"
	"github.com/crudolabs/crudo/pkg/engine"
	"github.com/crudolabs/crudo/pkg/kafka"
	"github.com/crudolabs/crudo/pkg/p2p"
	"github.com/crudolabs/crudo/pkg/storage"
	"github.com/crudolabs/crudo/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Persistence ----
	store, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "book.db"))
	if err != nil {
		sugar.Fatalw("store_open_failed", "err", err)
	}
	defer store.Close()

	wal, err := storage.NewFileWAL(cfg.Node.WALPath)
	if err != nil {
		sugar.Fatalw("wal_open_failed", "err", err)
	}
	defer wal.Close()

	// ---- Authentication ----
	nonces, err := auth.NewNonceRegistry(store, sugar)
	if err != nil {
		sugar.Fatalw("nonce_registry_failed", "err", err)
	}
	authn := auth.NewAuthenticator(nonces, sugar)

	// ---- Engine ----
	eng := engine.New(book.New(), authn, engine.Config{
		Gateway:        store,
		WAL:            wal,
		Logger:         sugar,
		QueueDepth:     cfg.Node.PublishQueue,
		PublishTimeout: cfg.Node.PublishTimeout,
	})
	if err := eng.Restore(ctx); err != nil {
		sugar.Fatalw("restore_failed", "err", err)
	}

	// ---- API + trade sinks ----
	scales := api.Scales{Price: cfg.Market.PriceScale, Amount: cfg.Market.AmountScale}
	server := api.NewServer(eng, scales, sugar)

	sinks := engine.MultiSink{api.NewBroadcaster(server)}

	if cfg.Broadcast.KafkaEnabled {
		producer := kafka.NewProducer(cfg.Broadcast.KafkaBrokers, cfg.Broadcast.KafkaTopic)
		defer producer.Close()
		sinks = append(sinks, producer)
		sugar.Infow("kafka_sink_enabled", "brokers", cfg.Broadcast.KafkaBrokers, "topic", cfg.Broadcast.KafkaTopic)
	}

	if cfg.Broadcast.P2PEnabled {
		pub, err := p2p.NewPublisher(ctx, p2p.Config{
			ListenAddr: cfg.Broadcast.P2PListen,
			Bootstrap:  cfg.Broadcast.P2PBootstrap,
			Logger:     sugar,
		})
		if err != nil {
			sugar.Fatalw("p2p_init_failed", "err", err)
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	eng.SetSink(sinks)
	eng.Start(ctx)

	sugar.Infow("node_starting",
		"asset", cfg.Market.Asset,
		"api_addr", cfg.Node.APIAddr,
		"price_scale", cfg.Market.PriceScale,
		"amount_scale", cfg.Market.AmountScale)

	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("node_stopping")

	// Final checkpoint: the async publisher may still hold queued snapshots,
	// so persist the live book directly before the store closes.
	if err := store.SaveSnapshot(context.Background(), eng.SnapshotNow()); err != nil {
		sugar.Errorw("final_checkpoint_failed", "err", err)
	}
}
