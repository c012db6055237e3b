package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"example.com/popular/cmd/server"
	"example.com/popular/cmd/worker"
	appkafka "example.com/popular/internal/broker"
	"example.com/popular/internal/graph"
	config "example.com/popular/internal/init"
	"example.com/popular/internal/logger"
	"example.com/popular/internal/reconcile"
	"example.com/popular/internal/service"
	"example.com/popular/internal/store"
	"example.com/popular/internal/thread"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()
	mode := cfg.Mode

	if err := logger.Init(cfg.LogEnv); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()
	logg := logger.New()

	// Initialize Cassandra store connection
	st, err := store.New()
	if err != nil {
		log.Fatalf("Cassandra connection failed: %v", err)
	}
	defer st.Close()

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "server":
		// Serve the API; committed edge changes are published for the worker
		publisher := appkafka.NewEdgePublisher(appkafka.NewKafkaWriter(kafkaCfg))
		defer publisher.Close()

		svc := service.New(st,
			graph.New(st, publisher),
			thread.New(st),
			service.BcryptHasher{Cost: bcrypt.DefaultCost},
			service.DiskImages{Dir: cfg.UploadDir},
		)
		server.Run(ctx, svc, cfg)
	case "worker":
		// Re-check every pair named by an edge event
		w := worker.New(reconcile.New(st, cfg.ReconcileWorkers), appkafka.NewKafkaReader(kafkaCfg), 0, 0)
		defer w.Close()
		w.Run(ctx)
	case "reconcile":
		// One full sweep over both sides of every relationship
		rep, err := reconcile.New(st, cfg.ReconcileWorkers).Sweep(ctx)
		if err != nil {
			logg.Error("main", "Reconcile sweep failed", err)
			break
		}
		logg.Info("main", "Reconcile sweep finished",
			zap.Int("checked", rep.Checked), zap.Int("repaired", rep.Repaired), zap.Int("dangling", rep.Dangling))
	default:
		log.Fatalf("unknown mode: %s", mode)
	}

	logg.Info("main", "Shutdown completed")
}
