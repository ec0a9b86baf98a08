package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptscheduler/libs/config"
	"github.com/md-rashed-zaman/apptscheduler/libs/db"
	"github.com/md-rashed-zaman/apptscheduler/libs/kafkax"
	"github.com/md-rashed-zaman/apptscheduler/libs/runtime"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/catalog"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/consumer"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/inbox"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
)

// backend bundles the selected store with the workers that depend on it.
type backend struct {
	driver      string
	store       storage.Store
	pool        *db.Pool
	outboxRepo  *outbox.Repository
	inbox       inbox.Recorder
	readyChecks []runtime.ReadyCheck
}

func openBackend(ctx context.Context, logger *slog.Logger) (*backend, error) {
	driver := driverFromEnv()
	switch driver {
	case "memory":
		logger.Warn("using in-memory storage; data is lost on restart")
		return &backend{driver: driver, store: storage.NewMemoryStore(), inbox: inbox.NewMemory()}, nil
	case "postgres":
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q (want postgres or memory)", driver)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	maxRetries, err := config.Int("ADMISSION_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		return nil, fmt.Errorf("db connection failed: %w", err)
	}
	if config.Bool("DB_AUTO_MIGRATE", true) {
		if err := storage.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("schema ensured")
	}

	outboxRepo := outbox.NewRepository(pool)
	b := &backend{
		driver:     driver,
		store:      storage.NewPostgresStore(pool, outboxRepo, maxRetries),
		pool:       pool,
		outboxRepo: outboxRepo,
		inbox:      inbox.NewRepository(pool),
		readyChecks: []runtime.ReadyCheck{
			{Name: "db", Check: db.ReadyCheck(pool)},
		},
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		b.readyChecks = append(b.readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	return b, nil
}

// seedCatalog loads CATALOG_SEED_FILE, if set, so a memory-backed instance has services and
// collaborators without Kafka.
func (b *backend) seedCatalog(ctx context.Context, logger *slog.Logger) error {
	path := config.String("CATALOG_SEED_FILE", "")
	if path == "" {
		if b.driver == "memory" && config.String("KAFKA_BROKERS", "") == "" {
			logger.Warn("no catalog source; set CATALOG_SEED_FILE or KAFKA_BROKERS")
		}
		return nil
	}
	n, err := catalog.NewSyncer(b.store).LoadSeedFile(ctx, path)
	if err != nil {
		return err
	}
	logger.Info("catalog seeded", "path", path, "entries", n)
	return nil
}

// startWorkers runs the outbox publisher and the catalog consumer when Kafka is configured.
func (b *backend) startWorkers(ctx context.Context, logger *slog.Logger) {
	brokers := config.String("KAFKA_BROKERS", "")
	if brokers == "" {
		logger.Info("kafka not configured; outbox relay and catalog sync disabled")
		return
	}

	if b.pool != nil {
		publisher := outbox.NewPublisher(b.pool, b.outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
	}

	topics := config.List("KAFKA_CATALOG_TOPICS", "")
	if len(topics) == 0 {
		topics = catalog.Topics
	}
	syncer := catalog.NewSyncer(b.store)
	catalogConsumer := consumer.New(logger, b.inbox, consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
		Topics:  topics,
	}, syncer.Handle)
	go catalogConsumer.Run(ctx)
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}
