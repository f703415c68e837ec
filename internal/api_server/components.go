package apiserver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/events"
	"github.com/clipforge/clipforge/internal/objectstore"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/store"
)

const (
	objectStoreMinio  = "minio"
	objectStoreMemory = "memory"
	objectStoreNone   = "none"

	dbTypePostgres = "pgsql"

	maxPendingEvents = 10000
)

// NewObjectStore returns nil when uploads are disabled.
func NewObjectStore(ctx context.Context, cfg *config.Config) (objectstore.ObjectStore, error) {
	switch cfg.S3.Backend {
	case objectStoreMinio:
		store, err := objectstore.NewMinioStore(
			objectstore.WithEndpoint(cfg.S3.Endpoint),
			objectstore.WithBucket(cfg.S3.Bucket),
			objectstore.WithAccessKey(cfg.S3.AccessKey),
			objectstore.WithSecretKey(cfg.S3.SecretKey),
			objectstore.WithSSL(cfg.S3.UseSSL),
		)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case objectStoreMemory, "":
		zap.S().Named("api_server").Warn("uploads are kept in memory and lost on restart")
		return objectstore.NewMemoryStore(cfg.S3.Bucket), nil
	case objectStoreNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.S3.Backend)
	}
}

func NewEventProducer(cfg *config.Config) (*events.EventProducer, error) {
	var writer events.Writer = events.NewLogWriter()
	if cfg.Nats.URL != "" {
		w, err := events.NewNatsWriter(cfg.Nats.URL)
		if err != nil {
			return nil, err
		}
		writer = w
	}
	return events.NewEventProducer(writer,
		events.WithOutputTopic(cfg.Nats.Subject),
		events.WithMaxPending(maxPendingEvents),
	), nil
}

func PipelineOptions(cfg *config.Config) pipeline.Options {
	opts := pipeline.Options{
		StageDelay:   cfg.Pipeline.StageDelay,
		StageTimeout: cfg.Pipeline.StageTimeout,
		Policy: pipeline.ClipPolicy{
			Count:      cfg.Pipeline.ClipCount,
			MinSeconds: cfg.Pipeline.MinClipSeconds,
			MaxSeconds: cfg.Pipeline.MaxClipSeconds,
		},
		Sources: pipeline.SeededSource,
	}
	if !cfg.Pipeline.Deterministic {
		opts.Sources = pipeline.EntropySource
	}
	return opts
}

func QueueOptions(cfg *config.Config) pipeline.QueueOptions {
	return pipeline.QueueOptions{
		Workers:         cfg.Pipeline.Workers,
		RequeueInterval: cfg.Pipeline.RequeueInterval,
		RunTimeout:      pipeline.RunTimeout(cfg.Pipeline.StageTimeout),
	}
}

// newRiverPool opens the pgx pool river uses for fetching and LISTEN/NOTIFY.
func newRiverPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	// parsed as key/value pairs so credentials need no escaping
	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s dbname=%s",
		cfg.Database.Hostname,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Port,
		cfg.Database.Name,
	)
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Pipeline.Workers) + 4
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// NewJobQueue returns the river queue for the configured database and a func
// releasing the connections it opened. sqlite shares the gorm connection.
func NewJobQueue(ctx context.Context, cfg *config.Config, db *gorm.DB, s store.Store, runner pipeline.JobRunner) (pipeline.JobQueue, func(), error) {
	if cfg.Database.Type == dbTypePostgres {
		pool, err := newRiverPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		q, err := pipeline.NewQueue[pgx.Tx](riverpgxv5.New(pool), s, runner, QueueOptions(cfg))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return q, pool.Close, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	q, err := pipeline.NewQueue[*sql.Tx](riversqlite.New(sqlDB), s, runner, QueueOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	return q, func() {}, nil
}

// MigrateJobQueue applies the river schema next to the goose migrations.
func MigrateJobQueue(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg.Database.Type == dbTypePostgres {
		pool, err := newRiverPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		return pipeline.MigrateQueue[pgx.Tx](ctx, riverpgxv5.New(pool))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return pipeline.MigrateQueue[*sql.Tx](ctx, riversqlite.New(sqlDB))
}
