package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/minjen/minjen-counter/backend/go-services/internal/config"
	"github.com/minjen/minjen-counter/backend/go-services/internal/database"
	"github.com/minjen/minjen-counter/backend/go-services/internal/storage"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// MongoCollection holds the single state document.
const MongoCollection = "state"

// Opened is a repository together with the connections it owns.
type Opened struct {
	Repository
	Backend string
	closers []func(ctx context.Context) error
}

// Close releases the backend connections.
func (o *Opened) Close(ctx context.Context) error {
	var first error
	for _, c := range o.closers {
		if err := c(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open connects the backend selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config) (*Opened, error) {
	log := logger.Named("store")
	o := &Opened{Backend: cfg.Store.Backend}
	switch cfg.Store.Backend {
	case config.BackendFile:
		o.Repository = NewFileRepo(cfg.Store.DataFile)
		log.Infof("using file %s", cfg.Store.DataFile)
	case config.BackendMemory:
		o.Repository = NewMemoryRepo()
		log.Warnf("using in-memory store; state is lost on restart")
	case config.BackendMongo:
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			return nil, err
		}
		o.closers = append(o.closers, client.Disconnect)
		o.Repository = NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection(MongoCollection))
		log.Infof("using mongo database %s", cfg.MongoDB.Database)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr(), err)
		}
		o.closers = append(o.closers, func(context.Context) error { return client.Close() })
		o.Repository = NewRedisRepo(client, cfg.Redis.StateKey)
		log.Infof("using redis %s key %s", cfg.Redis.Addr(), cfg.Redis.StateKey)
	case config.BackendMinIO:
		st, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			return nil, err
		}
		o.Repository = NewMinioRepo(st, cfg.MinIO.Object)
		log.Infof("using minio %s/%s", cfg.MinIO.Bucket, cfg.MinIO.Object)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return o, nil
}
