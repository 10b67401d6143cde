package database

import (
	"context"
	"time"

	"ineed/config"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/valkey-io/valkey-go"
)

type CacheClient valkey.Client

type Cache struct {
	General       CacheClient
	Session       CacheClient
	Notifications CacheClient
	Events        CacheClient
}

// DB holds the valkey clients. Every client is nil when no cache address is
// configured; callers fall back to in-memory stores.
type DB struct {
	Cache Cache
	log   logger.Logger
}

func New(config config.Config) (DB, error) {
	log := logger.New("database").Function("New")

	db := &DB{log: log}
	if !config.CacheEnabled() {
		log.Info("No cache address configured, using in-memory stores")
		return *db, nil
	}

	log.Info("Initializing cache database")
	if err := db.initializeCacheDB(config); err != nil {
		return DB{}, log.Err("failed to initialize cache database", err)
	}

	return *db, nil
}

func (s *DB) Enabled() bool {
	return s.Cache.General != nil
}

func (s *DB) Close() error {
	for _, client := range s.clients() {
		client.client.Close()
	}
	return nil
}

func (s *DB) Ping(ctx context.Context) error {
	log := s.log.Function("Ping")
	for _, cache := range s.clients() {
		if err := cache.client.Do(ctx, cache.client.B().Ping().Build()).Error(); err != nil {
			return log.Err("cache ping failed", err, "cache", cache.name)
		}
	}
	return nil
}

func (s *DB) FlushAllCaches() error {
	log := s.log.Function("FlushAllCaches")
	log.Info("Flushing all cache databases")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, cache := range s.clients() {
		if err := cache.client.Do(ctx, cache.client.B().Flushdb().Build()).Error(); err != nil {
			return log.Err("Failed to flush cache database", err, "cache", cache.name)
		}
		log.Info("Successfully flushed cache database", "cache", cache.name)
	}

	return nil
}

type namedClient struct {
	client CacheClient
	name   string
}

func (s *DB) clients() []namedClient {
	all := []namedClient{
		{s.Cache.General, "General"},
		{s.Cache.Session, "Session"},
		{s.Cache.Notifications, "Notifications"},
		{s.Cache.Events, "Events"},
	}

	active := make([]namedClient, 0, len(all))
	for _, c := range all {
		if c.client != nil {
			active = append(active, c)
		}
	}
	return active
}
