package database

import (
	"fmt"

	"ineed/config"

	"github.com/valkey-io/valkey-go"
)

// Valkey database index organization
const (
	// GENERAL_CACHE_INDEX (DB 0) - miscellaneous agent state
	GENERAL_CACHE_INDEX = iota

	// SESSION_CACHE_INDEX (DB 1) - API credentials and chat tokens per role
	SESSION_CACHE_INDEX

	// NOTIFICATION_CACHE_INDEX (DB 2) - toasted notification ids per identity
	NOTIFICATION_CACHE_INDEX

	// EVENTS_CACHE_INDEX (DB 3) - event bus pub/sub
	EVENTS_CACHE_INDEX
)

func (s *DB) initializeCacheDB(config config.Config) error {
	log := s.log.Function("initializeCacheDB")

	address := fmt.Sprintf("%s:%d", config.DatabaseCacheAddress, config.DatabaseCachePort)

	indexes := []struct {
		index  int
		name   string
		target *CacheClient
	}{
		{GENERAL_CACHE_INDEX, "general", &s.Cache.General},
		{SESSION_CACHE_INDEX, "session", &s.Cache.Session},
		{NOTIFICATION_CACHE_INDEX, "notification", &s.Cache.Notifications},
		{EVENTS_CACHE_INDEX, "events", &s.Cache.Events},
	}

	for _, idx := range indexes {
		client, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: []string{address},
			SelectDB:    idx.index,
		})
		if err != nil {
			_ = s.Close()
			return log.Err("failed to create valkey client", err, "cache", idx.name)
		}
		*idx.target = client
	}

	log.Info("Connected to valkey", "address", address)
	return nil
}
