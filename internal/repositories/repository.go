package repositories

import (
	"ineed/config"
	"ineed/internal/database"
)

// Repository groups the stores shared by every session of the agent. Request
// stores are per session and built with NewRequestRepository.
type Repository struct {
	Toasted     ToastedRepository
	Credentials CredentialRepository
	ChatTokens  ChatTokenRepository
}

func New(db database.DB, config config.Config) Repository {
	var sessionStore keyValueStore = newMemoryStore()
	if db.Cache.Session != nil {
		sessionStore = newValkeyStore(db.Cache.Session)
	}

	toastedOptions := ToastedOptions{
		Capacity: config.ToastedSetCapacity,
		TTL:      config.ToastedSetTTL(),
	}

	var toasted ToastedRepository
	if db.Cache.Notifications != nil {
		toasted = NewValkeyToastedRepository(db.Cache.Notifications, toastedOptions)
	} else {
		toasted = NewMemoryToastedRepository(toastedOptions)
	}

	return Repository{
		Toasted:     toasted,
		Credentials: NewCredentialRepository(sessionStore),
		ChatTokens:  NewChatTokenRepository(sessionStore),
	}
}
