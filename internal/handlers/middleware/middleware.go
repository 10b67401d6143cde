package middleware

import (
	"context"

	"ineed/config"
	. "ineed/internal/models"
	"ineed/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

// SessionStore is the part of the session manager the gateway needs.
type SessionStore interface {
	Open(ctx context.Context, role Role, credentials Credentials) (*services.Session, error)
	Get(role Role) (*services.Session, bool)
	SignOut(ctx context.Context, role Role) error
}

type Middleware struct {
	Sessions SessionStore
	Config   config.Config
	log      logger.Logger
}

func New(sessions SessionStore, config config.Config) Middleware {
	log := logger.New("middleware")

	return Middleware{
		Sessions: sessions,
		Config:   config,
		log:      log,
	}
}
