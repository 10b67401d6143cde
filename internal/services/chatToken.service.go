package services

import (
	"context"
	"sync"

	. "ineed/internal/models"
	"ineed/internal/repositories"

	logger "github.com/Bparsons0904/goLogger"
)

type ChatTokenMinter interface {
	GenerateChatToken(ctx context.Context, identity Identity) (string, error)
}

// ChatTokenService hands out the chat token of an identity, minting and persisting
// one when none is stored.
type ChatTokenService struct {
	minter ChatTokenMinter
	tokens repositories.ChatTokenRepository
	mu     sync.Mutex
	log    logger.Logger
}

func NewChatTokenService(minter ChatTokenMinter, tokens repositories.ChatTokenRepository) *ChatTokenService {
	return &ChatTokenService{
		minter: minter,
		tokens: tokens,
		log:    logger.New("ChatTokenService"),
	}
}

func (s *ChatTokenService) Token(ctx context.Context, identity Identity) (string, error) {
	log := s.log.TraceFromContext(ctx).Function("Token")

	s.mu.Lock()
	defer s.mu.Unlock()

	token, found, err := s.tokens.Get(ctx, identity)
	if err != nil {
		log.Warn("Chat token store unavailable, minting a new token", "identity", identity.Key(), "error", err)
	}
	if found {
		return token, nil
	}

	token, err = s.minter.GenerateChatToken(ctx, identity)
	if err != nil {
		return "", log.Err("failed to mint chat token", err, "identity", identity.Key())
	}

	if err := s.tokens.Save(ctx, identity, token); err != nil {
		log.Er("failed to persist chat token", err, "identity", identity.Key())
	}

	return token, nil
}

func (s *ChatTokenService) Invalidate(ctx context.Context, identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tokens.Delete(ctx, identity); err != nil {
		s.log.Function("Invalidate").Er("failed to drop chat token", err, "identity", identity.Key())
	}
}
