package services

import (
	"ineed/config"
	"ineed/internal/events"
	"ineed/internal/repositories"
)

type Service struct {
	Backend    *BackendService
	ChatTokens *ChatTokenService
	Chat       *StreamChatTransport
	Guard      *AuthGuard
	Scheduler  *SchedulerService
	Sessions   *SessionManager
}

func New(repos repositories.Repository, config config.Config, eventBus *events.EventBus) Service {
	backendService := NewBackendService(config, repos.Credentials)
	chatTokenService := NewChatTokenService(backendService, repos.ChatTokens)
	chatTransport := NewStreamChatTransport(config)
	authGuard := NewAuthGuard(backendService, repos.Credentials)
	schedulerService := NewSchedulerService()

	sessionManager := NewSessionManager(SessionDependencies{
		Guard:         authGuard,
		Notifications: backendService,
		Toasted:       repos.Toasted,
		ChatTokens:    chatTokenService,
		Transport:     chatTransport,
		Publisher:     eventBus,
		Scheduler:     schedulerService,
		FetchCooldown: config.FetchCooldown(),
	})

	return Service{
		Backend:    backendService,
		ChatTokens: chatTokenService,
		Chat:       chatTransport,
		Guard:      authGuard,
		Scheduler:  schedulerService,
		Sessions:   sessionManager,
	}
}
