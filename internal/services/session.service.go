package services

import (
	"context"
	"sync"
	"time"

	"ineed/internal/apperrors"
	"ineed/internal/events"
	. "ineed/internal/models"
	"ineed/internal/repositories"

	logger "github.com/Bparsons0904/goLogger"
)

// Session is the state of one verified identity: its requests, notification feed
// and unread counts, plus the polling jobs that keep them fresh.
type Session struct {
	Identity Identity
	Requests repositories.RequestRepository
	Feed     *NotificationFeed
	Unread   *UnreadAggregator
	OpenedAt time.Time

	scheduler *SchedulerService
	mu        sync.Mutex
	handles   []TaskHandle
	disposed  bool
	log       logger.Logger
}

func (s *Session) track(handle TaskHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return false
	}
	s.handles = append(s.handles, handle)
	return true
}

func (s *Session) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Dispose stops the session's jobs and turns late results into no-ops. It is safe
// to call more than once.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	for _, handle := range handles {
		if err := s.scheduler.RemoveJob(handle); err != nil {
			s.log.Function("Dispose").Er("failed to stop polling job", err, "handle", handle)
		}
	}

	s.Feed.Dispose()
	s.Unread.Dispose()
	s.log.Function("Dispose").Info("Session disposed")
}

// JobFactory builds the polling jobs of a new session.
type JobFactory func(session *Session) []Job

type SessionDependencies struct {
	Guard         *AuthGuard
	Notifications NotificationAPI
	Toasted       repositories.ToastedRepository
	ChatTokens    ChatTokenSource
	Transport     ChatTransport
	Publisher     EventPublisher
	Scheduler     *SchedulerService
	FetchCooldown time.Duration
}

// SessionManager holds at most one session per role. Opening a role again replaces
// and disposes the previous session of that role.
type SessionManager struct {
	deps       SessionDependencies
	jobFactory JobFactory
	mu         sync.Mutex
	sessions   map[Role]*Session
	log        logger.Logger
}

func NewSessionManager(deps SessionDependencies) *SessionManager {
	return &SessionManager{
		deps:     deps,
		sessions: make(map[Role]*Session),
		log:      logger.New("SessionManager"),
	}
}

func (m *SessionManager) SetJobFactory(factory JobFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobFactory = factory
}

// Open stores credentials when given, verifies the role and starts a session for
// the verified identity.
func (m *SessionManager) Open(ctx context.Context, role Role, credentials Credentials) (*Session, error) {
	log := m.log.TraceFromContext(ctx).Function("Open")

	if !credentials.IsZero() {
		if err := m.deps.Guard.SignIn(ctx, role, credentials); err != nil {
			return nil, err
		}
	}

	identity, err := m.deps.Guard.Verify(ctx, role)
	if err != nil {
		log.Warn("Verification failed", "role", role, "error", err)
		m.Close(ctx, role)
		return nil, err
	}

	session := m.newSession(identity)

	m.mu.Lock()
	previous := m.sessions[role]
	m.sessions[role] = session
	factory := m.jobFactory
	m.mu.Unlock()

	if previous != nil {
		log.Info("Replacing session", "previous", previous.Identity.Key(), "next", identity.Key())
		previous.Dispose()
	}

	if factory != nil {
		for _, job := range factory(session) {
			handle, err := m.deps.Scheduler.AddJob(job)
			if err != nil {
				session.Dispose()
				m.remove(role, session)
				return nil, apperrors.Internal(err)
			}
			if !session.track(handle) {
				_ = m.deps.Scheduler.RemoveJob(handle)
			}
		}
	}

	m.publish(events.SESSION_OPENED, identity)
	log.Info("Session opened", "identity", identity.Key())
	return session, nil
}

func (m *SessionManager) newSession(identity Identity) *Session {
	return &Session{
		Identity: identity,
		Requests: repositories.NewRequestRepository(),
		Feed: NewNotificationFeed(
			identity,
			m.deps.Notifications,
			m.deps.Toasted,
			m.deps.Publisher,
			m.deps.FetchCooldown,
		),
		Unread:    NewUnreadAggregator(identity, m.deps.ChatTokens, m.deps.Transport, m.deps.Publisher),
		OpenedAt:  time.Now(),
		scheduler: m.deps.Scheduler,
		log:       logger.New("Session").With("identity", identity.Key()),
	}
}

// Restore reopens every role that still has stored credentials.
func (m *SessionManager) Restore(ctx context.Context) []Identity {
	log := m.log.Function("Restore")

	restored := make([]Identity, 0, len(Roles))
	for _, role := range Roles {
		if _, ok := m.Get(role); ok {
			continue
		}
		session, err := m.Open(ctx, role, Credentials{})
		if err != nil {
			if !apperrors.IsKind(err, apperrors.KindAuth) {
				log.Warn("Could not restore session", "role", role, "error", err)
			}
			continue
		}
		restored = append(restored, session.Identity)
	}
	return restored
}

func (m *SessionManager) Get(role Role) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[role]
	return session, ok
}

// Close disposes the role's session; credentials stay stored.
func (m *SessionManager) Close(ctx context.Context, role Role) {
	m.mu.Lock()
	session, ok := m.sessions[role]
	delete(m.sessions, role)
	m.mu.Unlock()

	if ok {
		session.Dispose()
		m.publish(events.SESSION_CLOSED, session.Identity)
	}
}

// SignOut closes the session and forgets the role's credentials.
func (m *SessionManager) SignOut(ctx context.Context, role Role) error {
	m.Close(ctx, role)
	return m.deps.Guard.SignOut(ctx, role)
}

func (m *SessionManager) CloseAll(ctx context.Context) {
	for _, role := range Roles {
		m.Close(ctx, role)
	}
}

func (m *SessionManager) remove(role Role, session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[role] == session {
		delete(m.sessions, role)
	}
}

func (m *SessionManager) publish(kind events.MessageType, identity Identity) {
	if m.deps.Publisher == nil {
		return
	}

	err := m.deps.Publisher.Publish(events.SESSION_CHANNEL, events.Event{
		Type:     kind,
		Identity: identity.Key(),
		Data:     map[string]any{"role": string(identity.Role), "userId": identity.UserID.String()},
	})
	if err != nil {
		m.log.Function("publish").Er("failed to publish session event", err, "type", kind)
	}
}
