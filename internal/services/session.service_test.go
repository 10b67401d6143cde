package services

import (
	"context"
	"testing"
	"time"

	"ineed/internal/apperrors"
	"ineed/internal/events"
	. "ineed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	manager   *SessionManager
	verifier  *fakeVerifier
	scheduler *SchedulerService
	publisher *recordingPublisher
	jobs      []*countingJob
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	repos := newTestRepos()
	verifier := &fakeVerifier{identity: Identity{UserID: "5"}}
	scheduler := NewSchedulerService()
	publisher := &recordingPublisher{}
	t.Cleanup(func() { _ = scheduler.Stop(context.Background()) })

	fixture := &sessionFixture{verifier: verifier, scheduler: scheduler, publisher: publisher}
	fixture.manager = NewSessionManager(SessionDependencies{
		Guard:         NewAuthGuard(verifier, repos.Credentials),
		Notifications: newFakeNotificationAPI(),
		Toasted:       repos.Toasted,
		ChatTokens:    &fakeTokenSource{token: "t"},
		Transport:     &fakeChat{userID: "5"},
		Publisher:     publisher,
		Scheduler:     scheduler,
		FetchCooldown: time.Second,
	})
	fixture.manager.SetJobFactory(func(session *Session) []Job {
		job := &countingJob{name: "poll:" + session.Identity.Key(), interval: time.Hour}
		fixture.jobs = append(fixture.jobs, job)
		return []Job{job}
	})

	return fixture
}

func TestSessionManager_OpenRegistersJobs(t *testing.T) {
	fixture := newSessionFixture(t)

	session, err := fixture.manager.Open(context.Background(), RoleClient, Credentials{AccessToken: "a"})
	require.NoError(t, err)
	assert.Equal(t, Identity{Role: RoleClient, UserID: "5"}, session.Identity)
	assert.Equal(t, 1, fixture.scheduler.GetJobCount())

	got, ok := fixture.manager.Get(RoleClient)
	require.True(t, ok)
	assert.Same(t, session, got)

	require.Eventually(t, func() bool {
		return fixture.jobs[0].runs.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, fixture.publisher.ofType(events.SESSION_OPENED), 1)
}

func TestSessionManager_ReopenDisposesPrevious(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	first, err := fixture.manager.Open(ctx, RoleClient, Credentials{AccessToken: "a"})
	require.NoError(t, err)

	fixture.verifier.identity = Identity{UserID: "6"}
	second, err := fixture.manager.Open(ctx, RoleClient, Credentials{})
	require.NoError(t, err)

	assert.True(t, first.Disposed())
	assert.False(t, second.Disposed())
	assert.Equal(t, ID("6"), second.Identity.UserID)
	assert.Equal(t, 1, fixture.scheduler.GetJobCount())
	assert.False(t, first.Feed.Fetch(ctx))
}

func TestSessionManager_RolesAreIndependent(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	_, err := fixture.manager.Open(ctx, RoleClient, Credentials{AccessToken: "a"})
	require.NoError(t, err)
	_, err = fixture.manager.Open(ctx, RoleProfessional, Credentials{AccessToken: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, fixture.scheduler.GetJobCount())

	fixture.manager.Close(ctx, RoleClient)

	_, ok := fixture.manager.Get(RoleClient)
	assert.False(t, ok)
	_, ok = fixture.manager.Get(RoleProfessional)
	assert.True(t, ok)
	assert.Equal(t, 1, fixture.scheduler.GetJobCount())
	assert.Len(t, fixture.publisher.ofType(events.SESSION_CLOSED), 1)
}

func TestSessionManager_FailedVerificationClosesSession(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	_, err := fixture.manager.Open(ctx, RoleClient, Credentials{AccessToken: "a"})
	require.NoError(t, err)

	fixture.verifier.err = apperrors.Unauthorized(401, "expired")
	_, err = fixture.manager.Open(ctx, RoleClient, Credentials{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuth))

	_, ok := fixture.manager.Get(RoleClient)
	assert.False(t, ok)
	assert.Equal(t, 0, fixture.scheduler.GetJobCount())
}

func TestSessionManager_RestoreAndSignOut(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.manager.deps.Guard.SignIn(ctx, RoleProfessional, Credentials{AccessToken: "b"}))

	restored := fixture.manager.Restore(ctx)
	require.Len(t, restored, 1)
	assert.Equal(t, RoleProfessional, restored[0].Role)

	require.NoError(t, fixture.manager.SignOut(ctx, RoleProfessional))
	assert.Empty(t, fixture.manager.Restore(ctx))
}
