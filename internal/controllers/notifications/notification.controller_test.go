package notificationController

import (
	"context"
	"sync"
	"testing"

	"ineed/config"
	"ineed/internal/apperrors"
	"ineed/internal/database"
	. "ineed/internal/models"
	"ineed/internal/repositories"
	"ineed/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotificationAPI struct {
	mu            sync.Mutex
	notifications []Notification
	deleteErr     error
	marked        []ID
}

func (s *stubNotificationAPI) FetchNotifications(ctx context.Context, identity Identity) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.notifications...), nil
}

func (s *stubNotificationAPI) MarkNotificationRead(ctx context.Context, identity Identity, id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, id)
	return nil
}

func (s *stubNotificationAPI) DeleteNotifications(ctx context.Context, identity Identity, ids []ID) error {
	return s.deleteErr
}

func newSession(t *testing.T, api services.NotificationAPI) *services.Session {
	t.Helper()

	identity := Identity{Role: RoleClient, UserID: "1"}
	repos := repositories.New(database.DB{}, config.Config{ToastedSetCapacity: 10})
	session := &services.Session{
		Identity: identity,
		Requests: repositories.NewRequestRepository(),
		Feed:     services.NewNotificationFeed(identity, api, repos.Toasted, nil, 0),
	}
	require.True(t, session.Feed.Fetch(context.Background()))
	return session
}

func TestNotificationController_ListAndRead(t *testing.T) {
	api := &stubNotificationAPI{notifications: []Notification{{ID: "1"}, {ID: "2"}, {ID: "3", IsRead: true}}}
	session := newSession(t, api)
	controller := New()

	list := controller.List(context.Background(), session)
	assert.Len(t, list.Notifications, 3)
	assert.Equal(t, 2, list.UnreadCount)

	list = controller.MarkRead(context.Background(), session, "1")
	assert.Equal(t, 1, list.UnreadCount)

	list, err := controller.MarkSelectedRead(context.Background(), session, NotificationIDs{IDs: []ID{"1", "2"}})
	require.NoError(t, err)
	assert.Equal(t, 0, list.UnreadCount)
	assert.Equal(t, []ID{"1", "2"}, api.marked)
}

func TestNotificationController_EmptySelection(t *testing.T) {
	session := newSession(t, &stubNotificationAPI{})
	controller := New()

	_, err := controller.MarkSelectedRead(context.Background(), session, NotificationIDs{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = controller.DeleteSelected(context.Background(), session, NotificationIDs{IDs: []ID{}})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestNotificationController_DeleteFailureKeepsAll(t *testing.T) {
	api := &stubNotificationAPI{
		notifications: []Notification{{ID: "a"}, {ID: "b"}},
		deleteErr:     apperrors.Upstream(500, "boom"),
	}
	session := newSession(t, api)
	controller := New()

	list, err := controller.DeleteSelected(context.Background(), session, NotificationIDs{IDs: []ID{"a", "b"}})
	require.Error(t, err)
	assert.Len(t, list.Notifications, 2)
}

func TestNotificationController_Click(t *testing.T) {
	api := &stubNotificationAPI{notifications: []Notification{{ID: "7", Action: "/requests/7"}}}
	session := newSession(t, api)
	controller := New()

	clicked, err := controller.Click(context.Background(), session, "7")
	require.NoError(t, err)
	assert.Equal(t, "/requests/7", clicked.Action)
	assert.True(t, bool(clicked.IsRead))

	_, err = controller.Click(context.Background(), session, "8")
	assert.Equal(t, 404, apperrors.From(err).HTTPStatus())
}
