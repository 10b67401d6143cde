package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"ineed/internal/apperrors"
	"ineed/internal/events"
	. "ineed/internal/models"
	"ineed/internal/repositories"

	logger "github.com/Bparsons0904/goLogger"
)

type NotificationAPI interface {
	FetchNotifications(ctx context.Context, identity Identity) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, identity Identity, id ID) error
	DeleteNotifications(ctx context.Context, identity Identity, ids []ID) error
}

// NotificationFeed is the notification list of one identity. A fetch in flight
// blocks overlapping fetches until cooldown has passed after it completes. Reads
// are applied locally first and never rolled back.
type NotificationFeed struct {
	identity  Identity
	api       NotificationAPI
	toasted   repositories.ToastedRepository
	publisher EventPublisher
	cooldown  time.Duration

	mu            sync.Mutex
	fetching      bool
	release       *time.Timer
	notifications []Notification
	reads         map[ID]Optimistic[bool]
	disposed      bool
	log           logger.Logger
}

func NewNotificationFeed(
	identity Identity,
	api NotificationAPI,
	toasted repositories.ToastedRepository,
	publisher EventPublisher,
	cooldown time.Duration,
) *NotificationFeed {
	return &NotificationFeed{
		identity:  identity,
		api:       api,
		toasted:   toasted,
		publisher: publisher,
		cooldown:  cooldown,
		reads:     make(map[ID]Optimistic[bool]),
		log:       logger.New("NotificationFeed").With("identity", identity.Key()),
	}
}

// Fetch loads the feed and toasts unread notifications not toasted before. It
// reports false when suppressed by an overlapping fetch or a disposed feed. Fetch
// failures are logged and keep the previous list.
func (f *NotificationFeed) Fetch(ctx context.Context) bool {
	log := f.log.TraceFromContext(ctx).Function("Fetch")

	f.mu.Lock()
	if f.disposed || f.fetching {
		f.mu.Unlock()
		return false
	}
	f.fetching = true
	f.mu.Unlock()

	defer f.releaseGuard()

	incoming, err := f.api.FetchNotifications(ctx, f.identity)
	if err != nil {
		log.Warn("Failed to fetch notifications", "error", err)
		return true
	}

	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return true
	}
	previousUnread := CountUnread(f.notifications)
	f.notifications = f.overlayReads(incoming)
	unread := make([]Notification, 0)
	for _, n := range f.notifications {
		if !n.IsRead {
			unread = append(unread, n)
		}
	}
	unreadCount := len(unread)
	f.mu.Unlock()

	unreadIDs := make([]ID, len(unread))
	for i, n := range unread {
		unreadIDs[i] = n.ID
	}

	toasted, err := f.toasted.Contains(ctx, f.identity, unreadIDs)
	if err != nil {
		log.Warn("Failed to read toasted set, claiming every unread notification", "error", err)
		toasted = nil
	}

	for _, n := range unread {
		if toasted[n.ID] {
			continue
		}
		claimed, err := f.toasted.Claim(ctx, f.identity, n.ID)
		if err != nil {
			log.Warn("Skipping toast, toasted set unavailable", "notificationID", n.ID, "error", err)
			continue
		}
		if claimed {
			f.toast(n)
		}
	}

	if err := f.toasted.Trim(ctx, f.identity, unreadIDs); err != nil {
		log.Warn("Failed to trim toasted set", "error", err)
	}

	if unreadCount != previousUnread {
		f.publishUnread(unreadCount)
	}

	return true
}

// overlayReads keeps every locally read notification read, whatever the server says.
func (f *NotificationFeed) overlayReads(incoming []Notification) []Notification {
	readLocally := make(map[ID]bool, len(f.notifications))
	for _, n := range f.notifications {
		if n.IsRead {
			readLocally[n.ID] = true
		}
	}

	result := make([]Notification, len(incoming))
	for i, n := range incoming {
		if read, ok := f.reads[n.ID]; ok {
			if value, _ := read.Value(); value {
				n.IsRead = true
			}
		}
		if readLocally[n.ID] {
			n.IsRead = true
		}
		result[i] = n
	}
	return result
}

func (f *NotificationFeed) releaseGuard() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cooldown <= 0 || f.disposed {
		f.fetching = false
		return
	}

	f.release = time.AfterFunc(f.cooldown, func() {
		f.mu.Lock()
		f.fetching = false
		f.release = nil
		f.mu.Unlock()
	})
}

// MarkRead flips a notification to read before telling the server. A failed
// acknowledgment is logged and the local flip stays; marking an acknowledged
// notification again makes no call.
func (f *NotificationFeed) MarkRead(ctx context.Context, id ID) {
	log := f.log.TraceFromContext(ctx).Function("MarkRead")

	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	state := f.reads[id]
	if state.IsConfirmed(true) {
		f.mu.Unlock()
		return
	}
	f.reads[id] = state.Propose(true)
	changed := false
	for i := range f.notifications {
		if f.notifications[i].ID == id && !f.notifications[i].IsRead {
			f.notifications[i].IsRead = true
			changed = true
		}
	}
	unreadCount := CountUnread(f.notifications)
	f.mu.Unlock()

	if changed {
		f.publishUnread(unreadCount)
	}

	outcome := OutcomeConfirmed
	if err := f.api.MarkNotificationRead(ctx, f.identity, id); err != nil {
		log.Warn("Server did not acknowledge read, keeping local state", "notificationID", id, "error", err)
		outcome = OutcomeFailed
	}

	f.mu.Lock()
	if !f.disposed {
		f.reads[id] = f.reads[id].Resolve(outcome, ReadPolicy[bool])
	}
	f.mu.Unlock()
}

func (f *NotificationFeed) MarkSelectedRead(ctx context.Context, ids []ID) {
	for _, id := range ids {
		f.MarkRead(ctx, id)
	}
}

// Click marks the notification read and returns it so the caller can follow its action.
func (f *NotificationFeed) Click(ctx context.Context, id ID) (Notification, bool) {
	f.MarkRead(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

func errFeedDisposed() error {
	return apperrors.New(apperrors.KindAuth, apperrors.CodeNoSession, "Session disposed")
}

// DeleteSelected removes ids only after the server confirms the whole batch.
func (f *NotificationFeed) DeleteSelected(ctx context.Context, ids []ID) error {
	log := f.log.TraceFromContext(ctx).Function("DeleteSelected")

	if len(ids) == 0 {
		return apperrors.Validation("Select at least one notification", map[string]string{"ids": "This field is required"})
	}

	f.mu.Lock()
	disposed := f.disposed
	f.mu.Unlock()
	if disposed {
		return errFeedDisposed()
	}

	if err := f.api.DeleteNotifications(ctx, f.identity, ids); err != nil {
		return log.Err("failed to delete notifications", err, "count", len(ids))
	}

	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return nil
	}
	f.notifications = slices.DeleteFunc(f.notifications, func(n Notification) bool {
		return slices.Contains(ids, n.ID)
	})
	for _, id := range ids {
		delete(f.reads, id)
	}
	unreadCount := CountUnread(f.notifications)
	f.mu.Unlock()

	f.publishUnread(unreadCount)
	return nil
}

func (f *NotificationFeed) Notifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.notifications)
}

func (f *NotificationFeed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return CountUnread(f.notifications)
}

func (f *NotificationFeed) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disposed = true
	if f.release != nil {
		f.release.Stop()
		f.release = nil
	}
}

func (f *NotificationFeed) toast(n Notification) {
	if f.publisher == nil {
		return
	}

	toast := n.Toast()
	err := f.publisher.Publish(events.NOTIFICATION_CHANNEL, events.Event{
		Type:     events.TOAST,
		Identity: f.identity.Key(),
		Data: map[string]any{
			"notificationId": toast.NotificationID.String(),
			"messageKey":     toast.MessageKey,
			"message":        toast.Message,
			"action":         toast.Action,
		},
	})
	if err != nil {
		f.log.Function("toast").Er("failed to publish toast", err, "notificationID", n.ID)
	}
}

func (f *NotificationFeed) publishUnread(count int) {
	if f.publisher == nil {
		return
	}

	err := f.publisher.Publish(events.NOTIFICATION_CHANNEL, events.Event{
		Type:     events.NOTIFICATIONS_UPDATED,
		Identity: f.identity.Key(),
		Data:     map[string]any{"unreadCount": count},
	})
	if err != nil {
		f.log.Function("publishUnread").Er("failed to publish unread notifications", err)
	}
}
