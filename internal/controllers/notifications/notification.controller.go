package notificationController

import (
	"context"
	"net/http"

	"ineed/internal/apperrors"
	. "ineed/internal/models"
	"ineed/internal/services"
	"ineed/internal/validator"

	logger "github.com/Bparsons0904/goLogger"
)

type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

type NotificationControllerInterface interface {
	List(ctx context.Context, session *services.Session) NotificationList
	Refresh(ctx context.Context, session *services.Session) NotificationList
	MarkRead(ctx context.Context, session *services.Session, id ID) NotificationList
	MarkSelectedRead(ctx context.Context, session *services.Session, input NotificationIDs) (NotificationList, error)
	Click(ctx context.Context, session *services.Session, id ID) (Notification, error)
	DeleteSelected(ctx context.Context, session *services.Session, input NotificationIDs) (NotificationList, error)
}

type NotificationController struct {
	validator *validator.Validator
	log       logger.Logger
}

func New() NotificationControllerInterface {
	return &NotificationController{
		validator: validator.New(),
		log:       logger.New("notificationController"),
	}
}

func snapshot(session *services.Session) NotificationList {
	notifications := session.Feed.Notifications()
	if notifications == nil {
		notifications = []Notification{}
	}
	return NotificationList{Notifications: notifications, UnreadCount: CountUnread(notifications)}
}

func (c *NotificationController) List(ctx context.Context, session *services.Session) NotificationList {
	return snapshot(session)
}

// Refresh fetches now unless a fetch is already in flight or cooling down.
func (c *NotificationController) Refresh(ctx context.Context, session *services.Session) NotificationList {
	if !session.Feed.Fetch(ctx) {
		c.log.TraceFromContext(ctx).Function("Refresh").Debug("Fetch suppressed", "identity", session.Identity.Key())
	}
	return snapshot(session)
}

func (c *NotificationController) MarkRead(ctx context.Context, session *services.Session, id ID) NotificationList {
	session.Feed.MarkRead(ctx, id)
	return snapshot(session)
}

func (c *NotificationController) MarkSelectedRead(
	ctx context.Context,
	session *services.Session,
	input NotificationIDs,
) (NotificationList, error) {
	if err := c.validator.Validate(input); err != nil {
		return NotificationList{}, err
	}

	session.Feed.MarkSelectedRead(ctx, input.IDs)
	return snapshot(session), nil
}

func (c *NotificationController) Click(ctx context.Context, session *services.Session, id ID) (Notification, error) {
	notification, ok := session.Feed.Click(ctx, id)
	if !ok {
		return Notification{}, apperrors.Rejected(http.StatusNotFound, "Notification not found")
	}
	return notification, nil
}

func (c *NotificationController) DeleteSelected(
	ctx context.Context,
	session *services.Session,
	input NotificationIDs,
) (NotificationList, error) {
	log := c.log.TraceFromContext(ctx).Function("DeleteSelected")

	if err := c.validator.Validate(input); err != nil {
		return NotificationList{}, err
	}

	if err := session.Feed.DeleteSelected(ctx, input.IDs); err != nil {
		return snapshot(session), log.Err("failed to delete notifications", err, "count", len(input.IDs))
	}

	log.Info("Notifications deleted", "count", len(input.IDs))
	return snapshot(session), nil
}
