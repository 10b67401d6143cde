package jobs

import (
	"context"
	"time"

	"ineed/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

type NotificationFetcher interface {
	Fetch(ctx context.Context) bool
}

// NotificationPollJob refreshes one session's notification feed.
type NotificationPollJob struct {
	identity string
	feed     NotificationFetcher
	interval time.Duration
	log      logger.Logger
}

func NewNotificationPollJob(session *services.Session, interval time.Duration) *NotificationPollJob {
	return newNotificationPollJob(session.Identity.Key(), session.Feed, interval)
}

func newNotificationPollJob(identity string, feed NotificationFetcher, interval time.Duration) *NotificationPollJob {
	log := logger.New("notificationPollJob").With("identity", identity)
	log.Info("Creating notification poll job", "interval", interval)

	return &NotificationPollJob{
		identity: identity,
		feed:     feed,
		interval: interval,
		log:      log,
	}
}

func (j *NotificationPollJob) Name() string {
	return "NotificationPoll:" + j.identity
}

func (j *NotificationPollJob) Execute(ctx context.Context) error {
	if !j.feed.Fetch(ctx) {
		j.log.Function("Execute").Debug("Fetch skipped, previous fetch still cooling down")
	}
	return nil
}

func (j *NotificationPollJob) Interval() time.Duration {
	return j.interval
}
