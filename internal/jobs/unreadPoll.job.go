package jobs

import (
	"context"
	"time"

	"ineed/internal/apperrors"
	. "ineed/internal/models"
	"ineed/internal/repositories"
	"ineed/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

type RequestLister interface {
	ListRequests(ctx context.Context, role Role, scope RequestScope) ([]Request, error)
}

type UnreadRefresher interface {
	Refresh(ctx context.Context, requestIDs []ID) UnreadCounts
}

// UnreadPollJob reloads the badge listing of a session and recounts its unread
// chat messages.
type UnreadPollJob struct {
	identity Identity
	lister   RequestLister
	requests repositories.RequestRepository
	unread   UnreadRefresher
	interval time.Duration
	log      logger.Logger
}

func NewUnreadPollJob(session *services.Session, lister RequestLister, interval time.Duration) *UnreadPollJob {
	return newUnreadPollJob(session.Identity, lister, session.Requests, session.Unread, interval)
}

func newUnreadPollJob(
	identity Identity,
	lister RequestLister,
	requests repositories.RequestRepository,
	unread UnreadRefresher,
	interval time.Duration,
) *UnreadPollJob {
	log := logger.New("unreadPollJob").With("identity", identity.Key())
	log.Info("Creating unread poll job", "interval", interval)

	return &UnreadPollJob{
		identity: identity,
		lister:   lister,
		requests: requests,
		unread:   unread,
		interval: interval,
		log:      log,
	}
}

func (j *UnreadPollJob) Name() string {
	return "UnreadPoll:" + j.identity.Key()
}

// Execute keeps the last known listing when the reload fails for any reason but
// an auth failure.
func (j *UnreadPollJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	scope := BadgeScope(j.identity.Role)
	requests, err := j.lister.ListRequests(ctx, j.identity.Role, scope)
	switch {
	case apperrors.IsKind(err, apperrors.KindAuth):
		return log.Err("badge listing unauthorized", err, "scope", scope)
	case err != nil:
		log.Warn("Badge listing failed, using last known requests", "scope", scope, "error", err)
	default:
		j.requests.Reconcile(scope, requests)
	}

	ids := j.requests.IDs(scope)
	counts := j.unread.Refresh(ctx, ids)
	j.requests.MergeUnread(ids, counts)

	log.Debug("Unread counts refreshed", "requests", len(ids), "total", counts.Total())
	return nil
}

func (j *UnreadPollJob) Interval() time.Duration {
	return j.interval
}
