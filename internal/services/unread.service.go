package services

import (
	"context"
	"sync"

	"ineed/internal/apperrors"
	"ineed/internal/events"
	. "ineed/internal/models"

	logger "github.com/Bparsons0904/goLogger"
)

type ChatTokenSource interface {
	Token(ctx context.Context, identity Identity) (string, error)
	Invalidate(ctx context.Context, identity Identity)
}

type EventPublisher interface {
	Publish(channel events.Channel, event events.Event) error
}

// UnreadAggregator maps request ids to unread chat counts for one session. Every
// failure degrades to an empty or last-known mapping.
type UnreadAggregator struct {
	identity  Identity
	tokens    ChatTokenSource
	transport ChatTransport
	publisher EventPublisher

	mu           sync.Mutex
	conn         ChatConnection
	connIdentity Identity
	counts       UnreadCounts
	disposed     bool
	log          logger.Logger
}

func NewUnreadAggregator(
	identity Identity,
	tokens ChatTokenSource,
	transport ChatTransport,
	publisher EventPublisher,
) *UnreadAggregator {
	return &UnreadAggregator{
		identity:  identity,
		tokens:    tokens,
		transport: transport,
		publisher: publisher,
		counts:    UnreadCounts{},
		log:       logger.New("UnreadAggregator").With("identity", identity.Key()),
	}
}

// GetUnreadCounts queries the request_<id> channels of requestIDs for identity.
// An empty token is resolved through the token source first.
func (a *UnreadAggregator) GetUnreadCounts(
	ctx context.Context,
	identity Identity,
	token string,
	requestIDs []ID,
) UnreadCounts {
	log := a.log.TraceFromContext(ctx).Function("GetUnreadCounts")

	if len(requestIDs) == 0 {
		return UnreadCounts{}
	}

	if token == "" {
		var err error
		token, err = a.tokens.Token(ctx, identity)
		if err != nil {
			log.Warn("No chat token, skipping unread counts", "error", err)
			return UnreadCounts{}
		}
	}

	conn, err := a.connection(ctx, identity, token)
	if err != nil {
		log.Warn("Chat connection failed", "error", err)
		if apperrors.IsKind(err, apperrors.KindAuth) {
			a.tokens.Invalidate(ctx, identity)
		}
		return UnreadCounts{}
	}

	seen := make(map[ID]bool, len(requestIDs))
	channelIDs := make([]string, 0, len(requestIDs))
	for _, id := range requestIDs {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		channelIDs = append(channelIDs, ChatChannelID(id))
	}

	channels, err := conn.QueryChannels(ctx, channelIDs, true)
	if err != nil {
		log.Warn("Chat channel query failed", "channels", len(channelIDs), "error", err)
		if apperrors.IsKind(err, apperrors.KindAuth) {
			a.tokens.Invalidate(ctx, identity)
			a.dropConnection(conn)
		}
		return UnreadCounts{}
	}

	counts := make(UnreadCounts, len(channels))
	for _, channel := range channels {
		requestID, err := RequestIDFromChannel(channel.CID())
		if err != nil {
			log.Debug("Skipping non-request channel", "cid", channel.CID())
			continue
		}
		counts[requestID] = channel.CountUnread()
	}

	return counts
}

func (a *UnreadAggregator) connection(ctx context.Context, identity Identity, token string) (ChatConnection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.disposed {
		return nil, apperrors.New(apperrors.KindInternal, apperrors.CodeNoSession, "Session disposed")
	}
	if a.conn != nil && a.connIdentity == identity {
		return a.conn, nil
	}
	if a.conn != nil {
		_ = a.conn.Disconnect()
		a.conn = nil
	}

	conn, err := a.transport.Connect(ctx, identity, token)
	if err != nil {
		return nil, err
	}

	a.conn = conn
	a.connIdentity = identity
	return conn, nil
}

func (a *UnreadAggregator) dropConnection(conn ChatConnection) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == conn {
		_ = a.conn.Disconnect()
		a.conn = nil
	}
}

// Refresh recomputes the counts for requestIDs, keeps them as the session's last
// known mapping and announces a changed total. A disposed aggregator ignores late
// results.
func (a *UnreadAggregator) Refresh(ctx context.Context, requestIDs []ID) UnreadCounts {
	counts := a.GetUnreadCounts(ctx, a.identity, "", requestIDs)

	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return counts
	}
	previous := a.counts.Total()
	a.counts = counts.Clone()
	total := a.counts.Total()
	a.mu.Unlock()

	if total != previous {
		a.publish(total)
	}
	return counts
}

func (a *UnreadAggregator) Counts() UnreadCounts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts.Clone()
}

func (a *UnreadAggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts.Total()
}

// MarkChatOpened zeroes a request's count until the next poll.
func (a *UnreadAggregator) MarkChatOpened(requestID ID) {
	a.mu.Lock()
	if a.disposed || a.counts[requestID] == 0 {
		a.mu.Unlock()
		return
	}
	a.counts[requestID] = 0
	total := a.counts.Total()
	a.mu.Unlock()

	a.publish(total)
}

func (a *UnreadAggregator) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.disposed = true
	if a.conn != nil {
		_ = a.conn.Disconnect()
		a.conn = nil
	}
}

func (a *UnreadAggregator) publish(total int) {
	if a.publisher == nil {
		return
	}

	counts := a.Counts()
	byRequest := make(map[string]int, len(counts))
	for id, count := range counts {
		byRequest[id.String()] = count
	}

	err := a.publisher.Publish(events.UNREAD_CHANNEL, events.Event{
		Type:     events.UNREAD_UPDATED,
		Identity: a.identity.Key(),
		Data: map[string]any{
			"total":  total,
			"counts": byRequest,
		},
	})
	if err != nil {
		a.log.Function("publish").Er("failed to publish unread counts", err)
	}
}
