package services

import (
	"context"
	"sync"
	"testing"

	"ineed/internal/events"
	. "ineed/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	require.NoError(t, err)
	return d
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(channel events.Channel, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	event.Channel = channel
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(kind events.MessageType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []events.Event
	for _, event := range p.events {
		if event.Type == kind {
			matched = append(matched, event)
		}
	}
	return matched
}

type fakeNotificationAPI struct {
	mu            sync.Mutex
	notifications []Notification
	fetchErr      error
	markErr       error
	deleteErr     error
	fetchGate     chan struct{}
	fetchCalls    int
	markCalls     map[ID]int
	deleteCalls   int
}

func newFakeNotificationAPI(notifications ...Notification) *fakeNotificationAPI {
	return &fakeNotificationAPI{notifications: notifications, markCalls: make(map[ID]int)}
}

func (f *fakeNotificationAPI) FetchNotifications(ctx context.Context, identity Identity) ([]Notification, error) {
	f.mu.Lock()
	f.fetchCalls++
	gate := f.fetchGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]Notification(nil), f.notifications...), nil
}

func (f *fakeNotificationAPI) MarkNotificationRead(ctx context.Context, identity Identity, id ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls[id]++
	return f.markErr
}

func (f *fakeNotificationAPI) DeleteNotifications(ctx context.Context, identity Identity, ids []ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeNotificationAPI) calls() (fetches int, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, f.deleteCalls
}

func (f *fakeNotificationAPI) markCount(id ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markCalls[id]
}

type fakeTokenSource struct {
	mu          sync.Mutex
	token       string
	err         error
	calls       int
	invalidated int
}

func (f *fakeTokenSource) Token(ctx context.Context, identity Identity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.token, f.err
}

func (f *fakeTokenSource) Invalidate(ctx context.Context, identity Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

// fakeChat serves channel read states keyed by channel id.
type fakeChat struct {
	mu          sync.Mutex
	userID      string
	unread      map[string]int
	connectErr  error
	queryErr    error
	connects    int
	queries     int
	lastQueried []string
}

func (f *fakeChat) Connect(ctx context.Context, identity Identity, token string) (ChatConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &fakeChatConnection{chat: f}, nil
}

type fakeChatConnection struct {
	chat *fakeChat
}

func (c *fakeChatConnection) UserID() string {
	return c.chat.userID
}

func (c *fakeChatConnection) Channel(kind, id string) *ChatChannel {
	return &ChatChannel{Type: kind, ID: id, conn: c}
}

func (c *fakeChatConnection) QueryChannels(ctx context.Context, channelIDs []string, watch bool) ([]*ChatChannel, error) {
	c.chat.mu.Lock()
	defer c.chat.mu.Unlock()

	c.chat.queries++
	c.chat.lastQueried = append([]string(nil), channelIDs...)
	if c.chat.queryErr != nil {
		return nil, c.chat.queryErr
	}

	channels := make([]*ChatChannel, 0, len(channelIDs))
	for _, id := range channelIDs {
		count, ok := c.chat.unread[id]
		if !ok {
			continue
		}
		channel := c.Channel(ChatChannelType, id)
		channel.setReads([]ChatReadState{
			{UserID: c.chat.userID, UnreadMessages: count},
			{UserID: "someone-else", UnreadMessages: 99},
		})
		channels = append(channels, channel)
	}
	return channels, nil
}

func (c *fakeChatConnection) Disconnect() error {
	return nil
}
