package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"ineed/config"
	"ineed/internal/apperrors"
	. "ineed/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/golang-jwt/jwt/v5"
)

// ChatTransport opens authenticated connections to the chat provider.
type ChatTransport interface {
	Connect(ctx context.Context, identity Identity, token string) (ChatConnection, error)
}

type ChatConnection interface {
	UserID() string
	Channel(kind, id string) *ChatChannel
	QueryChannels(ctx context.Context, channelIDs []string, watch bool) ([]*ChatChannel, error)
	Disconnect() error
}

type ChatReadState struct {
	UserID         string
	UnreadMessages int
	LastRead       time.Time
}

// CHAT_CHANNEL_PAGE_LIMIT is the provider's maximum channel query limit.
const CHAT_CHANNEL_PAGE_LIMIT = 30

// ChatChannel is a channel handle; its state is filled by QueryChannels.
type ChatChannel struct {
	Type  string
	ID    string
	conn  ChatConnection
	mu    sync.RWMutex
	reads []ChatReadState
}

func (c *ChatChannel) CID() string {
	return c.Type + ":" + c.ID
}

// CountUnread is the unread counter of the connected user, 0 before the channel
// state is known.
func (c *ChatChannel) CountUnread() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	userID := c.conn.UserID()
	for _, read := range c.reads {
		if read.UserID == userID {
			return read.UnreadMessages
		}
	}
	return 0
}

func (c *ChatChannel) setReads(reads []ChatReadState) {
	c.mu.Lock()
	c.reads = reads
	c.mu.Unlock()
}

type StreamChatTransport struct {
	client  *http.Client
	baseURL string
	apiKey  string
	log     logger.Logger
}

func NewStreamChatTransport(config config.Config) *StreamChatTransport {
	timeout := config.HTTPTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &StreamChatTransport{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(config.ChatBaseURL, "/"),
		apiKey:  config.ChatAPIKey,
		log:     logger.New("StreamChatTransport"),
	}
}

type chatTokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// chatUserID reads the user_id claim of a chat token without verifying the
// signature; the provider verifies it. Tokens without the claim fall back to the
// identity's user id.
func chatUserID(identity Identity, token string) (string, error) {
	claims := &chatTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", err
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return "", jwt.ErrTokenExpired
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	return identity.UserID.String(), nil
}

func (t *StreamChatTransport) Connect(ctx context.Context, identity Identity, token string) (ChatConnection, error) {
	log := t.log.TraceFromContext(ctx).Function("Connect")

	if t.apiKey == "" {
		return nil, apperrors.New(apperrors.KindInternal, apperrors.CodeInternalError, "Chat API key is not configured")
	}
	if token == "" {
		return nil, apperrors.Unauthorized(http.StatusUnauthorized, "Chat token is empty")
	}

	userID, err := chatUserID(identity, token)
	if err != nil {
		log.Warn("Rejecting chat token", "identity", identity.Key(), "error", err)
		return nil, apperrors.Unauthorized(http.StatusUnauthorized, "Chat token is invalid")
	}

	log.Debug("Chat user connected", "identity", identity.Key(), "chatUserID", userID)
	return &streamConnection{transport: t, token: token, userID: userID}, nil
}

type streamConnection struct {
	transport *StreamChatTransport
	token     string
	userID    string
	mu        sync.Mutex
	closed    bool
}

func (c *streamConnection) UserID() string {
	return c.userID
}

func (c *streamConnection) Channel(kind, id string) *ChatChannel {
	return &ChatChannel{Type: kind, ID: id, conn: c}
}

type streamChannelsRequest struct {
	FilterConditions map[string]any   `json:"filter_conditions"`
	Sort             []map[string]any `json:"sort"`
	State            bool             `json:"state"`
	Watch            bool             `json:"watch"`
	Presence         bool             `json:"presence"`
	Limit            int              `json:"limit"`
	MessageLimit     int              `json:"message_limit"`
}

type streamChannelsResponse struct {
	Channels []struct {
		Channel struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			CID  string `json:"cid"`
		} `json:"channel"`
		Read []struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
			UnreadMessages int       `json:"unread_messages"`
			LastRead       time.Time `json:"last_read"`
		} `json:"read"`
	} `json:"channels"`
}

// QueryChannels loads the listed channels of the default type, in pages of at most
// CHAT_CHANNEL_PAGE_LIMIT ids. Channels that do not exist are absent from the
// result. A failed page fails the whole query.
func (c *streamConnection) QueryChannels(ctx context.Context, channelIDs []string, watch bool) ([]*ChatChannel, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, apperrors.Unauthorized(http.StatusUnauthorized, "Chat connection is closed")
	}
	if len(channelIDs) == 0 {
		return nil, nil
	}

	channels := make([]*ChatChannel, 0, len(channelIDs))
	for page := range slices.Chunk(channelIDs, CHAT_CHANNEL_PAGE_LIMIT) {
		found, err := c.queryPage(ctx, page, watch)
		if err != nil {
			return nil, err
		}
		channels = append(channels, found...)
	}
	return channels, nil
}

func (c *streamConnection) queryPage(ctx context.Context, channelIDs []string, watch bool) ([]*ChatChannel, error) {
	log := c.transport.log.TraceFromContext(ctx).Function("queryPage")

	payload, err := json.Marshal(streamChannelsRequest{
		FilterConditions: map[string]any{
			"type": ChatChannelType,
			"id":   map[string]any{"$in": channelIDs},
		},
		Sort:         []map[string]any{{"field": "last_message_at", "direction": -1}},
		State:        true,
		Watch:        watch,
		Limit:        len(channelIDs),
		MessageLimit: 0,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	endpoint := c.transport.baseURL + "/channels?api_key=" + url.QueryEscape(c.transport.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Stream-Auth-Type", "jwt")

	resp, err := c.transport.client.Do(req)
	if err != nil {
		return nil, apperrors.Network(err, "Chat provider unreachable")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.Unauthorized(resp.StatusCode, "Chat provider rejected the token")
	case resp.StatusCode >= 500:
		return nil, apperrors.Upstream(resp.StatusCode, "Chat provider error")
	case resp.StatusCode >= 400:
		return nil, apperrors.Rejected(resp.StatusCode, "Chat channel query rejected")
	}

	var decoded streamChannelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindNetwork, apperrors.CodeMalformedResponse,
			"Chat provider returned an unreadable response")
	}

	channels := make([]*ChatChannel, 0, len(decoded.Channels))
	for _, entry := range decoded.Channels {
		kind, id := entry.Channel.Type, entry.Channel.ID
		if kind == "" || id == "" {
			kind, id, _ = strings.Cut(entry.Channel.CID, ":")
		}

		reads := make([]ChatReadState, 0, len(entry.Read))
		for _, read := range entry.Read {
			reads = append(reads, ChatReadState{
				UserID:         read.User.ID,
				UnreadMessages: read.UnreadMessages,
				LastRead:       read.LastRead,
			})
		}

		channel := c.Channel(kind, id)
		channel.setReads(reads)
		channels = append(channels, channel)
	}

	return channels, nil
}

func (c *streamConnection) Disconnect() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
