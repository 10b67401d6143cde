package models

import (
	"fmt"
	"strings"
)

const (
	ChatChannelType     = "messaging"
	chatChannelIDPrefix = "request_"
)

// UnreadCounts maps request id to the unread chat messages for the querying identity.
type UnreadCounts map[ID]int

type UnreadChatEntry struct {
	RequestID ID  `json:"requestId"`
	Count     int `json:"count"`
}

func (u UnreadCounts) Total() int {
	total := 0
	for _, count := range u {
		total += count
	}
	return total
}

func (u UnreadCounts) Entries() []UnreadChatEntry {
	entries := make([]UnreadChatEntry, 0, len(u))
	for id, count := range u {
		entries = append(entries, UnreadChatEntry{RequestID: id, Count: count})
	}
	return entries
}

func (u UnreadCounts) Clone() UnreadCounts {
	c := make(UnreadCounts, len(u))
	for id, count := range u {
		c[id] = count
	}
	return c
}

func ChatChannelID(requestID ID) string {
	return chatChannelIDPrefix + requestID.String()
}

// RequestIDFromChannel accepts a bare channel id or a cid ("messaging:request_12").
func RequestIDFromChannel(channel string) (ID, error) {
	if _, id, ok := strings.Cut(channel, ":"); ok {
		channel = id
	}
	if !strings.HasPrefix(channel, chatChannelIDPrefix) {
		return "", fmt.Errorf("channel %q is not a request channel", channel)
	}
	return ID(strings.TrimPrefix(channel, chatChannelIDPrefix)), nil
}
