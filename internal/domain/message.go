package domain

import (
	"strconv"
	"time"
)

// Message is the immutable value fanned out on a room send. It is built
// fresh per send and never retained after dispatch.
type Message struct {
	ID        string `json:"id"`
	RoomID    RoomID `json:"roomId"`
	SenderID  UserID `json:"userId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// NewMessage stamps a message with a nanosecond-resolution ID and the
// current time. IDs distinguish messages in practice; collisions are
// tolerated, not deduplicated.
func NewMessage(room RoomID, sender UserID, text string) Message {
	now := time.Now()
	return Message{
		ID:        strconv.FormatInt(now.UnixNano(), 10),
		RoomID:    room,
		SenderID:  sender,
		Text:      text,
		Timestamp: now.UnixMilli(),
	}
}
