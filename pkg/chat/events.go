package chat

import (
	"encoding/json"
	"sync"

	"github.com/atultiwari1305/coon/pkg/model"
)

type EventType string

const (
	// EventMessageHistory is unicast to a connection that just joined.
	EventMessageHistory EventType = "message_history"
	// EventReceiveMessage is broadcast to a room on every send, the
	// sender's own connection included.
	EventReceiveMessage EventType = "receive_message"
	EventMessageDeleted EventType = "message_deleted"
	EventChannelCleared EventType = "channel_cleared"
	// EventError is unicast to the connection whose operation failed.
	EventError EventType = "error"
)

// Event is one outbound service event. Events are passed by pointer so a
// broadcast shares one wire encoding across every subscriber.
type Event struct {
	Type EventType   `json:"event"`
	Data interface{} `json:"data,omitempty"`

	once     sync.Once
	frame    []byte
	frameErr error
}

// Frame returns the event's wire encoding, marshaling it at most once no
// matter how many connections it is delivered to.
func (e *Event) Frame() ([]byte, error) {
	e.once.Do(func() { e.frame, e.frameErr = json.Marshal(e) })
	return e.frame, e.frameErr
}

// HistoryPayload carries a joined room's recent history in chronological
// order. Error is set instead of Messages when the store was unreachable.
type HistoryPayload struct {
	Messages []model.Message `json:"messages"`
	Error    string          `json:"error,omitempty"`
}

type DeletedPayload struct {
	MessageID int64 `json:"messageId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
