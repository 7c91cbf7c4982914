package model

import "time"

// Message is one chat message in a channel. ID is assigned by the message
// store on persist; a zero ID means the message is not durable yet.
type Message struct {
	ID        int64     `json:"id"`
	ChannelID string    `json:"channel_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
