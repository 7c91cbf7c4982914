// Package store defines the durable message log and its implementations.
// The store is the source of truth for message history; the recent-history
// cache in pkg/cache only ever mirrors it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/atultiwari1305/coon/pkg/model"
)

var (
	// ErrNotFound is returned when a message does not exist.
	ErrNotFound = errors.New("message not found")

	// ErrUnavailable is returned when the backing store times out or the
	// connection fails. Callers must not treat it as data absence.
	ErrUnavailable = errors.New("message store unavailable")
)

// MessageStore is the append-only, per-channel ordered message log.
//
// Append must be visible to a subsequent FetchNewest on the same channel
// (read-your-writes). FetchNewest returns the newest messages in
// chronological order, oldest first.
type MessageStore interface {
	Append(ctx context.Context, channelID, senderID, content string, ts time.Time) (*model.Message, error)
	FetchNewest(ctx context.Context, channelID string, limit int) ([]model.Message, error)
	FetchByID(ctx context.Context, id int64) (*model.Message, error)
	DeleteByID(ctx context.Context, id int64) error
	DeleteAllForChannel(ctx context.Context, channelID string) (int, error)
}
