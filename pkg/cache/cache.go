// Package cache holds the recent-history cache that fronts the durable
// message store. An entry, when present, always equals the store's newest
// suffix for that channel; mutations invalidate rather than repair, so the
// cache is either right or absent, never stale.
package cache

import (
	"context"

	"github.com/atultiwari1305/coon/pkg/model"
)

// Window is the number of recent messages kept per channel.
const Window = 100

// Loader fetches the newest messages for a channel from the store,
// oldest first.
type Loader func(ctx context.Context) ([]model.Message, error)

// History is the recent-history cache contract.
//
// GetOrLoad returns the cached window, or runs the loader and caches its
// result. Concurrent loads for the same channel are coalesced into one
// store fetch. A cache backend failure falls through to the loader; it
// never fails the read.
//
// Append adds a freshly persisted message to an existing entry, trimming
// the front past Window. It is a no-op when no entry exists: the next
// GetOrLoad repopulates from the store, which already holds the message.
//
// Invalidate drops the entry entirely.
type History interface {
	GetOrLoad(ctx context.Context, channelID string, load Loader) ([]model.Message, error)
	Append(ctx context.Context, channelID string, msg model.Message)
	Invalidate(ctx context.Context, channelID string)
}
