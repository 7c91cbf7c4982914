package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/atultiwari1305/coon/pkg/metrics"
	"github.com/atultiwari1305/coon/pkg/model"
)

// Memory is the in-process History backend. Each channel carries a
// generation counter so a load that raced an Invalidate cannot install a
// pre-invalidation snapshot.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]model.Message
	gens    map[string]uint64
	group   singleflight.Group
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]model.Message),
		gens:    make(map[string]uint64),
	}
}

func (c *Memory) GetOrLoad(ctx context.Context, channelID string, load Loader) ([]model.Message, error) {
	c.mu.Lock()
	if msgs, ok := c.entries[channelID]; ok {
		out := copyMessages(msgs)
		c.mu.Unlock()
		metrics.CacheHits.Inc()
		return out, nil
	}
	gen := c.gens[channelID]
	c.mu.Unlock()
	metrics.CacheMisses.Inc()

	v, err, _ := c.group.Do(channelID, func() (interface{}, error) {
		// A previous flight may have populated the entry while this
		// caller was queueing.
		c.mu.Lock()
		if msgs, ok := c.entries[channelID]; ok {
			out := copyMessages(msgs)
			c.mu.Unlock()
			return out, nil
		}
		c.mu.Unlock()

		msgs, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if len(msgs) > Window {
			msgs = msgs[len(msgs)-Window:]
		}

		c.mu.Lock()
		if c.gens[channelID] == gen {
			c.entries[channelID] = copyMessages(msgs)
		}
		c.mu.Unlock()
		return msgs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Message), nil
}

func (c *Memory) Append(ctx context.Context, channelID string, msg model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs, ok := c.entries[channelID]
	if !ok {
		return
	}
	msgs = append(msgs, msg)
	if len(msgs) > Window {
		msgs = msgs[len(msgs)-Window:]
	}
	c.entries[channelID] = msgs
}

func (c *Memory) Invalidate(ctx context.Context, channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, channelID)
	c.gens[channelID]++
	c.group.Forget(channelID)
}

func copyMessages(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out
}
