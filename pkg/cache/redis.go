package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/atultiwari1305/coon/pkg/metrics"
	"github.com/atultiwari1305/coon/pkg/model"
)

// appendScript pushes a message only when the channel's list already
// exists. An append must never create a one-message list that a later read
// would mistake for the full history.
var appendScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	redis.call("RPUSH", KEYS[1], ARGV[1])
	redis.call("LTRIM", KEYS[1], -tonumber(ARGV[2]), -1)
	return 1
end
return 0
`)

// populateScript installs a loaded window only when the channel's
// generation still matches the one read before the load. A delete or clear
// on another gateway bumps the generation, so a load that raced it cannot
// reinstall the pre-mutation window into the shared cache.
var populateScript = redis.NewScript(`
if (redis.call("GET", KEYS[2]) or "0") ~= ARGV[1] then
	return 0
end
redis.call("DEL", KEYS[1])
for i = 2, #ARGV do
	redis.call("RPUSH", KEYS[1], ARGV[i])
end
return 1
`)

// invalidateScript drops the list and bumps the generation in one step.
var invalidateScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
return redis.call("INCR", KEYS[2])
`)

// Redis is the History backend shared by gateway instances. Each channel
// is one list holding up to Window JSON-encoded messages, oldest first,
// plus a generation counter that guards loads against concurrent
// invalidations from peer instances. Any Redis failure degrades to a
// direct store read.
type Redis struct {
	client *redis.Client
	group  singleflight.Group
	log    zerolog.Logger
}

func NewRedis(client *redis.Client, log zerolog.Logger) *Redis {
	return &Redis{client: client, log: log.With().Str("component", "history-cache").Logger()}
}

func historyKey(channelID string) string {
	return fmt.Sprintf("messages:%s", channelID)
}

func generationKey(channelID string) string {
	return fmt.Sprintf("generation:%s", channelID)
}

func (c *Redis) GetOrLoad(ctx context.Context, channelID string, load Loader) ([]model.Message, error) {
	v, err, _ := c.group.Do(channelID, func() (interface{}, error) {
		key := historyKey(channelID)

		raw, err := c.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			c.log.Warn().Err(err).Str("channel", channelID).Msg("cache read failed, falling through to store")
		} else if len(raw) > 0 {
			msgs := make([]model.Message, 0, len(raw))
			for _, item := range raw {
				var m model.Message
				if err := json.Unmarshal([]byte(item), &m); err != nil {
					c.log.Warn().Err(err).Str("channel", channelID).Msg("corrupt cache entry, reloading from store")
					msgs = nil
					break
				}
				msgs = append(msgs, m)
			}
			if msgs != nil {
				metrics.CacheHits.Inc()
				return msgs, nil
			}
		}
		metrics.CacheMisses.Inc()

		// The generation is read before the store load; populate installs
		// only if it is unchanged afterwards.
		gen, genOK := c.generation(ctx, channelID)

		msgs, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if len(msgs) > Window {
			msgs = msgs[len(msgs)-Window:]
		}
		if genOK {
			c.populate(ctx, channelID, gen, msgs)
		}
		return msgs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Message), nil
}

// generation reads the channel's current generation. A missing counter is
// generation "0". ok is false when Redis itself failed, in which case the
// load result must not be installed.
func (c *Redis) generation(ctx context.Context, channelID string) (string, bool) {
	gen, err := c.client.Get(ctx, generationKey(channelID)).Result()
	if err == redis.Nil {
		return "0", true
	}
	if err != nil {
		c.log.Warn().Err(err).Str("channel", channelID).Msg("generation read failed, skipping cache fill")
		return "", false
	}
	return gen, true
}

// populate replaces the list with the loaded window, unless the channel
// was invalidated since gen was read. Best effort: the loaded result is
// already in hand, so a failure here only costs the next reader another
// store fetch.
func (c *Redis) populate(ctx context.Context, channelID, gen string, msgs []model.Message) {
	if len(msgs) == 0 {
		return
	}
	args := make([]interface{}, 0, len(msgs)+1)
	args = append(args, gen)
	for i := range msgs {
		data, err := json.Marshal(msgs[i])
		if err != nil {
			return
		}
		args = append(args, data)
	}

	keys := []string{historyKey(channelID), generationKey(channelID)}
	installed, err := populateScript.Run(ctx, c.client, keys, args...).Int()
	if err != nil {
		c.log.Warn().Err(err).Str("channel", channelID).Msg("cache populate failed")
		return
	}
	if installed == 0 {
		c.log.Debug().Str("channel", channelID).Msg("load raced an invalidation, window discarded")
	}
}

func (c *Redis) Append(ctx context.Context, channelID string, msg model.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	err = appendScript.Run(ctx, c.client, []string{historyKey(channelID)}, data, Window).Err()
	if err != nil && err != redis.Nil {
		c.log.Warn().Err(err).Str("channel", channelID).Msg("cache append failed")
	}
}

func (c *Redis) Invalidate(ctx context.Context, channelID string) {
	keys := []string{historyKey(channelID), generationKey(channelID)}
	if err := invalidateScript.Run(ctx, c.client, keys).Err(); err != nil {
		// This only fails when Redis itself is unreachable, in which
		// case reads are already falling through to the store.
		c.log.Error().Err(err).Str("channel", channelID).Msg("cache invalidate failed")
	}
}
