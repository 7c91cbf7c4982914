// Package chat is the messaging core: room fan-out, the per-room
// mutation path over the store and the recent-history cache, and the
// authorization rules on delete and clear.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atultiwari1305/coon/pkg/cache"
	"github.com/atultiwari1305/coon/pkg/channel"
	"github.com/atultiwari1305/coon/pkg/metrics"
	"github.com/atultiwari1305/coon/pkg/model"
	"github.com/atultiwari1305/coon/pkg/store"
)

var (
	// ErrEmptyMessage rejects sends whose body is blank after trimming.
	ErrEmptyMessage = errors.New("message body is empty")

	// ErrForbidden is an authorization failure on delete or clear. The
	// HTTP surface maps it to 403; the streaming surface swallows it
	// after it has been logged and counted.
	ErrForbidden = errors.New("forbidden")
)

// Service orchestrates the registry, cache and store. Mutations for one
// room run under that room's mutex, so store write, cache update and
// broadcast are one sequence; rooms never contend with each other.
type Service struct {
	store    store.MessageStore
	cache    cache.History
	registry *Registry
	dir      channel.Directory
	relay    *Relay
	timeout  time.Duration
	log      zerolog.Logger
	locks    *lockTable
}

func NewService(st store.MessageStore, hc cache.History, reg *Registry, dir channel.Directory, storeTimeout time.Duration, log zerolog.Logger) *Service {
	return &Service{
		store:    st,
		cache:    hc,
		registry: reg,
		dir:      dir,
		timeout:  storeTimeout,
		log:      log.With().Str("component", "chat").Logger(),
		locks:    newLockTable(),
	}
}

// SetRelay attaches the cross-gateway relay. Broadcasts are then also
// published to peers, best effort.
func (s *Service) SetRelay(r *Relay) {
	s.relay = r
}

// JoinRoom subscribes the connection and unicasts the room's recent
// history to it. Channel-level access control has already happened on the
// directory surface before this is called.
func (s *Service) JoinRoom(ctx context.Context, room string, conn Connection) error {
	s.registry.Subscribe(conn, room)

	// History resolves under the room lock so a concurrent delete or
	// clear cannot slip between the store read and the cache fill.
	lock := s.locks.acquire(room)
	msgs, err := s.cache.GetOrLoad(ctx, room, func(ctx context.Context) ([]model.Message, error) {
		sctx, cancel := s.storeCtx(ctx)
		defer cancel()
		return s.store.FetchNewest(sctx, room, cache.Window)
	})
	s.locks.release(room, lock)

	if err != nil {
		metrics.StoreFailures.WithLabelValues("fetch_history").Inc()
		s.log.Error().Err(err).Str("room", room).Str("conn", conn.ID()).Msg("history load failed")
		_ = conn.Send(&Event{Type: EventMessageHistory, Data: HistoryPayload{Error: "history unavailable"}})
		return fmt.Errorf("join %s: %w", room, err)
	}

	if msgs == nil {
		msgs = []model.Message{}
	}
	_ = conn.Send(&Event{Type: EventMessageHistory, Data: HistoryPayload{Messages: msgs}})
	return nil
}

// SendMessage persists the message, appends it to the cached window and
// broadcasts it to the room, in that order. A persistence failure aborts
// with no visible side effect.
func (s *Service) SendMessage(ctx context.Context, room, senderID, body string, ts time.Time) (*model.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}

	lock := s.locks.acquire(room)
	defer s.locks.release(room, lock)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	msg, err := s.store.Append(sctx, room, senderID, body, ts)
	if err != nil {
		metrics.StoreFailures.WithLabelValues("send_message").Inc()
		s.log.Error().Err(err).Str("room", room).Str("sender", senderID).Msg("persist failed, message dropped")
		return nil, fmt.Errorf("send to %s: %w", room, err)
	}

	s.cache.Append(ctx, room, *msg)
	s.publish(room, &Event{Type: EventReceiveMessage, Data: msg})
	metrics.MessagesSent.Inc()
	return msg, nil
}

// DeleteMessage removes one message. Allowed for the message's sender and
// the owning channel's admin. An unknown ID returns store.ErrNotFound,
// which the streaming surface treats as a silent no-op.
func (s *Service) DeleteMessage(ctx context.Context, messageID int64, requesterID string) error {
	sctx, cancel := s.storeCtx(ctx)
	msg, err := s.store.FetchByID(sctx, messageID)
	cancel()
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		metrics.StoreFailures.WithLabelValues("delete_message").Inc()
		s.log.Error().Err(err).Int64("message", messageID).Msg("delete lookup failed")
		return err
	}

	adminID, err := s.dir.ResolveAdmin(ctx, msg.ChannelID)
	if err != nil {
		s.log.Warn().Err(err).Str("room", msg.ChannelID).Int64("message", messageID).Msg("delete on unresolvable channel")
		return err
	}
	if requesterID != msg.SenderID && requesterID != adminID {
		metrics.MutationsDenied.WithLabelValues("delete_message").Inc()
		s.log.Warn().Str("room", msg.ChannelID).Str("requester", requesterID).Int64("message", messageID).Msg("delete denied")
		return ErrForbidden
	}

	lock := s.locks.acquire(msg.ChannelID)
	defer s.locks.release(msg.ChannelID, lock)

	sctx, cancel = s.storeCtx(ctx)
	defer cancel()
	err = s.store.DeleteByID(sctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		// A concurrent delete won the race; it already broadcast.
		return nil
	}
	if err != nil {
		metrics.StoreFailures.WithLabelValues("delete_message").Inc()
		s.log.Error().Err(err).Int64("message", messageID).Msg("delete failed")
		return err
	}

	s.cache.Invalidate(ctx, msg.ChannelID)
	s.publish(msg.ChannelID, &Event{Type: EventMessageDeleted, Data: DeletedPayload{MessageID: messageID}})
	return nil
}

// ClearRoom removes every message in the room. Admin only.
func (s *Service) ClearRoom(ctx context.Context, room, requesterID string) error {
	adminID, err := s.dir.ResolveAdmin(ctx, room)
	if err != nil {
		s.log.Warn().Err(err).Str("room", room).Msg("clear on unresolvable channel")
		return err
	}
	if requesterID != adminID {
		metrics.MutationsDenied.WithLabelValues("clear_channel").Inc()
		s.log.Warn().Str("room", room).Str("requester", requesterID).Msg("clear denied")
		return ErrForbidden
	}

	lock := s.locks.acquire(room)
	defer s.locks.release(room, lock)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	count, err := s.store.DeleteAllForChannel(sctx, room)
	if err != nil {
		metrics.StoreFailures.WithLabelValues("clear_channel").Inc()
		s.log.Error().Err(err).Str("room", room).Msg("clear failed")
		return err
	}

	s.cache.Invalidate(ctx, room)
	s.publish(room, &Event{Type: EventChannelCleared})
	s.log.Info().Str("room", room).Str("admin", requesterID).Int("count", count).Msg("channel cleared")
	return nil
}

func (s *Service) publish(room string, ev *Event) {
	s.registry.Broadcast(room, ev)
	if s.relay != nil {
		s.relay.Publish(room, ev)
	}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
