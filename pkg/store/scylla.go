package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/atultiwari1305/coon/pkg/db"
	"github.com/atultiwari1305/coon/pkg/model"
	"github.com/atultiwari1305/coon/pkg/snowflake"
)

// ScyllaStore persists messages in two tables: `messages`, partitioned by
// channel and clustered by id descending (so the newest N are one slice
// read), and `messages_by_id` for the by-id lookup deletes need.
type ScyllaStore struct {
	session *db.Session
	ids     *snowflake.Node
}

func NewScyllaStore(session *db.Session, ids *snowflake.Node) *ScyllaStore {
	return &ScyllaStore{session: session, ids: ids}
}

func (s *ScyllaStore) Append(ctx context.Context, channelID, senderID, content string, ts time.Time) (*model.Message, error) {
	msg := &model.Message{
		ID:        s.ids.Generate(),
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: ts,
	}

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO messages (channel_id, id, sender_id, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.ChannelID, msg.ID, msg.SenderID, msg.Content, msg.Timestamp)
	batch.Query(`INSERT INTO messages_by_id (id, channel_id, sender_id) VALUES (?, ?, ?)`,
		msg.ID, msg.ChannelID, msg.SenderID)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return nil, unavailable("append", err)
	}
	return msg, nil
}

func (s *ScyllaStore) FetchNewest(ctx context.Context, channelID string, limit int) ([]model.Message, error) {
	iter := s.session.Query(`SELECT channel_id, id, sender_id, content, timestamp FROM messages WHERE channel_id = ? LIMIT ?`,
		channelID, limit).WithContext(ctx).Iter()

	var newestFirst []model.Message
	var m model.Message
	for iter.Scan(&m.ChannelID, &m.ID, &m.SenderID, &m.Content, &m.Timestamp) {
		newestFirst = append(newestFirst, m)
	}
	if err := iter.Close(); err != nil {
		return nil, unavailable("fetch newest", err)
	}

	// Clustering order is id DESC; callers want chronological order.
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst, nil
}

func (s *ScyllaStore) FetchByID(ctx context.Context, id int64) (*model.Message, error) {
	var channelID, senderID string
	err := s.session.Query(`SELECT channel_id, sender_id FROM messages_by_id WHERE id = ?`, id).
		WithContext(ctx).Scan(&channelID, &senderID)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("fetch by id", err)
	}

	m := &model.Message{ID: id, ChannelID: channelID, SenderID: senderID}
	err = s.session.Query(`SELECT content, timestamp FROM messages WHERE channel_id = ? AND id = ?`, channelID, id).
		WithContext(ctx).Scan(&m.Content, &m.Timestamp)
	if err != nil && !errors.Is(err, gocql.ErrNotFound) {
		return nil, unavailable("fetch by id", err)
	}
	return m, nil
}

func (s *ScyllaStore) DeleteByID(ctx context.Context, id int64) error {
	var channelID string
	err := s.session.Query(`SELECT channel_id FROM messages_by_id WHERE id = ?`, id).
		WithContext(ctx).Scan(&channelID)
	if errors.Is(err, gocql.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return unavailable("delete", err)
	}

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM messages WHERE channel_id = ? AND id = ?`, channelID, id)
	batch.Query(`DELETE FROM messages_by_id WHERE id = ?`, id)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

func (s *ScyllaStore) DeleteAllForChannel(ctx context.Context, channelID string) (int, error) {
	iter := s.session.Query(`SELECT id FROM messages WHERE channel_id = ?`, channelID).
		WithContext(ctx).Iter()

	var ids []int64
	var id int64
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return 0, unavailable("clear", err)
	}

	if err := s.session.Query(`DELETE FROM messages WHERE channel_id = ?`, channelID).
		WithContext(ctx).Exec(); err != nil {
		return 0, unavailable("clear", err)
	}
	for _, id := range ids {
		if err := s.session.Query(`DELETE FROM messages_by_id WHERE id = ?`, id).
			WithContext(ctx).Exec(); err != nil {
			return 0, unavailable("clear", err)
		}
	}
	return len(ids), nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
