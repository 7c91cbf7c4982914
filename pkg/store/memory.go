package store

import (
	"context"
	"sync"
	"time"

	"github.com/atultiwari1305/coon/pkg/model"
)

// MemoryStore is an in-process MessageStore used in tests and when no
// Scylla hosts are configured. It keeps the same ordering contract as the
// Scylla implementation.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	logs   map[string][]model.Message // channel -> append order
	byID   map[int64]*model.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		logs:   make(map[string][]model.Message),
		byID:   make(map[int64]*model.Message),
	}
}

func (s *MemoryStore) Append(ctx context.Context, channelID, senderID, content string, ts time.Time) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := model.Message{
		ID:        s.nextID,
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: ts,
	}
	s.nextID++
	s.logs[channelID] = append(s.logs[channelID], msg)
	s.byID[msg.ID] = &msg
	out := msg
	return &out, nil
}

func (s *MemoryStore) FetchNewest(ctx context.Context, channelID string, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[channelID]
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]model.Message, len(log))
	copy(out, log)
	return out, nil
}

func (s *MemoryStore) FetchByID(ctx context.Context, id int64) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *msg
	return &out, nil
}

func (s *MemoryStore) DeleteByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)

	log := s.logs[msg.ChannelID]
	for i := range log {
		if log[i].ID == id {
			s.logs[msg.ChannelID] = append(log[:i], log[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) DeleteAllForChannel(ctx context.Context, channelID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[channelID]
	for i := range log {
		delete(s.byID, log[i].ID)
	}
	delete(s.logs, channelID)
	return len(log), nil
}
