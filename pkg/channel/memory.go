package channel

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/atultiwari1305/coon/pkg/model"
)

// MemoryDirectory is the in-process Directory used in tests and when no
// Scylla hosts are configured.
type MemoryDirectory struct {
	mu       sync.Mutex
	channels map[string]*model.Channel
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{channels: make(map[string]*model.Channel)}
}

func (d *MemoryDirectory) ResolveAdmin(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch, ok := d.channels[name]
	if !ok || ch.Deleted {
		return "", ErrNotFound
	}
	return ch.AdminID, nil
}

func (d *MemoryDirectory) EnsureGeneral(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ch, ok := d.channels[model.GeneralChannel]; ok && !ch.Deleted {
		return nil
	}
	d.channels[model.GeneralChannel] = &model.Channel{
		Name:       model.GeneralChannel,
		AdminID:    model.SystemAdmin,
		AccessType: model.AccessPublic,
		CreatedAt:  time.Now(),
	}
	return nil
}

func (d *MemoryDirectory) Create(ctx context.Context, name, adminID string, access model.AccessType) (*model.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ch, ok := d.channels[name]; ok && !ch.Deleted {
		return nil, ErrExists
	}
	ch := &model.Channel{
		Name:       name,
		AdminID:    adminID,
		AccessType: access,
		Members:    []string{adminID},
		CreatedAt:  time.Now(),
	}
	d.channels[name] = ch
	out := *ch
	return &out, nil
}

func (d *MemoryDirectory) Join(ctx context.Context, name, userID string) (*model.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch, ok := d.channels[name]
	if !ok || ch.Deleted {
		ch = &model.Channel{
			Name:       name,
			AdminID:    userID,
			AccessType: model.AccessPublic,
			Members:    []string{userID},
			CreatedAt:  time.Now(),
		}
		d.channels[name] = ch
	} else if !contains(ch.Members, userID) {
		ch.Members = append(ch.Members, userID)
	}
	out := *ch
	return &out, nil
}

func (d *MemoryDirectory) Joined(ctx context.Context, userID string) ([]model.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if general, ok := d.channels[model.GeneralChannel]; ok && !general.Deleted {
		if !contains(general.Members, userID) {
			general.Members = append(general.Members, userID)
		}
	}

	var out []model.Channel
	for _, ch := range d.channels {
		if !ch.Deleted && contains(ch.Members, userID) {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (d *MemoryDirectory) Leave(ctx context.Context, name, userID string) error {
	if name == model.GeneralChannel {
		return ErrForbidden
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ch, ok := d.channels[name]
	if !ok || ch.Deleted {
		return ErrNotFound
	}
	if !contains(ch.Members, userID) {
		return ErrNotMember
	}
	members := ch.Members[:0]
	for _, m := range ch.Members {
		if m != userID {
			members = append(members, m)
		}
	}
	ch.Members = members
	return nil
}

func (d *MemoryDirectory) Delete(ctx context.Context, name, adminID string) error {
	if name == model.GeneralChannel {
		return ErrForbidden
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ch, ok := d.channels[name]
	if !ok || ch.Deleted {
		return ErrNotFound
	}
	if ch.AdminID != adminID {
		return ErrForbidden
	}
	ch.Deleted = true
	return nil
}

func (d *MemoryDirectory) Search(ctx context.Context, query string) ([]model.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query = strings.ToLower(query)
	var out []model.Channel
	for _, ch := range d.channels {
		if !ch.Deleted && strings.Contains(strings.ToLower(ch.Name), query) {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (d *MemoryDirectory) Info(ctx context.Context, name string) (*model.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch, ok := d.channels[name]
	if !ok || ch.Deleted {
		return nil, ErrNotFound
	}
	out := *ch
	return &out, nil
}

func contains(members []string, userID string) bool {
	for _, m := range members {
		if m == userID {
			return true
		}
	}
	return false
}
