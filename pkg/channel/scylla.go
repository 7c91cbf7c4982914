package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/atultiwari1305/coon/pkg/db"
	"github.com/atultiwari1305/coon/pkg/model"
)

// ScyllaDirectory stores channel records in the `channels` table, keyed by
// name. Listings scan the table and filter in process; the directory is
// small relative to the message log, so no index tables are kept for it.
type ScyllaDirectory struct {
	session *db.Session
}

func NewScyllaDirectory(session *db.Session) *ScyllaDirectory {
	return &ScyllaDirectory{session: session}
}

func (d *ScyllaDirectory) ResolveAdmin(ctx context.Context, name string) (string, error) {
	var adminID string
	var deleted bool
	err := d.session.Query(`SELECT admin_id, deleted FROM channels WHERE channel_name = ?`, name).
		WithContext(ctx).Scan(&adminID, &deleted)
	if errors.Is(err, gocql.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve admin: %w", err)
	}
	if deleted {
		return "", ErrNotFound
	}
	return adminID, nil
}

func (d *ScyllaDirectory) EnsureGeneral(ctx context.Context) error {
	_, err := d.Info(ctx, model.GeneralChannel)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return d.insert(ctx, &model.Channel{
		Name:       model.GeneralChannel,
		AdminID:    model.SystemAdmin,
		AccessType: model.AccessPublic,
		CreatedAt:  time.Now(),
	})
}

func (d *ScyllaDirectory) Create(ctx context.Context, name, adminID string, access model.AccessType) (*model.Channel, error) {
	if _, err := d.Info(ctx, name); err == nil {
		return nil, ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	ch := &model.Channel{
		Name:       name,
		AdminID:    adminID,
		AccessType: access,
		Members:    []string{adminID},
		CreatedAt:  time.Now(),
	}
	if err := d.insert(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (d *ScyllaDirectory) Join(ctx context.Context, name, userID string) (*model.Channel, error) {
	ch, err := d.Info(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return d.Create(ctx, name, userID, model.AccessPublic)
	}
	if err != nil {
		return nil, err
	}

	if err := d.session.Query(`UPDATE channels SET members = members + ? WHERE channel_name = ?`,
		[]string{userID}, name).WithContext(ctx).Exec(); err != nil {
		return nil, fmt.Errorf("join channel: %w", err)
	}
	if !containsMember(ch.Members, userID) {
		ch.Members = append(ch.Members, userID)
	}
	return ch, nil
}

func (d *ScyllaDirectory) Joined(ctx context.Context, userID string) ([]model.Channel, error) {
	if _, err := d.Join(ctx, model.GeneralChannel, userID); err != nil {
		return nil, err
	}

	all, err := d.scan(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Channel
	for _, ch := range all {
		if containsMember(ch.Members, userID) {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (d *ScyllaDirectory) Leave(ctx context.Context, name, userID string) error {
	if name == model.GeneralChannel {
		return ErrForbidden
	}

	ch, err := d.Info(ctx, name)
	if err != nil {
		return err
	}
	if !containsMember(ch.Members, userID) {
		return ErrNotMember
	}

	if err := d.session.Query(`UPDATE channels SET members = members - ? WHERE channel_name = ?`,
		[]string{userID}, name).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("leave channel: %w", err)
	}
	return nil
}

func (d *ScyllaDirectory) Delete(ctx context.Context, name, adminID string) error {
	if name == model.GeneralChannel {
		return ErrForbidden
	}

	ch, err := d.Info(ctx, name)
	if err != nil {
		return err
	}
	if ch.AdminID != adminID {
		return ErrForbidden
	}

	if err := d.session.Query(`UPDATE channels SET deleted = true WHERE channel_name = ?`, name).
		WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

func (d *ScyllaDirectory) Search(ctx context.Context, query string) ([]model.Channel, error) {
	all, err := d.scan(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var out []model.Channel
	for _, ch := range all {
		if strings.Contains(strings.ToLower(ch.Name), query) {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (d *ScyllaDirectory) Info(ctx context.Context, name string) (*model.Channel, error) {
	ch := &model.Channel{Name: name}
	var access string
	err := d.session.Query(`SELECT admin_id, access_type, members, created_at, deleted FROM channels WHERE channel_name = ?`, name).
		WithContext(ctx).Scan(&ch.AdminID, &access, &ch.Members, &ch.CreatedAt, &ch.Deleted)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("channel info: %w", err)
	}
	if ch.Deleted {
		return nil, ErrNotFound
	}
	ch.AccessType = model.AccessType(access)
	return ch, nil
}

func (d *ScyllaDirectory) insert(ctx context.Context, ch *model.Channel) error {
	err := d.session.Query(`INSERT INTO channels (channel_name, admin_id, access_type, members, created_at, deleted) VALUES (?, ?, ?, ?, ?, false)`,
		ch.Name, ch.AdminID, string(ch.AccessType), ch.Members, ch.CreatedAt).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

func (d *ScyllaDirectory) scan(ctx context.Context) ([]model.Channel, error) {
	iter := d.session.Query(`SELECT channel_name, admin_id, access_type, members, created_at, deleted FROM channels`).
		WithContext(ctx).Iter()

	var out []model.Channel
	var ch model.Channel
	var access string
	for iter.Scan(&ch.Name, &ch.AdminID, &access, &ch.Members, &ch.CreatedAt, &ch.Deleted) {
		if ch.Deleted {
			ch = model.Channel{}
			continue
		}
		ch.AccessType = model.AccessType(access)
		out = append(out, ch)
		ch = model.Channel{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scan channels: %w", err)
	}
	return out, nil
}

func containsMember(members []string, userID string) bool {
	for _, m := range members {
		if m == userID {
			return true
		}
	}
	return false
}
