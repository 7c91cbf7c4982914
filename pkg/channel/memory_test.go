package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/atultiwari1305/coon/pkg/model"
)

func newDirectory(t *testing.T) *MemoryDirectory {
	t.Helper()
	d := NewMemoryDirectory()
	if err := d.EnsureGeneral(context.Background()); err != nil {
		t.Fatalf("EnsureGeneral: %v", err)
	}
	return d
}

func TestGeneralChannelExists(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	adminID, err := d.ResolveAdmin(ctx, model.GeneralChannel)
	if err != nil {
		t.Fatalf("ResolveAdmin: %v", err)
	}
	if adminID != model.SystemAdmin {
		t.Fatalf("general admin should be %q, got %q", model.SystemAdmin, adminID)
	}

	// Repeated ensures keep the existing record.
	if err := d.EnsureGeneral(ctx); err != nil {
		t.Fatalf("second EnsureGeneral: %v", err)
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, "random", "alice", model.AccessPublic); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := d.Create(ctx, "random", "bob", model.AccessPublic); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestCreateAfterDeleteReusesName(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, "random", "alice", model.AccessPublic); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.Delete(ctx, "random", "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := d.Create(ctx, "random", "bob", model.AccessInvite); err != nil {
		t.Fatalf("recreate after delete: %v", err)
	}
	adminID, err := d.ResolveAdmin(ctx, "random")
	if err != nil {
		t.Fatalf("ResolveAdmin: %v", err)
	}
	if adminID != "bob" {
		t.Fatalf("expected new admin bob, got %q", adminID)
	}
}

func TestJoinCreatesMissingChannel(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	ch, err := d.Join(ctx, "adhoc", "alice")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if ch.AdminID != "alice" {
		t.Fatalf("creator should be admin, got %q", ch.AdminID)
	}

	ch, err = d.Join(ctx, "adhoc", "bob")
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if ch.AdminID != "alice" {
		t.Fatalf("admin must not change on join, got %q", ch.AdminID)
	}
	if len(ch.Members) != 2 {
		t.Fatalf("expected 2 members, got %v", ch.Members)
	}

	// Joining twice keeps membership a set.
	ch, err = d.Join(ctx, "adhoc", "bob")
	if err != nil {
		t.Fatalf("repeat Join: %v", err)
	}
	if len(ch.Members) != 2 {
		t.Fatalf("duplicate join grew membership: %v", ch.Members)
	}
}

func TestJoinedEnrollsInGeneral(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	channels, err := d.Joined(ctx, "alice")
	if err != nil {
		t.Fatalf("Joined: %v", err)
	}
	if len(channels) != 1 || channels[0].Name != model.GeneralChannel {
		t.Fatalf("expected general only, got %+v", channels)
	}
}

func TestLeaveRules(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	if err := d.Leave(ctx, model.GeneralChannel, "alice"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("leaving general: expected ErrForbidden, got %v", err)
	}
	if err := d.Leave(ctx, "missing", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("leaving missing channel: expected ErrNotFound, got %v", err)
	}

	if _, err := d.Create(ctx, "random", "alice", model.AccessPublic); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.Leave(ctx, "random", "bob"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}

	if _, err := d.Join(ctx, "random", "bob"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := d.Leave(ctx, "random", "bob"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	ch, err := d.Info(ctx, "random")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if len(ch.Members) != 1 || ch.Members[0] != "alice" {
		t.Fatalf("unexpected members after leave: %v", ch.Members)
	}
}

func TestDeleteAuthorization(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, "random", "alice", model.AccessPublic); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := d.Delete(ctx, "random", "bob"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-admin delete: expected ErrForbidden, got %v", err)
	}
	if err := d.Delete(ctx, model.GeneralChannel, model.SystemAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("deleting general: expected ErrForbidden, got %v", err)
	}

	if err := d.Delete(ctx, "random", "alice"); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := d.Info(ctx, "random"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted channel should be hidden, got %v", err)
	}
	if _, err := d.ResolveAdmin(ctx, "random"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted channel should not resolve, got %v", err)
	}
}

func TestSearchExcludesDeleted(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	for _, name := range []string{"go-help", "go-jobs", "random"} {
		if _, err := d.Create(ctx, name, "alice", model.AccessPublic); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	if err := d.Delete(ctx, "go-jobs", "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := d.Search(ctx, "GO-")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Name != "go-help" {
		t.Fatalf("expected only go-help, got %+v", results)
	}
}
