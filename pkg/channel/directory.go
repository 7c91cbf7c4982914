// Package channel is the channel directory: the named-room metadata the
// messaging core reads admin identifiers from, plus the membership
// bookkeeping behind the HTTP channel API.
package channel

import (
	"context"
	"errors"

	"github.com/atultiwari1305/coon/pkg/model"
)

var (
	ErrNotFound  = errors.New("channel not found")
	ErrExists    = errors.New("channel already exists")
	ErrForbidden = errors.New("not allowed")
	ErrNotMember = errors.New("not a member of this channel")
)

// Directory stores channel records. Deleting is a soft delete: the record
// keeps its name reserved but drops out of every listing.
type Directory interface {
	// ResolveAdmin returns the admin of a live channel, or ErrNotFound.
	ResolveAdmin(ctx context.Context, name string) (string, error)

	// EnsureGeneral creates the default channel if it does not exist.
	EnsureGeneral(ctx context.Context) error

	// Create registers a new channel with the caller as admin and sole
	// member. ErrExists when a live channel holds the name.
	Create(ctx context.Context, name, adminID string, access model.AccessType) (*model.Channel, error)

	// Join adds the user to a channel, creating it as public with the
	// user as admin when absent.
	Join(ctx context.Context, name, userID string) (*model.Channel, error)

	// Joined lists the user's channels, enrolling them in general first.
	Joined(ctx context.Context, userID string) ([]model.Channel, error)

	// Leave removes the user from a channel. The general channel cannot
	// be left (ErrForbidden); the admin cannot leave without the channel
	// being deleted, which is the caller's composition via Delete.
	Leave(ctx context.Context, name, userID string) error

	// Delete soft-deletes a channel. Only its admin may (ErrForbidden);
	// general is never deletable.
	Delete(ctx context.Context, name, adminID string) error

	// Search lists live channels whose name contains the query,
	// case-insensitively.
	Search(ctx context.Context, query string) ([]model.Channel, error)

	// Info returns a live channel, or ErrNotFound.
	Info(ctx context.Context, name string) (*model.Channel, error)
}
