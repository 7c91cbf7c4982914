package model

import "time"

type AccessType string

const (
	AccessPublic    AccessType = "public"
	AccessProtected AccessType = "protected"
	AccessInvite    AccessType = "invite"
)

const (
	// GeneralChannel always exists and cannot be deleted or left.
	GeneralChannel = "general"

	// SystemAdmin owns the general channel.
	SystemAdmin = "system"
)

// Channel is the directory record for one named room.
type Channel struct {
	Name       string     `json:"channel_name"`
	AdminID    string     `json:"admin_id"`
	AccessType AccessType `json:"access_type"`
	Members    []string   `json:"members"`
	CreatedAt  time.Time  `json:"created_at"`
	Deleted    bool       `json:"-"`
}
