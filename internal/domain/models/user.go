// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a node in the invite forest.
//
// NOTE:
//   - InvitedBy is the only tree edge. Core members and roots have nil.
//   - A non-nil DeletedAt marks a soft-deleted user. Soft-deleted users are
//     invisible to tree traversal but stay in the collection for forensics.
type User struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Username     string              `bson:"username" json:"username"`
	Email        string              `bson:"email" json:"email"`
	Role         string              `bson:"role" json:"role"` // user | admin | superadmin
	Status       string              `bson:"status" json:"status"`
	IsCoreMember bool                `bson:"is_core_member" json:"is_core_member"`
	InvitedBy    *primitive.ObjectID `bson:"invited_by,omitempty" json:"invited_by,omitempty"`

	InviteQuota int `bson:"invite_quota" json:"invite_quota"`
	InvitesUsed int `bson:"invites_used" json:"invites_used"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`

	DeletedAt     *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	DeletedReason string     `bson:"deleted_reason,omitempty" json:"deleted_reason,omitempty"`
}

// InvitesAvailable is the remaining invite quota, never negative.
func (u User) InvitesAvailable() int {
	if n := u.InviteQuota - u.InvitesUsed; n > 0 {
		return n
	}
	return 0
}

// IsDeleted reports whether the user has been soft-deleted.
func (u User) IsDeleted() bool {
	return u.DeletedAt != nil
}
