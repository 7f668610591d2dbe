// internal/domain/models/pruneoperation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Prune operation states.
const (
	PruneStatusPending    = "pending"
	PruneStatusCompleted  = "completed"
	PruneStatusRolledBack = "rolled_back"
)

// PruneOperation records the soft-deletion of one branch.
//
// AffectedUsers is a copy of each user's fields at execution time, not a
// reference. Rollback reads from it after the live rows have changed.
type PruneOperation struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RootUserID        primitive.ObjectID `bson:"root_user_id" json:"root_user_id"`
	AffectedUserCount int                `bson:"affected_user_count" json:"affected_user_count"`
	Reason            string             `bson:"reason" json:"reason"`
	ExecutedBy        primitive.ObjectID `bson:"executed_by" json:"executed_by"`
	Status            string             `bson:"status" json:"status"`

	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	ExecutedAt *time.Time `bson:"executed_at,omitempty" json:"executed_at,omitempty"`

	RolledBackAt *time.Time          `bson:"rolled_back_at,omitempty" json:"rolled_back_at,omitempty"`
	RolledBackBy *primitive.ObjectID `bson:"rolled_back_by,omitempty" json:"rolled_back_by,omitempty"`

	AffectedUsers []AffectedUser `bson:"affected_users" json:"affected_users"`
}

// AffectedUser is the snapshot of one user inside a prune operation.
type AffectedUser struct {
	ID               primitive.ObjectID  `bson:"id" json:"id"`
	Username         string              `bson:"username" json:"username"`
	Email            string              `bson:"email" json:"email"`
	Status           string              `bson:"status" json:"status"`
	InvitedBy        *primitive.ObjectID `bson:"invited_by,omitempty" json:"invited_by,omitempty"`
	CreatedAt        time.Time           `bson:"created_at" json:"created_at"`
	Depth            int                 `bson:"depth" json:"depth"`
	DescendantsCount int                 `bson:"descendants_count" json:"descendants_count"`
}
