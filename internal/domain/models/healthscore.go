// internal/domain/models/healthscore.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Maturity levels.
const (
	MaturityBranch          = "branch"
	MaturitySupportingTrunk = "supporting_trunk"
	MaturityCore            = "core"
)

// HealthScore is an immutable snapshot of a user's subtree health.
// Snapshots accumulate; the most recent one is shown.
type HealthScore struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"user_id" json:"user_id"`
	CalculatedAt time.Time          `bson:"calculated_at" json:"calculated_at"`

	SubtreeSize   int `bson:"subtree_size" json:"subtree_size"`
	ActiveCount   int `bson:"subtree_active_count" json:"subtree_active_count"`
	FlaggedCount  int `bson:"subtree_flagged_count" json:"subtree_flagged_count"`
	BannedCount   int `bson:"subtree_banned_count" json:"subtree_banned_count"`
	MaxDepthBelow int `bson:"max_depth_below" json:"max_depth_below"`

	DirectInviteeHealth float64 `bson:"direct_invitee_health" json:"direct_invitee_health"`
	SubtreeHealth       float64 `bson:"subtree_health" json:"subtree_health"`
	OverallHealth       float64 `bson:"overall_health" json:"overall_health"`

	MaturityLevel string `bson:"maturity_level" json:"maturity_level"`
}
