// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/invitetree/internal/app/system/status"
	"github.com/dalemusser/invitetree/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll attaches JSON-Schema validators to the invite tree collections.
// The collections must already exist (indexes.EnsureAll creates them).
// Servers that don't support collMod validators are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var problems []string
	for _, v := range []struct {
		coll   string
		schema bson.M
	}{
		{"users", usersSchema()},
		{"health_scores", healthScoresSchema()},
		{"prune_operations", pruneOperationsSchema()},
	} {
		if err := setValidator(ctx, db, v.coll, v.schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				logger.Info("validator skipped (unsupported)", zap.String("collection", v.coll))
				continue
			}
			problems = append(problems, v.coll+": "+err.Error())
			continue
		}
		logger.Debug("validator ensured", zap.String("collection", v.coll))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// setValidator uses moderate validation so documents written before a
// schema change can still be updated.
func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	return db.RunCommand(ctx, cmd).Err()
}

func isNoSuchCommand(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 115 {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var integer = bson.A{"int", "long"}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"username", "status", "is_core_member", "invite_quota", "invites_used", "created_at"},
			"properties": bson.M{
				"username":       bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"email":          bson.M{"bsonType": "string"},
				"status":         bson.M{"enum": bson.A{status.Active, status.Flagged, status.Banned, status.Suspended}},
				"is_core_member": bson.M{"bsonType": "bool"},
				"invited_by":     bson.M{"bsonType": bson.A{"objectId", "null"}},
				"invite_quota":   bson.M{"bsonType": integer, "minimum": 0},
				"invites_used":   bson.M{"bsonType": integer, "minimum": 0},
				"created_at":     bson.M{"bsonType": "date"},
				"deleted_at":     bson.M{"bsonType": bson.A{"date", "null"}},
			},
		},
	}
}

func healthScoresSchema() bson.M {
	score := bson.M{"bsonType": bson.A{"double", "int", "long"}, "minimum": 0, "maximum": 100}
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "calculated_at", "overall_health", "maturity_level"},
			"properties": bson.M{
				"user_id":        bson.M{"bsonType": "objectId"},
				"calculated_at":  bson.M{"bsonType": "date"},
				"overall_health": score,
				"subtree_size":   bson.M{"bsonType": integer, "minimum": 0},
				"maturity_level": bson.M{"enum": bson.A{
					models.MaturityBranch, models.MaturitySupportingTrunk, models.MaturityCore,
				}},
			},
		},
	}
}

func pruneOperationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"root_user_id", "reason", "executed_by", "status", "created_at", "affected_users"},
			"properties": bson.M{
				"root_user_id": bson.M{"bsonType": "objectId"},
				"reason":       bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"executed_by":  bson.M{"bsonType": "objectId"},
				"status": bson.M{"enum": bson.A{
					models.PruneStatusPending, models.PruneStatusCompleted, models.PruneStatusRolledBack,
				}},
				"created_at":     bson.M{"bsonType": "date"},
				"affected_users": bson.M{"bsonType": "array"},
			},
		},
	}
}
