// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/dalemusser/invitetree/internal/app/system/status"
	"github.com/dalemusser/invitetree/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the user directory. Reads that feed tree traversal only ever
// return live (non-deleted) users; GetByID returns deleted rows too so that
// callers can tell "missing" from "soft-deleted".
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var live = bson.M{"deleted_at": nil}

var (
	// ErrDuplicateUsername is returned when the username or email is taken.
	ErrDuplicateUsername = errors.New("a user with this username or email already exists")
	errBadStatus         = apperr.BadRequest(`status must be "active"|"flagged"|"banned"|"suspended"`)
	errBadUsername       = apperr.BadRequest("username is required")
)

// GetByID loads a user by ObjectID, including soft-deleted users.
// Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername loads a user by username, including soft-deleted users.
func (s *Store) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"username": strings.TrimSpace(username)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListChildren returns the live users whose inviter is one of parentIDs,
// oldest first.
func (s *Store) ListChildren(ctx context.Context, parentIDs []primitive.ObjectID) ([]models.User, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	filter := bson.M{"invited_by": bson.M{"$in": parentIDs}, "deleted_at": nil}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return s.find(ctx, filter, opts)
}

// DirectInvitees returns the live users invited by id, newest first.
func (s *Store) DirectInvitees(ctx context.Context, id primitive.ObjectID) ([]models.User, error) {
	filter := bson.M{"invited_by": id, "deleted_at": nil}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.find(ctx, filter, opts)
}

// CountAll counts every user row, deleted or not. It bounds ancestor walks.
func (s *Store) CountAll(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

// LiveIDs returns the ids of all non-deleted users.
func (s *Store) LiveIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, live, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// Create inserts a user after normalizing and validating fields.
// It does not touch the inviter; use RegisterInvitee for invited users.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Status = status.Normalize(u.Status)
	if u.Status == "" {
		u.Status = status.Active
	}
	if u.Role == "" {
		u.Role = "user"
	}
	if u.Username == "" {
		return models.User{}, errBadUsername
	}
	if !status.IsValid(u.Status) {
		return models.User{}, errBadStatus
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateUsername
		}
		return models.User{}, err
	}
	return u, nil
}

// RegisterInvitee consumes one invite from inviterID and inserts u as its
// child. The inviter must be live and active with quota left.
//
// Run it inside a transaction: the invites_used increment writes the
// inviter's document, which makes a concurrent prune of the inviter's branch
// conflict instead of orphaning the new user.
func (s *Store) RegisterInvitee(ctx context.Context, inviterID primitive.ObjectID, u models.User) (models.User, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":        inviterID,
			"deleted_at": nil,
			"status":     status.Active,
			"$expr":      bson.M{"$lt": bson.A{"$invites_used", "$invite_quota"}},
		},
		bson.M{
			"$inc": bson.M{"invites_used": 1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return models.User{}, err
	}
	if res.MatchedCount == 0 {
		inviter, err := s.GetByID(ctx, inviterID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.User{}, apperr.NotFound("inviter %s not found", inviterID.Hex())
			}
			return models.User{}, err
		}
		if inviter.IsDeleted() || inviter.Status != status.Active {
			return models.User{}, apperr.BadRequest("inviter %s cannot invite (status %s)", inviterID.Hex(), inviter.Status)
		}
		return models.User{}, apperr.InsufficientQuota("inviter %s has no invites available", inviterID.Hex())
	}

	u.InvitedBy = &inviterID
	u.IsCoreMember = false
	return s.Create(ctx, u)
}

// SoftDelete marks a live user deleted and banned. It reports whether a row
// changed; an already deleted user is left as is.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time, reason string) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": nil},
		bson.M{"$set": bson.M{
			"deleted_at":     at,
			"deleted_reason": reason,
			"status":         status.Banned,
			"updated_at":     at,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Restore clears the soft-delete fields of a deleted user and sets the
// status to active, whatever it was before deletion.
func (s *Store) Restore(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": bson.M{"$ne": nil}},
		bson.M{
			"$unset": bson.M{"deleted_at": "", "deleted_reason": ""},
			"$set":   bson.M{"status": status.Active, "updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// FlagIfActive moves a live, active user to flagged. Users in any other
// status are left untouched.
func (s *Store) FlagIfActive(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": nil, "status": status.Active},
		bson.M{"$set": bson.M{"status": status.Flagged, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SetStatus changes a live user's status and returns the previous value.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, newStatus string) (string, error) {
	newStatus = status.Normalize(newStatus)
	if !status.IsValid(newStatus) {
		return "", errBadStatus
	}
	var before models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted_at": nil},
		bson.M{"$set": bson.M{"status": newStatus, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		return "", err
	}
	return before.Status, nil
}

// SetInviteQuota replaces a live user's quota and returns the old value.
func (s *Store) SetInviteQuota(ctx context.Context, id primitive.ObjectID, quota int) (int, error) {
	if quota < 0 {
		return 0, apperr.BadRequest("invite quota must not be negative")
	}
	var before models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted_at": nil},
		bson.M{"$set": bson.M{"invite_quota": quota, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil {
		return 0, err
	}
	return before.InviteQuota, nil
}

// QuotaCandidates returns live active users created before createdBefore
// whose quota is below maxQuota and who have fewer than minAvailable
// invites left.
func (s *Store) QuotaCandidates(ctx context.Context, createdBefore time.Time, maxQuota, minAvailable int) ([]models.User, error) {
	filter := bson.M{
		"deleted_at":   nil,
		"status":       status.Active,
		"created_at":   bson.M{"$lte": createdBefore},
		"invite_quota": bson.M{"$lt": maxQuota},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$subtract": bson.A{"$invite_quota", "$invites_used"}},
			minAvailable,
		}},
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (s *Store) find(ctx context.Context, filter any, opts *options.FindOptions) ([]models.User, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
