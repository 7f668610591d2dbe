// Package tree answers structural questions about the invite forest:
// who a user invited (transitively), who invited them, and aggregate counts
// over a branch. Every call re-reads the directory; nothing is cached.
//
// Soft-deleted users are invisible here. A live user whose inviter is
// deleted or missing is an orphan: it is never reached from above, and an
// upward walk from it stops early and reports the lineage as truncated.
package tree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/dalemusser/invitetree/internal/app/system/metrics"
	"github.com/dalemusser/invitetree/internal/app/system/status"
	"github.com/dalemusser/invitetree/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// NoLimit disables the depth bound of Descendants.
const NoLimit = -1

// childBatch bounds the size of one $in list when reading a level.
const childBatch = 500

// Directory is the read side of the user store the engine walks.
// GetByID must include soft-deleted users and return mongo.ErrNoDocuments
// for unknown ids. ListChildren and DirectInvitees return live users only.
type Directory interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ListChildren(ctx context.Context, parentIDs []primitive.ObjectID) ([]models.User, error)
	DirectInvitees(ctx context.Context, id primitive.ObjectID) ([]models.User, error)
	CountAll(ctx context.Context) (int64, error)
}

// DescendantRecord is one user reached by a downward walk.
type DescendantRecord struct {
	ID           primitive.ObjectID   `json:"id"`
	Username     string               `json:"username"`
	Email        string               `json:"email"`
	Status       string               `json:"status"`
	IsCoreMember bool                 `json:"is_core_member"`
	InvitedBy    *primitive.ObjectID  `json:"invited_by"`
	CreatedAt    time.Time            `json:"created_at"`
	Depth        int                  `json:"depth"`
	Path         []primitive.ObjectID `json:"path"`
}

// AncestorRecord is one user on the upward walk. HopsToRoot is the
// distance from the walked user, so the user itself has 0.
type AncestorRecord struct {
	ID         primitive.ObjectID  `json:"id"`
	Username   string              `json:"username"`
	Status     string              `json:"status"`
	InvitedBy  *primitive.ObjectID `json:"invited_by"`
	CreatedAt  time.Time           `json:"created_at"`
	HopsToRoot int                 `json:"hops_to_root"`
}

// Lineage is the resolvable chain from the top-most reachable ancestor down
// to the user. Truncated is set when the walk stopped at a deleted or
// missing inviter rather than a true root.
type Lineage struct {
	Chain     []AncestorRecord `json:"chain"`
	Truncated bool             `json:"truncated"`
}

// Stats aggregates a branch, excluding its root.
type Stats struct {
	TotalDescendants int `json:"total_descendants"`
	ActiveCount      int `json:"active_count"`
	FlaggedCount     int `json:"flagged_count"`
	BannedCount      int `json:"banned_count"`
	SuspendedCount   int `json:"suspended_count"`
	MaxDepth         int `json:"max_depth"`
	DirectInvites    int `json:"direct_invites"`
}

// TreeNode is the nested form of a branch.
type TreeNode struct {
	ID        primitive.ObjectID `json:"id"`
	Username  string             `json:"username"`
	Status    string             `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	Depth     int                `json:"depth"`
	Children  []*TreeNode        `json:"children"`
}

// Engine runs traversals against a Directory.
type Engine struct {
	dir Directory
	log *zap.Logger
}

func New(dir Directory, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{dir: dir, log: log}
}

// live loads a user and reports whether it exists and is not deleted.
func (e *Engine) live(ctx context.Context, id primitive.ObjectID) (*models.User, bool, error) {
	u, err := e.dir.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load user %s: %w", id.Hex(), err)
	}
	return u, !u.IsDeleted(), nil
}

func record(u models.User, depth int, path []primitive.ObjectID) DescendantRecord {
	return DescendantRecord{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Status:       u.Status,
		IsCoreMember: u.IsCoreMember,
		InvitedBy:    u.InvitedBy,
		CreatedAt:    u.CreatedAt,
		Depth:        depth,
		Path:         path,
	}
}

// Descendants returns rootID and every live user below it, ordered by
// (depth, created_at, id). Pass NoLimit for an unbounded walk. An unknown or
// deleted root yields an empty result.
func (e *Engine) Descendants(ctx context.Context, rootID primitive.ObjectID, maxDepth int) ([]DescendantRecord, error) {
	start := time.Now()
	defer metrics.ObserveSince(metrics.TraversalDuration.WithLabelValues("descendants"), start)

	root, ok, err := e.live(ctx, rootID)
	if err != nil || !ok {
		return nil, err
	}

	out := []DescendantRecord{record(*root, 0, []primitive.ObjectID{root.ID})}
	seen := map[primitive.ObjectID]bool{root.ID: true}
	frontier := map[primitive.ObjectID]int{root.ID: 0} // id -> index in out

	for depth := 1; len(frontier) > 0 && (maxDepth < 0 || depth <= maxDepth); depth++ {
		children, err := e.children(ctx, frontier)
		if err != nil {
			return nil, err
		}
		next := make(map[primitive.ObjectID]int, len(children))
		for _, c := range children {
			if seen[c.ID] {
				e.log.Warn("invite cycle below root; skipping revisited user",
					zap.String("root_id", rootID.Hex()),
					zap.String("user_id", c.ID.Hex()))
				continue
			}
			parent := out[frontier[*c.InvitedBy]]
			path := make([]primitive.ObjectID, len(parent.Path), len(parent.Path)+1)
			copy(path, parent.Path)
			path = append(path, c.ID)

			seen[c.ID] = true
			next[c.ID] = len(out)
			out = append(out, record(c, depth, path))
		}
		frontier = next
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	metrics.TraversalSize.Observe(float64(len(out)))
	return out, nil
}

// children reads the next level in batches of childBatch parents.
func (e *Engine) children(ctx context.Context, frontier map[primitive.ObjectID]int) ([]models.User, error) {
	ids := make([]primitive.ObjectID, 0, len(frontier))
	for id := range frontier {
		ids = append(ids, id)
	}
	var out []models.User
	for i := 0; i < len(ids); i += childBatch {
		end := min(i+childBatch, len(ids))
		batch, err := e.dir.ListChildren(ctx, ids[i:end])
		if err != nil {
			return nil, fmt.Errorf("list children: %w", err)
		}
		for _, c := range batch {
			if c.InvitedBy == nil {
				continue
			}
			if _, ok := frontier[*c.InvitedBy]; !ok {
				continue
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// Ancestors walks from userID up to its root and returns the chain
// root-first. The walk is capped at the total user count; exceeding it, or
// revisiting a user, fails with a CorruptTree error. An unknown or deleted
// user yields an empty lineage.
func (e *Engine) Ancestors(ctx context.Context, userID primitive.ObjectID) (Lineage, error) {
	start := time.Now()
	defer metrics.ObserveSince(metrics.TraversalDuration.WithLabelValues("ancestors"), start)

	u, ok, err := e.live(ctx, userID)
	if err != nil || !ok {
		return Lineage{}, err
	}
	limit, err := e.dir.CountAll(ctx)
	if err != nil {
		return Lineage{}, fmt.Errorf("count users: %w", err)
	}

	chain := []models.User{*u}
	visited := map[primitive.ObjectID]bool{u.ID: true}
	truncated := false

	for cur := u; cur.InvitedBy != nil; {
		if int64(len(chain)) > limit {
			return Lineage{}, apperr.CorruptTree("ancestor walk from %s exceeded %d hops", userID.Hex(), limit)
		}
		parentID := *cur.InvitedBy
		if visited[parentID] {
			return Lineage{}, apperr.CorruptTree("invite cycle at %s above %s", parentID.Hex(), userID.Hex())
		}
		parent, ok, err := e.live(ctx, parentID)
		if err != nil {
			return Lineage{}, err
		}
		if !ok {
			truncated = true
			break
		}
		visited[parentID] = true
		chain = append(chain, *parent)
		cur = parent
	}

	out := make([]AncestorRecord, len(chain))
	for i, a := range chain {
		out[len(chain)-1-i] = AncestorRecord{
			ID:         a.ID,
			Username:   a.Username,
			Status:     a.Status,
			InvitedBy:  a.InvitedBy,
			CreatedAt:  a.CreatedAt,
			HopsToRoot: i,
		}
	}
	if truncated {
		e.log.Info("ancestor walk stopped at missing or deleted inviter",
			zap.String("user_id", userID.Hex()),
			zap.Int("resolved", len(out)))
	}
	return Lineage{Chain: out, Truncated: truncated}, nil
}

// Summarize aggregates descendant records. The depth-0 record is the root
// and is not counted.
func Summarize(recs []DescendantRecord) Stats {
	var s Stats
	for _, r := range recs {
		if r.Depth == 0 {
			continue
		}
		s.TotalDescendants++
		switch r.Status {
		case status.Active:
			s.ActiveCount++
		case status.Flagged:
			s.FlaggedCount++
		case status.Banned:
			s.BannedCount++
		case status.Suspended:
			s.SuspendedCount++
		}
		if r.Depth > s.MaxDepth {
			s.MaxDepth = r.Depth
		}
		if r.Depth == 1 {
			s.DirectInvites++
		}
	}
	return s
}

// SubtreeStats aggregates the whole branch below userID. An unknown user
// has all-zero stats.
func (e *Engine) SubtreeStats(ctx context.Context, userID primitive.ObjectID) (Stats, error) {
	recs, err := e.Descendants(ctx, userID, NoLimit)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(recs), nil
}

// SubtreeSizes counts, for every record, how many other records sit below
// it. It relies on each Path running from the walk's root to the record.
func SubtreeSizes(recs []DescendantRecord) map[primitive.ObjectID]int {
	sizes := make(map[primitive.ObjectID]int, len(recs))
	for _, r := range recs {
		if _, ok := sizes[r.ID]; !ok {
			sizes[r.ID] = 0
		}
		for _, anc := range r.Path[:len(r.Path)-1] {
			sizes[anc]++
		}
	}
	return sizes
}

// BuildTree nests the branch below rootID down to maxDepth. The record whose
// inviter is not in the result becomes the top node.
func (e *Engine) BuildTree(ctx context.Context, rootID primitive.ObjectID, maxDepth int) (*TreeNode, error) {
	recs, err := e.Descendants(ctx, rootID, maxDepth)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperr.NotFound("user %s not found", rootID.Hex())
	}

	nodes := make(map[primitive.ObjectID]*TreeNode, len(recs))
	var top *TreeNode
	for _, r := range recs {
		n := &TreeNode{
			ID:        r.ID,
			Username:  r.Username,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
			Depth:     r.Depth,
			Children:  []*TreeNode{},
		}
		nodes[r.ID] = n
		if r.InvitedBy != nil {
			if p, ok := nodes[*r.InvitedBy]; ok {
				p.Children = append(p.Children, n)
				continue
			}
		}
		if top == nil {
			top = n
		}
	}
	return top, nil
}

// DirectInvitees lists the live users userID invited, newest first.
func (e *Engine) DirectInvitees(ctx context.Context, userID primitive.ObjectID) ([]models.User, error) {
	if _, ok, err := e.live(ctx, userID); err != nil {
		return nil, err
	} else if !ok {
		return nil, apperr.NotFound("user %s not found", userID.Hex())
	}
	out, err := e.dir.DirectInvitees(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list invitees: %w", err)
	}
	return out, nil
}
