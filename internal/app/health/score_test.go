package health

import (
	"testing"
	"time"

	"github.com/dalemusser/invitetree/internal/app/tree"
	"github.com/dalemusser/invitetree/internal/domain/models"
)

// recs builds descendant records from (depth, status) pairs. A root at
// depth 0 is always prepended.
func recs(rows ...any) []tree.DescendantRecord {
	out := []tree.DescendantRecord{{Depth: 0, Status: "active"}}
	for i := 0; i < len(rows); i += 2 {
		out = append(out, tree.DescendantRecord{Depth: rows[i].(int), Status: rows[i+1].(string)})
	}
	return out
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		in   []tree.DescendantRecord
		want Breakdown
	}{
		{
			name: "leaf",
			in:   recs(),
			want: Breakdown{Level1: 100, Level2: 100, Level3: 100, Weighted: 100, Final: 100},
		},
		{
			name: "unknown user",
			in:   nil,
			want: Breakdown{Level1: 100, Level2: 100, Level3: 100, Weighted: 100, Final: 100},
		},
		{
			name: "two active one banned direct",
			in:   recs(1, "active", 1, "active", 1, "banned"),
			want: Breakdown{Level1: 66.67, Level2: 100, Level3: 100, Weighted: 83.33, Penalty: 25, Final: 58.33},
		},
		{
			name: "sample tree",
			in:   recs(1, "active", 1, "active", 2, "active", 2, "flagged"),
			want: Breakdown{Level1: 100, Level2: 50, Level3: 100, Weighted: 85, Penalty: 10, Final: 75},
		},
		{
			name: "depth three and beyond share a level",
			in:   recs(1, "active", 2, "active", 3, "active", 4, "suspended"),
			want: Breakdown{Level1: 100, Level2: 100, Level3: 50, Weighted: 90, Penalty: 0, Final: 90},
		},
		{
			name: "clamped at zero",
			in:   recs(1, "banned", 1, "banned", 1, "banned", 1, "banned", 1, "banned"),
			want: Breakdown{Level1: 0, Level2: 100, Level3: 100, Weighted: 50, Penalty: 125, Final: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.in); got != tt.want {
				t.Errorf("Score() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -120)
	young := now.AddDate(0, 0, -30)
	big := tree.Stats{TotalDescendants: 12, MaxDepth: 4}

	tests := []struct {
		name  string
		user  models.User
		score float64
		stats tree.Stats
		want  string
	}{
		{"core member", models.User{IsCoreMember: true, CreatedAt: now}, 0, tree.Stats{}, models.MaturityCore},
		{"all thresholds met", models.User{CreatedAt: old}, 80, big, models.MaturitySupportingTrunk},
		{"exactly at thresholds", models.User{CreatedAt: now.AddDate(0, 0, -90)}, 75, tree.Stats{TotalDescendants: 10, MaxDepth: 3}, models.MaturitySupportingTrunk},
		{"too young", models.User{CreatedAt: young}, 80, big, models.MaturityBranch},
		{"low health", models.User{CreatedAt: old}, 74.99, big, models.MaturityBranch},
		{"too shallow", models.User{CreatedAt: old}, 80, tree.Stats{TotalDescendants: 12, MaxDepth: 2}, models.MaturityBranch},
		{"too small", models.User{CreatedAt: old}, 80, tree.Stats{TotalDescendants: 9, MaxDepth: 4}, models.MaturityBranch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(cfg, tt.user, tt.score, tt.stats, now); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	bad := DefaultConfig()
	bad.LowThreshold = 120
	if err := bad.Validate(); err == nil {
		t.Error("expected error for threshold above 100")
	}
	bad = DefaultConfig()
	bad.TrunkMinSize = -1
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative size")
	}
}
