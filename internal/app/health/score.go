package health

import (
	"math"
	"time"

	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/dalemusser/invitetree/internal/app/system/status"
	"github.com/dalemusser/invitetree/internal/app/tree"
	"github.com/dalemusser/invitetree/internal/domain/models"
)

// Level weights. Direct invitees count most.
const (
	weightLevel1 = 0.5
	weightLevel2 = 0.3
	weightLevel3 = 0.2

	penaltyFlagged = 10.0
	penaltyBanned  = 25.0
)

// Config holds the scoring and classification thresholds.
type Config struct {
	// LowThreshold is the default cut-off for FlagLowHealth.
	LowThreshold float64

	// A non-core user is a supporting trunk only when all four hold.
	TrunkMinDays   int
	TrunkMinHealth float64
	TrunkMinDepth  int
	TrunkMinSize   int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		LowThreshold:   50,
		TrunkMinDays:   90,
		TrunkMinHealth: 75,
		TrunkMinDepth:  3,
		TrunkMinSize:   10,
	}
}

// Validate checks that the thresholds are in range.
func (c Config) Validate() error {
	if c.LowThreshold < 0 || c.LowThreshold > 100 {
		return apperr.BadRequest("health low threshold %.2f outside 0..100", c.LowThreshold)
	}
	if c.TrunkMinHealth < 0 || c.TrunkMinHealth > 100 {
		return apperr.BadRequest("trunk min health %.2f outside 0..100", c.TrunkMinHealth)
	}
	if c.TrunkMinDays < 0 || c.TrunkMinDepth < 0 || c.TrunkMinSize < 0 {
		return apperr.BadRequest("trunk thresholds must not be negative")
	}
	return nil
}

// Breakdown is the arithmetic behind one score. Level values are the
// percentage of active users at depth 1, 2 and 3+; Weighted is their
// weighted sum before penalties.
type Breakdown struct {
	Level1   float64 `json:"level1"`
	Level2   float64 `json:"level2"`
	Level3   float64 `json:"level3"`
	Weighted float64 `json:"weighted"`
	Penalty  float64 `json:"penalty"`
	Final    float64 `json:"final"`
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

type level struct{ total, active int }

// health is 100 for an empty level.
func (l level) health() float64 {
	if l.total == 0 {
		return 100
	}
	return float64(l.active) / float64(l.total) * 100
}

// Score computes the health of the branch described by recs, which must
// include the root at depth 0.
func Score(recs []tree.DescendantRecord) Breakdown {
	if len(recs) <= 1 {
		return Breakdown{Level1: 100, Level2: 100, Level3: 100, Weighted: 100, Final: 100}
	}

	var levels [3]level
	var flagged, banned int
	for _, r := range recs {
		if r.Depth == 0 {
			continue
		}
		i := min(r.Depth, 3) - 1
		levels[i].total++
		switch r.Status {
		case status.Active:
			levels[i].active++
		case status.Flagged:
			flagged++
		case status.Banned:
			banned++
		}
	}

	weighted := levels[0].health()*weightLevel1 +
		levels[1].health()*weightLevel2 +
		levels[2].health()*weightLevel3
	penalty := float64(flagged)*penaltyFlagged + float64(banned)*penaltyBanned
	final := math.Max(0, math.Min(100, weighted-penalty))

	return Breakdown{
		Level1:   round2(levels[0].health()),
		Level2:   round2(levels[1].health()),
		Level3:   round2(levels[2].health()),
		Weighted: round2(weighted),
		Penalty:  penalty,
		Final:    round2(final),
	}
}

// Classify assigns a maturity level. Core members are always core.
func Classify(cfg Config, u models.User, score float64, stats tree.Stats, now time.Time) string {
	if u.IsCoreMember {
		return models.MaturityCore
	}
	ageDays := int(now.Sub(u.CreatedAt).Hours() / 24)
	if ageDays >= cfg.TrunkMinDays &&
		score >= cfg.TrunkMinHealth &&
		stats.MaxDepth >= cfg.TrunkMinDepth &&
		stats.TotalDescendants >= cfg.TrunkMinSize {
		return models.MaturitySupportingTrunk
	}
	return models.MaturityBranch
}
