package progress

import (
	"sort"

	"github.com/sakif/cmdshift-learn/internal/model"
)

// RecentActivityLimit is how many xp log entries View carries.
const RecentActivityLimit = 5

// View is the progress summary served by GET /api/progress.
type View struct {
	Level               int                `json:"level"`
	XP                  int                `json:"xp"`
	XPToNextLevel       int                `json:"xpToNextLevel"`
	NextLevelXP         int                `json:"nextLevelXp"`
	CompletedTutorials  []string           `json:"completedTutorials"`
	CompletedChallenges []string           `json:"completedChallenges"`
	UnlockedMilestones  []string           `json:"unlockedMilestones"`
	RecentActivity      []model.XPLogEntry `json:"recentActivity"`
}

// NewView derives a View from p without modifying it. Level figures are
// recomputed from XP rather than trusted from the stored level.
func NewView(p *model.Profile) *View {
	level := LevelFor(p.XP)
	return &View{
		Level:               level,
		XP:                  p.XP,
		XPToNextLevel:       XPToNextLevel(p.XP),
		NextLevelXP:         NextLevelXP(level),
		CompletedTutorials:  p.CompletedTutorials.IDs(),
		CompletedChallenges: p.CompletedChallenges.IDs(),
		UnlockedMilestones:  p.UnlockedMilestones.IDs(),
		RecentActivity:      recentActivity(p.XPLog, RecentActivityLimit),
	}
}

// recentActivity returns up to n entries, newest first. Entries with equal
// dates keep reverse append order.
func recentActivity(log []model.XPLogEntry, n int) []model.XPLogEntry {
	out := make([]model.XPLogEntry, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		out = append(out, log[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
