package progress

import (
	"fmt"
	"time"

	"github.com/sakif/cmdshift-learn/internal/model"
)

// UnlockKind says which profile collection an unlock lands in.
type UnlockKind string

const (
	UnlockAchievement UnlockKind = "achievement"
	UnlockMilestone   UnlockKind = "milestone"
	UnlockReward      UnlockKind = "reward"
)

// Trigger is a snapshot of one XP-changing operation, taken inside the
// store update that applied it. Rules look only at the trigger, never at the
// live profile, so evaluation order does not matter.
type Trigger struct {
	UID string

	PreviousXP    int
	XP            int
	PreviousLevel int
	Level         int

	// FirstAward is true when the profile's xp log was empty before this award.
	FirstAward      bool
	FirstTutorial   bool
	FirstChallenge  bool
	FirstDailyClaim bool

	At time.Time
}

// crossed reports whether this operation took XP from below threshold to at
// or above it.
func (t Trigger) crossed(threshold int) bool {
	return t.PreviousXP < threshold && t.XP >= threshold
}

// Unlock is one candidate grant produced by the rule table.
type Unlock struct {
	Kind        UnlockKind
	ID          string
	Title       string // achievement title or reward name
	Description string

	// Reward only.
	RewardType string
	RewardData string
}

// applyTo adds u to p unless it is already there and reports whether p changed.
func (u Unlock) applyTo(p *model.Profile, at time.Time) bool {
	switch u.Kind {
	case UnlockAchievement:
		return p.AddAchievement(model.Achievement{
			ID:          u.ID,
			Title:       u.Title,
			Description: u.Description,
			UnlockedAt:  at,
		})
	case UnlockMilestone:
		return p.UnlockedMilestones.Mark(u.ID)
	case UnlockReward:
		return p.AddReward(model.Reward{
			ID:          u.ID,
			Name:        u.Title,
			Description: u.Description,
			Type:        u.RewardType,
			Data:        u.RewardData,
			UnlockedAt:  at,
		})
	}
	return false
}

func (u Unlock) event(uid string, at time.Time) model.PlatformEvent {
	ev := model.PlatformEvent{UserID: uid, Timestamp: at}
	switch u.Kind {
	case UnlockAchievement:
		ev.EventType = model.EventAchievementUnlock
		ev.Description = fmt.Sprintf("Unlocked achievement: %s - %s", u.Title, u.Description)
	case UnlockMilestone:
		ev.EventType = model.EventMilestoneUnlock
		ev.Description = fmt.Sprintf("Unlocked milestone: %s", u.ID)
	case UnlockReward:
		ev.EventType = model.EventRewardUnlock
		ev.Description = fmt.Sprintf("Unlocked reward: %s - %s", u.Title, u.Description)
	}
	return ev
}

type rule struct {
	kind     UnlockKind
	id       string
	title    string
	describe func(Trigger) string
	matches  func(Trigger) bool
}

func fixed(s string) func(Trigger) string {
	return func(Trigger) string { return s }
}

var rules = []rule{
	{
		kind:     UnlockAchievement,
		id:       "first-blood",
		title:    "First Blood",
		describe: fixed("Earned your first XP"),
		matches:  func(t Trigger) bool { return t.FirstAward },
	},
	{
		kind:     UnlockAchievement,
		id:       "level-up",
		title:    "Level Up",
		describe: func(t Trigger) string { return fmt.Sprintf("Reached level %d", t.Level) },
		matches:  func(t Trigger) bool { return t.Level > t.PreviousLevel && t.Level >= 2 },
	},
	{
		kind:    UnlockMilestone,
		id:      "reached-500-xp",
		matches: func(t Trigger) bool { return t.crossed(500) },
	},
	{
		kind:     UnlockAchievement,
		id:       "terminal-initiate",
		title:    "Terminal Initiate",
		describe: fixed("Completed your first tutorial"),
		matches:  func(t Trigger) bool { return t.FirstTutorial },
	},
	{
		kind:    UnlockMilestone,
		id:      "completed-first-tutorial",
		matches: func(t Trigger) bool { return t.FirstTutorial },
	},
	{
		kind:     UnlockAchievement,
		id:       "challenge-accepted",
		title:    "Challenge Accepted",
		describe: fixed("Completed your first challenge"),
		matches:  func(t Trigger) bool { return t.FirstChallenge },
	},
	{
		kind:     UnlockAchievement,
		id:       "showed-up",
		title:    "Showed Up",
		describe: fixed("Claimed your first daily login bonus"),
		matches:  func(t Trigger) bool { return t.FirstDailyClaim },
	},
}

// RewardTier is an XP threshold that unlocks a cosmetic or feature reward.
type RewardTier struct {
	Threshold   int
	ID          string
	Name        string
	Description string
	Type        string
	Data        string
}

// RewardTiers is ordered by threshold.
var RewardTiers = []RewardTier{
	{100, "dark-theme", "Dark Theme", "Unlock the dark theme for the terminal", "theme", `{"theme":"dark"}`},
	{250, "syntax-highlighting", "Syntax Highlighting", "Unlock syntax highlighting for code blocks", "feature", `{"feature":"syntax-highlighting"}`},
	{500, "advanced-commands", "Advanced Commands", "Unlock access to advanced PowerShell commands", "content", `{"contentType":"commands","level":"advanced"}`},
	{1000, "custom-prompt", "Custom Prompt", "Customize your terminal prompt", "feature", `{"feature":"custom-prompt"}`},
	{2000, "expert-badge", "PowerShell Expert", "You've earned the PowerShell Expert badge", "badge", `{"badge":"powershell-expert","color":"gold"}`},
}

// Candidates returns every unlock the trigger qualifies for, in rule order
// followed by reward tiers. It does not look at what the profile already
// holds; applying an unlock that exists is a no-op.
func Candidates(t Trigger) []Unlock {
	var out []Unlock
	for _, r := range rules {
		if !r.matches(t) {
			continue
		}
		u := Unlock{Kind: r.kind, ID: r.id, Title: r.title}
		if r.describe != nil {
			u.Description = r.describe(t)
		}
		out = append(out, u)
	}
	for _, tier := range RewardTiers {
		if !t.crossed(tier.Threshold) {
			continue
		}
		out = append(out, Unlock{
			Kind:        UnlockReward,
			ID:          tier.ID,
			Title:       tier.Name,
			Description: tier.Description,
			RewardType:  tier.Type,
			RewardData:  tier.Data,
		})
	}
	return out
}
