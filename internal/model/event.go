package model

import "time"

// Platform event types.
const (
	EventUserCreated        = "user.created"
	EventUserLogin          = "user.login"
	EventXPAdded            = "xp.added"
	EventTutorialCompleted  = "tutorial.completed"
	EventChallengeCompleted = "challenge.completed"
	EventDailyLoginClaimed  = "daily_login.claimed"
	EventAchievementUnlock  = "achievement.unlocked"
	EventMilestoneUnlock    = "milestone.unlocked"
	EventRewardUnlock       = "reward.unlocked"
)

// PlatformEvent is an append-only audit record of something a user did.
type PlatformEvent struct {
	ID          string    `json:"id"`
	EventType   string    `json:"eventType"`
	UserID      string    `json:"userId"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}
