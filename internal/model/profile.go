// Package model defines the data structures used throughout the application.
package model

import "time"

// Profile is the per-user progress record.
//
// ExternalUID is the identity-provider subject (e.g. "github:1234567") and is
// the lookup key everywhere in the app. ID is our own xid, assigned once at
// creation and never exposed as a lookup key.
//
// Level is derived from XP by progress.LevelFor and is only ever written by
// the progress engine alongside XP.
type Profile struct {
	ID                  string        `json:"id"`
	ExternalUID         string        `json:"externalUid"`
	Email               string        `json:"email"`
	XP                  int           `json:"xp"`
	Level               int           `json:"level"`
	CompletedTutorials  IDSet         `json:"completedTutorials"`
	CompletedChallenges IDSet         `json:"completedChallenges"`
	UnlockedMilestones  IDSet         `json:"unlockedMilestones"`
	Achievements        []Achievement `json:"achievements"`
	Rewards             []Reward      `json:"rewards"`
	XPLog               []XPLogEntry  `json:"xpLog"`
	LastLoginAt         *time.Time    `json:"lastLoginAt"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// Achievement is a one-time unlock with display metadata.
type Achievement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

// Reward is a cosmetic or feature unlock granted at an XP threshold.
// Data is an opaque JSON document interpreted by clients.
type Reward struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Data        string    `json:"data"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

// XPLogEntry records a single XP award.
type XPLogEntry struct {
	Amount int       `json:"amount"`
	Reason string    `json:"reason"`
	Date   time.Time `json:"date"`
}

// NewProfile returns a zero-XP, level 1 profile with all collections initialised.
func NewProfile(id, externalUID, email string, now time.Time) *Profile {
	return &Profile{
		ID:                  id,
		ExternalUID:         externalUID,
		Email:               email,
		XP:                  0,
		Level:               1,
		CompletedTutorials:  IDSet{},
		CompletedChallenges: IDSet{},
		UnlockedMilestones:  IDSet{},
		Achievements:        []Achievement{},
		Rewards:             []Reward{},
		XPLog:               []XPLogEntry{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// HasAchievement reports whether an achievement with the given id is unlocked.
func (p *Profile) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// AddAchievement appends a unless its id is already present.
func (p *Profile) AddAchievement(a Achievement) bool {
	if p.HasAchievement(a.ID) {
		return false
	}
	p.Achievements = append(p.Achievements, a)
	return true
}

// HasReward reports whether a reward with the given id is unlocked.
func (p *Profile) HasReward(id string) bool {
	for _, r := range p.Rewards {
		if r.ID == id {
			return true
		}
	}
	return false
}

// AddReward appends r unless its id is already present.
func (p *Profile) AddReward(r Reward) bool {
	if p.HasReward(r.ID) {
		return false
	}
	p.Rewards = append(p.Rewards, r)
	return true
}

// Clone returns a deep copy. Stores hand out clones so a caller mutating its
// copy can never change stored state without going through the store.
func (p *Profile) Clone() *Profile {
	c := *p
	c.CompletedTutorials = p.CompletedTutorials.Clone()
	c.CompletedChallenges = p.CompletedChallenges.Clone()
	c.UnlockedMilestones = p.UnlockedMilestones.Clone()
	c.Achievements = append([]Achievement{}, p.Achievements...)
	c.Rewards = append([]Reward{}, p.Rewards...)
	c.XPLog = append([]XPLogEntry{}, p.XPLog...)
	if p.LastLoginAt != nil {
		t := *p.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
