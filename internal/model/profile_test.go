package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSet_MarkIsPermanentAndReportsNovelty(t *testing.T) {
	var s IDSet

	assert.True(t, s.Mark("t1"), "first Mark on a nil set should add")
	assert.False(t, s.Mark("t1"), "second Mark should report already present")
	assert.True(t, s.Has("t1"))
	assert.False(t, s.Has("t2"))
	assert.Equal(t, 1, s.Len())
}

func TestIDSet_IDsAreSorted(t *testing.T) {
	s := IDSet{}
	s.Mark("zeta")
	s.Mark("alpha")
	s.Mark("mid")

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, s.IDs())
}

func TestIDSet_JSONDropsFalseEntries(t *testing.T) {
	var s IDSet
	require.NoError(t, json.Unmarshal([]byte(`{"a":true,"b":false}`), &s))

	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("b"))
	assert.Equal(t, 1, s.Len())

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":true}`, string(out))
}

func TestIDSet_NilMarshalsAsEmptyObject(t *testing.T) {
	var s IDSet
	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out))
}

func TestProfile_AddAchievementDeduplicates(t *testing.T) {
	p := NewProfile("id1", "github:1", "a@example.com", time.Now())

	assert.True(t, p.AddAchievement(Achievement{ID: "first-blood"}))
	assert.False(t, p.AddAchievement(Achievement{ID: "first-blood", Title: "again"}))
	assert.Len(t, p.Achievements, 1)
}

func TestProfile_CloneIsDeep(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p := NewProfile("id1", "github:1", "a@example.com", now)
	p.CompletedTutorials.Mark("t1")
	p.XPLog = append(p.XPLog, XPLogEntry{Amount: 10, Reason: "x", Date: now})
	p.LastLoginAt = &now

	c := p.Clone()
	c.CompletedTutorials.Mark("t2")
	c.XPLog[0].Amount = 99
	*c.LastLoginAt = now.Add(time.Hour)

	assert.False(t, p.CompletedTutorials.Has("t2"))
	assert.Equal(t, 10, p.XPLog[0].Amount)
	assert.Equal(t, now, *p.LastLoginAt)
}

func TestProfile_JSONRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p := NewProfile("id1", "github:1", "a@example.com", now)
	p.XP = 150
	p.Level = 2
	p.CompletedTutorials.Mark("t1")
	p.CompletedChallenges.Mark("c1")
	p.UnlockedMilestones.Mark("completed-first-tutorial")
	p.AddAchievement(Achievement{ID: "level-up", Title: "Level Up", Description: "d", UnlockedAt: now})
	p.AddReward(Reward{ID: "dark-theme", Name: "Dark Theme", Type: "theme", Data: `{"theme":"dark"}`, UnlockedAt: now})
	p.XPLog = append(p.XPLog, XPLogEntry{Amount: 150, Reason: "test", Date: now})
	p.LastLoginAt = &now

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got Profile
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, p, &got)
}
