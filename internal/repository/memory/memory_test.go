package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/cmdshift-learn/internal/apperror"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
)

func TestCreateProfile_DuplicateIsConflict(t *testing.T) {
	s := New()
	ctx := context.Background()

	p, err := s.CreateProfile(ctx, "github:1", "a@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 1, p.Level)

	_, err = s.CreateProfile(ctx, "github:1", "b@example.com")
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestGetProfile_NotFound(t *testing.T) {
	s := New()
	_, err := s.GetProfile(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGetProfile_ReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateProfile(ctx, "github:1", "a@example.com")
	require.NoError(t, err)

	p, err := s.GetProfile(ctx, "github:1")
	require.NoError(t, err)
	p.XP = 999
	p.CompletedTutorials.Mark("t1")

	again, err := s.GetProfile(ctx, "github:1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.XP)
	assert.False(t, again.CompletedTutorials.Has("t1"))
}

func TestUpdateProfile_ErrorLeavesProfileUnchanged(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateProfile(ctx, "github:1", "a@example.com")
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.UpdateProfile(ctx, "github:1", func(p *model.Profile) error {
		p.XP = 500
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.GetProfile(ctx, "github:1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.XP)
}

func TestUpdateProfile_CancelledContextDoesNotCommit(t *testing.T) {
	s := New()
	_, err := s.CreateProfile(context.Background(), "github:1", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = s.UpdateProfile(ctx, "github:1", func(p *model.Profile) error {
		p.XP = 10
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	p, err := s.GetProfile(context.Background(), "github:1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.XP)
}

func TestUpdateProfile_ConcurrentIncrementsAreNotLost(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateProfile(ctx, "github:1", "")
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateProfile(ctx, "github:1", func(p *model.Profile) error {
				p.XP++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := s.GetProfile(ctx, "github:1")
	require.NoError(t, err)
	assert.Equal(t, n, p.XP)
}

func TestGetOrCreateProfile_CreatesOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	var inits int
	var mu sync.Mutex
	var wg sync.WaitGroup
	created := make([]bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok, err := s.GetOrCreateProfile(ctx, "github:7", "x@example.com", func(p *model.Profile) error {
				mu.Lock()
				inits++
				mu.Unlock()
				p.XP = 50
				return nil
			})
			assert.NoError(t, err)
			created[i] = ok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, inits)
	count := 0
	for _, c := range created {
		if c {
			count++
		}
	}
	assert.Equal(t, 1, count)

	p, err := s.GetProfile(ctx, "github:7")
	require.NoError(t, err)
	assert.Equal(t, 50, p.XP)
}

func TestPutProfile_RefreshesUpdatedAt(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	p, err := s.CreateProfile(ctx, "github:1", "")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	p.Email = "new@example.com"
	require.NoError(t, s.PutProfile(ctx, p))

	got, err := s.GetProfile(ctx, "github:1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, now, got.UpdatedAt)
}

func TestEvents_ListNewestFirstAndPrune(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendEvent(ctx, &model.PlatformEvent{
			EventType: model.EventXPAdded,
			UserID:    "u1",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.AppendEvent(ctx, &model.PlatformEvent{EventType: model.EventXPAdded, UserID: "u2", Timestamp: base}))

	events, err := s.ListEventsByUser(ctx, "u1", repository.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, base.Add(2*time.Hour), events[0].Timestamp)
	assert.NotEmpty(t, events[0].ID)

	removed, err := s.DeleteEventsBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	events, err = s.ListEventsByUser(ctx, "u1", repository.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
