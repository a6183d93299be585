package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sakif/cmdshift-learn/internal/apperror"
	"github.com/sakif/cmdshift-learn/internal/model"
)

// newTestDB returns a fresh in-memory database closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestProfile(t *testing.T, db *DB, uid string) *model.Profile {
	t.Helper()
	p, err := db.CreateProfile(context.Background(), uid, uid+"@example.com")
	if err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}
	return p
}

// =========================================================================
// CREATE / GET
// =========================================================================

func TestCreateProfile(t *testing.T) {
	db := newTestDB(t)

	p := createTestProfile(t, db, "github:1")

	if p.ID == "" {
		t.Error("CreateProfile() did not set ID")
	}
	if p.Level != 1 {
		t.Errorf("Level = %d, want 1", p.Level)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("CreateProfile() did not set timestamps")
	}
}

func TestCreateProfile_Duplicate(t *testing.T) {
	db := newTestDB(t)
	createTestProfile(t, db, "github:1")

	_, err := db.CreateProfile(context.Background(), "github:1", "other@example.com")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateProfile() error = %v, want ErrConflict", err)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetProfile(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetProfile() error = %v, want ErrNotFound", err)
	}
}

func TestGetProfile_RoundTripsAllFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	createTestProfile(t, db, "github:1")
	_, err := db.UpdateProfile(ctx, "github:1", func(p *model.Profile) error {
		p.XP = 510
		p.Level = 6
		p.CompletedTutorials.Mark("t1")
		p.CompletedChallenges.Mark("c1")
		p.UnlockedMilestones.Mark("reached-500-xp")
		p.AddAchievement(model.Achievement{ID: "first-blood", Title: "First Blood", UnlockedAt: now})
		p.AddReward(model.Reward{ID: "dark-theme", Type: "theme", Data: `{"theme":"dark"}`, UnlockedAt: now})
		p.XPLog = append(p.XPLog, model.XPLogEntry{Amount: 510, Reason: "quiz", Date: now})
		p.LastLoginAt = &now
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	got, err := db.GetProfile(ctx, "github:1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}

	if got.XP != 510 || got.Level != 6 {
		t.Errorf("XP/Level = %d/%d, want 510/6", got.XP, got.Level)
	}
	if !got.CompletedTutorials.Has("t1") || !got.CompletedChallenges.Has("c1") {
		t.Error("completions did not round-trip")
	}
	if !got.UnlockedMilestones.Has("reached-500-xp") {
		t.Error("milestone did not round-trip")
	}
	if !got.HasAchievement("first-blood") || !got.HasReward("dark-theme") {
		t.Error("achievement or reward did not round-trip")
	}
	if len(got.XPLog) != 1 || got.XPLog[0].Reason != "quiz" {
		t.Errorf("XPLog = %+v, want one quiz entry", got.XPLog)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(now) {
		t.Errorf("LastLoginAt = %v, want %v", got.LastLoginAt, now)
	}
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdateProfile_FnErrorRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestProfile(t, db, "github:1")

	boom := errors.New("boom")
	_, err := db.UpdateProfile(ctx, "github:1", func(p *model.Profile) error {
		p.XP = 100
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("UpdateProfile() error = %v, want boom", err)
	}

	got, err := db.GetProfile(ctx, "github:1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.XP != 0 {
		t.Errorf("XP = %d after rolled back update, want 0", got.XP)
	}
}

func TestUpdateProfile_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.UpdateProfile(context.Background(), "nobody", func(p *model.Profile) error { return nil })
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateProfile() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateProfile_Concurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestProfile(t, db, "github:1")

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.UpdateProfile(ctx, "github:1", func(p *model.Profile) error {
				p.XP++
				return nil
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent UpdateProfile() error = %v", err)
	}

	got, err := db.GetProfile(ctx, "github:1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.XP != n {
		t.Errorf("XP = %d, want %d", got.XP, n)
	}
}

func TestGetOrCreateProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, created, err := db.GetOrCreateProfile(ctx, "github:9", "nine@example.com", func(p *model.Profile) error {
		p.XP = 50
		return nil
	})
	if err != nil {
		t.Fatalf("GetOrCreateProfile() error = %v", err)
	}
	if !created || p.XP != 50 {
		t.Errorf("first call: created=%v xp=%d, want true/50", created, p.XP)
	}

	p, created, err = db.GetOrCreateProfile(ctx, "github:9", "nine@example.com", func(p *model.Profile) error {
		t.Error("init must not run for an existing profile")
		return nil
	})
	if err != nil {
		t.Fatalf("GetOrCreateProfile() error = %v", err)
	}
	if created || p.XP != 50 {
		t.Errorf("second call: created=%v xp=%d, want false/50", created, p.XP)
	}
}

func TestPutProfile_OverwritesAndRefreshesUpdatedAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	p := createTestProfile(t, db, "github:1")

	later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return later })

	p.Email = "changed@example.com"
	if err := db.PutProfile(ctx, p); err != nil {
		t.Fatalf("PutProfile() error = %v", err)
	}

	got, err := db.GetProfile(ctx, "github:1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.Email != "changed@example.com" {
		t.Errorf("Email = %q, want changed@example.com", got.Email)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, later)
	}
}
