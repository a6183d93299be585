package progress

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/cmdshift-learn/internal/metrics"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
	"github.com/sakif/cmdshift-learn/internal/repository/memory"
)

// panickingStore blows up inside UpdateProfile.
type panickingStore struct {
	repository.ProfileRepository
}

func (panickingStore) UpdateProfile(ctx context.Context, uid string, fn func(*model.Profile) error) (*model.Profile, error) {
	panic("storage exploded")
}

func newStoreWithProfiles(t *testing.T, uids ...string) *memory.Store {
	t.Helper()
	store := memory.New()
	for _, uid := range uids {
		_, err := store.CreateProfile(context.Background(), uid, uid+"@example.com")
		require.NoError(t, err)
	}
	return store
}

func firstAward(uid string) Trigger {
	return Trigger{
		UID:           uid,
		PreviousXP:    0,
		XP:            150,
		PreviousLevel: 1,
		Level:         2,
		FirstAward:    true,
		At:            time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEvaluator_EvaluateTwiceUnlocksOnce(t *testing.T) {
	store := newStoreWithProfiles(t, testUID)
	events := &recordingSink{}
	e := NewEvaluator(store, events, nil, DefaultEvaluatorConfig(), testLogger())
	ctx := context.Background()

	require.NoError(t, e.Evaluate(ctx, firstAward(testUID)))
	require.NoError(t, e.Evaluate(ctx, firstAward(testUID)))

	p, err := store.GetProfile(ctx, testUID)
	require.NoError(t, err)
	assert.Equal(t, []string{"first-blood", "level-up"}, achievementIDs(p))
	assert.Len(t, p.Rewards, 1)
	assert.Len(t, events.ofType(model.EventAchievementUnlock), 2)
	assert.Len(t, events.ofType(model.EventRewardUnlock), 1)
}

func TestEvaluator_NoCandidatesSkipsStore(t *testing.T) {
	store := newStoreWithProfiles(t, testUID)
	before, err := store.GetProfile(context.Background(), testUID)
	require.NoError(t, err)

	e := NewEvaluator(store, nil, nil, DefaultEvaluatorConfig(), testLogger())
	require.NoError(t, e.Evaluate(context.Background(), Trigger{UID: testUID, PreviousXP: 10, XP: 20, PreviousLevel: 1, Level: 1}))

	after, err := store.GetProfile(context.Background(), testUID)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestEvaluator_UnknownProfileIsReported(t *testing.T) {
	e := NewEvaluator(memory.New(), nil, nil, DefaultEvaluatorConfig(), testLogger())

	err := e.Evaluate(context.Background(), firstAward("nobody"))
	assert.Error(t, err)
}

func TestEvaluator_WorkersProcessQueuedJobs(t *testing.T) {
	uids := []string{"github:1", "github:2", "github:3", "github:4", "github:5"}
	store := newStoreWithProfiles(t, uids...)
	e := NewEvaluator(store, nil, nil, EvaluatorConfig{Workers: 3, QueueSize: 10}, testLogger())
	e.Start()
	defer e.Close()

	for _, uid := range uids {
		e.Submit(firstAward(uid))
	}
	e.Wait()

	for _, uid := range uids {
		p, err := store.GetProfile(context.Background(), uid)
		require.NoError(t, err)
		assert.True(t, p.HasAchievement("first-blood"), uid)
	}
}

func TestEvaluator_FullQueueRunsInline(t *testing.T) {
	store := newStoreWithProfiles(t, testUID)
	// Unbuffered and never started: nothing can receive, so Submit must not block.
	e := NewEvaluator(store, nil, nil, EvaluatorConfig{Workers: 1, QueueSize: 0}, testLogger())

	e.Submit(firstAward(testUID))

	p, err := store.GetProfile(context.Background(), testUID)
	require.NoError(t, err)
	assert.True(t, p.HasAchievement("first-blood"))
}

func TestEvaluator_CloseDrainsQueue(t *testing.T) {
	uids := []string{"github:1", "github:2", "github:3"}
	store := newStoreWithProfiles(t, uids...)
	e := NewEvaluator(store, nil, nil, EvaluatorConfig{Workers: 1, QueueSize: 10}, testLogger())

	for _, uid := range uids {
		e.Submit(firstAward(uid))
	}
	e.Close()

	for _, uid := range uids {
		p, err := store.GetProfile(context.Background(), uid)
		require.NoError(t, err)
		assert.True(t, p.HasAchievement("first-blood"), uid)
	}
}

func TestEvaluator_SubmitAfterCloseRunsInline(t *testing.T) {
	store := newStoreWithProfiles(t, testUID)
	e := NewEvaluator(store, nil, nil, DefaultEvaluatorConfig(), testLogger())
	e.Start()
	e.Close()
	e.Close()

	assert.NotPanics(t, func() { e.Submit(firstAward(testUID)) })

	p, err := store.GetProfile(context.Background(), testUID)
	require.NoError(t, err)
	assert.True(t, p.HasAchievement("first-blood"))
}

func TestEvaluator_FailuresAreSwallowedAndCounted(t *testing.T) {
	m := metrics.New()
	e := NewEvaluator(panickingStore{}, nil, m, EvaluatorConfig{Workers: 1, QueueSize: 0}, testLogger())

	assert.NotPanics(t, func() { e.Submit(firstAward(testUID)) })

	e2 := NewEvaluator(memory.New(), nil, m, EvaluatorConfig{Workers: 1, QueueSize: 0}, testLogger())
	e2.Submit(firstAward("nobody"))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cmdshift_evaluator_failures_total 2")
	assert.Contains(t, string(body), "cmdshift_evaluator_inline_runs_total 2")
}
