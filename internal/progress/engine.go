// Package progress implements XP awards, levels, one-shot completions and the
// achievement rules that run after them.
//
// LIFE OF AN OPERATION:
//  1. The engine asks the store to update one profile. The store loads a
//     copy and holds that profile's lock (keylock in memory, a transaction
//     in sqlite) while the closure runs.
//  2. The closure checks the operation's precondition (not yet completed,
//     not yet claimed today), applies the XP and records what changed in a
//     Trigger. Returning an error discards the copy, so a failed operation
//     leaves the stored profile untouched.
//  3. After the write commits the engine publishes the platform event and
//     hands the Trigger to a Submitter.
//  4. The Evaluator turns the Trigger into achievements, milestones and
//     rewards in a second, separate update.
//
// Steps 3 and 4 never fail the caller. The XP is already stored by then.
//
// XP BOUNDS:
// Awards of any sign are accepted, but the running total stays within
// [-MaxXP, MaxXP]. An award that would leave the band fails with
// apperror.ErrValidation and changes nothing.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/cmdshift-learn/internal/apperror"
	"github.com/sakif/cmdshift-learn/internal/eventlog"
	"github.com/sakif/cmdshift-learn/internal/metrics"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
)

const (
	// DailyLoginBonus is granted at most once per UTC calendar day.
	DailyLoginBonus = 25
	// FirstLoginBonus is granted when a profile is created at sign-in.
	FirstLoginBonus = 50
)

// Engine owns every rule about how a profile's XP and progress change.
type Engine struct {
	store     repository.ProfileRepository
	events    eventlog.Sink
	evaluator Submitter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now. Tests use it to move between UTC days.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records operation counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine wires an Engine. events and evaluator may be nil, in which case
// events are dropped and no unlocks are evaluated.
func NewEngine(store repository.ProfileRepository, events eventlog.Sink, evaluator Submitter, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		events:    events,
		evaluator: evaluator,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoginResult is returned by EnsureProfile.
type LoginResult struct {
	Profile *model.Profile
	Created bool
	XPBonus int
}

// award applies amount to p and returns the trigger describing the change.
// It must only be called inside a store update. An amount that would take
// XP outside [-MaxXP, MaxXP] is refused and p is left as it was.
func (e *Engine) award(p *model.Profile, amount int, reason string, at time.Time) (Trigger, error) {
	xp, ok := addXP(p.XP, amount)
	if !ok {
		return Trigger{}, apperror.ValidationFailed("amount",
			fmt.Sprintf("award of %d would take xp outside ±%d", amount, MaxXP))
	}

	t := Trigger{
		UID:           p.ExternalUID,
		PreviousXP:    p.XP,
		PreviousLevel: LevelFor(p.XP),
		FirstAward:    len(p.XPLog) == 0,
		At:            at,
	}

	p.XP = xp
	p.Level = LevelFor(p.XP)
	p.XPLog = append(p.XPLog, model.XPLogEntry{
		Amount: amount,
		Reason: reason,
		Date:   at,
	})

	t.XP = p.XP
	t.Level = p.Level
	return t, nil
}

func (e *Engine) submit(t Trigger) {
	if e.evaluator == nil {
		return
	}
	e.evaluator.Submit(t)
}

// publish records an event even if the request context has been cancelled
// after the write committed.
func (e *Engine) publish(ctx context.Context, eventType, uid, description string, at time.Time) {
	eventlog.Publish(context.WithoutCancel(ctx), e.events, e.logger, model.PlatformEvent{
		EventType:   eventType,
		UserID:      uid,
		Description: description,
		Timestamp:   at,
	})
}

// AwardXP adds amount (of any sign) to the profile's XP and logs it with
// reason. It writes no platform event.
func (e *Engine) AwardXP(ctx context.Context, uid string, amount int, reason string) (*model.Profile, error) {
	now := e.now().UTC()

	var trig Trigger
	p, err := e.store.UpdateProfile(ctx, uid, func(p *model.Profile) error {
		var err error
		trig, err = e.award(p, amount, reason, now)
		return err
	})
	e.metrics.ObserveOperation("award_xp", err)
	if err != nil {
		return nil, err
	}

	e.metrics.AddXP(amount)
	e.logger.Debug("xp awarded",
		slog.String("userID", uid),
		slog.Int("amount", amount),
		slog.Int("xp", p.XP),
		slog.Int("level", p.Level),
	)
	e.submit(trig)
	return p, nil
}

// CompleteTutorial marks tutorialID complete and awards xp. A second
// completion fails with apperror.ErrConflict and changes nothing.
func (e *Engine) CompleteTutorial(ctx context.Context, uid, tutorialID string, xp int) (*model.Profile, error) {
	now := e.now().UTC()

	var trig Trigger
	p, err := e.store.UpdateProfile(ctx, uid, func(p *model.Profile) error {
		if p.CompletedTutorials.Has(tutorialID) {
			return apperror.AlreadyCompleted("tutorial", tutorialID)
		}
		first := p.CompletedTutorials.Len() == 0

		var err error
		if trig, err = e.award(p, xp, "Completed "+tutorialID, now); err != nil {
			return err
		}
		p.CompletedTutorials.Mark(tutorialID)
		trig.FirstTutorial = first
		return nil
	})
	e.metrics.ObserveOperation("complete_tutorial", err)
	if err != nil {
		return nil, err
	}

	e.metrics.AddXP(xp)
	e.publish(ctx, model.EventTutorialCompleted, uid,
		fmt.Sprintf("Completed tutorial %s (+%d XP)", tutorialID, xp), now)
	e.submit(trig)
	return p, nil
}

// CompleteChallenge is CompleteTutorial for challenges.
func (e *Engine) CompleteChallenge(ctx context.Context, uid, challengeID string, xp int) (*model.Profile, error) {
	now := e.now().UTC()

	var trig Trigger
	p, err := e.store.UpdateProfile(ctx, uid, func(p *model.Profile) error {
		if p.CompletedChallenges.Has(challengeID) {
			return apperror.AlreadyCompleted("challenge", challengeID)
		}
		first := p.CompletedChallenges.Len() == 0

		var err error
		if trig, err = e.award(p, xp, "Completed challenge "+challengeID, now); err != nil {
			return err
		}
		p.CompletedChallenges.Mark(challengeID)
		trig.FirstChallenge = first
		return nil
	})
	e.metrics.ObserveOperation("complete_challenge", err)
	if err != nil {
		return nil, err
	}

	e.metrics.AddXP(xp)
	e.publish(ctx, model.EventChallengeCompleted, uid,
		fmt.Sprintf("Completed challenge %s (+%d XP)", challengeID, xp), now)
	e.submit(trig)
	return p, nil
}

// ClaimDailyLogin grants DailyLoginBonus once per UTC calendar day.
func (e *Engine) ClaimDailyLogin(ctx context.Context, uid string) (*model.Profile, error) {
	now := e.now().UTC()

	var trig Trigger
	p, err := e.store.UpdateProfile(ctx, uid, func(p *model.Profile) error {
		if p.LastLoginAt != nil && sameUTCDay(*p.LastLoginAt, now) {
			return apperror.AlreadyClaimedToday()
		}
		first := p.LastLoginAt == nil

		var err error
		if trig, err = e.award(p, DailyLoginBonus, "Daily login bonus", now); err != nil {
			return err
		}
		trig.FirstDailyClaim = first

		claimed := now
		p.LastLoginAt = &claimed
		return nil
	})
	e.metrics.ObserveOperation("claim_daily_login", err)
	if err != nil {
		return nil, err
	}

	e.metrics.AddXP(DailyLoginBonus)
	e.publish(ctx, model.EventDailyLoginClaimed, uid,
		fmt.Sprintf("Claimed daily login bonus (+%d XP)", DailyLoginBonus), now)
	e.submit(trig)
	return p, nil
}

// EnsureProfile returns the profile for uid, creating it on first sign-in.
// A new profile starts with the first-login bonus. Concurrent first sign-ins
// for one uid create exactly one profile.
func (e *Engine) EnsureProfile(ctx context.Context, uid, email string) (*LoginResult, error) {
	now := e.now().UTC()

	var trig Trigger
	p, created, err := e.store.GetOrCreateProfile(ctx, uid, email, func(p *model.Profile) error {
		var err error
		trig, err = e.award(p, FirstLoginBonus, "First login bonus", now)
		return err
	})
	e.metrics.ObserveOperation("ensure_profile", err)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{Profile: p, Created: created}
	if created {
		result.XPBonus = FirstLoginBonus
		e.metrics.AddXP(FirstLoginBonus)
		e.logger.Info("profile created", slog.String("userID", uid))
		e.publish(ctx, model.EventUserCreated, uid, "New user profile created", now)
		e.publish(ctx, model.EventXPAdded, uid,
			fmt.Sprintf("Added %d XP: First login bonus", FirstLoginBonus), now)
		e.submit(trig)
	}
	e.publish(ctx, model.EventUserLogin, uid, "User logged in", now)
	return result, nil
}

// GetProfile returns the stored profile.
func (e *Engine) GetProfile(ctx context.Context, uid string) (*model.Profile, error) {
	return e.store.GetProfile(ctx, uid)
}

// UpdateEmail changes the only client-editable profile field.
func (e *Engine) UpdateEmail(ctx context.Context, uid, email string) (*model.Profile, error) {
	p, err := e.store.UpdateProfile(ctx, uid, func(p *model.Profile) error {
		p.Email = email
		return nil
	})
	e.metrics.ObserveOperation("update_email", err)
	return p, err
}

// GetAchievements returns the unlocked achievements in unlock order.
func (e *Engine) GetAchievements(ctx context.Context, uid string) ([]model.Achievement, error) {
	p, err := e.store.GetProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	if p.Achievements == nil {
		return []model.Achievement{}, nil
	}
	return p.Achievements, nil
}

// GetProgress returns the read-only progress summary.
func (e *Engine) GetProgress(ctx context.Context, uid string) (*View, error) {
	p, err := e.store.GetProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	return NewView(p), nil
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
