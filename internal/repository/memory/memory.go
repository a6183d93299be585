// Package memory implements the repository interfaces in process memory.
//
// It backs STORE=memory deployments and the service/handler tests. Every
// profile read returns a deep copy, and every profile write goes through a
// per-uid lock from the keylock package, so concurrent callers behave the same
// way they would against the SQLite store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/cmdshift-learn/internal/apperror"
	"github.com/sakif/cmdshift-learn/internal/keylock"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
)

var (
	_ repository.ProfileRepository = (*Store)(nil)
	_ repository.EventRepository   = (*Store)(nil)
)

// Store holds profiles and events in maps.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*model.Profile
	events   []model.PlatformEvent

	locks *keylock.Locker
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now for timestamps the store assigns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		profiles: make(map[string]*model.Profile),
		locks:    keylock.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) load(uid string) (*model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[uid]
	return p, ok
}

func (s *Store) save(p *model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ExternalUID] = p
}

// GetProfile returns a copy of the profile for externalUID.
func (s *Store) GetProfile(ctx context.Context, externalUID string) (*model.Profile, error) {
	p, ok := s.load(externalUID)
	if !ok {
		return nil, apperror.NotFound("profile", externalUID)
	}
	return p.Clone(), nil
}

// CreateProfile inserts a new profile, failing with a conflict if one exists.
func (s *Store) CreateProfile(ctx context.Context, externalUID, email string) (*model.Profile, error) {
	unlock := s.locks.Lock(externalUID)
	defer unlock()

	if _, ok := s.load(externalUID); ok {
		return nil, apperror.Conflict("profile", externalUID)
	}

	p := model.NewProfile(xid.New().String(), externalUID, email, s.now())
	s.save(p)
	return p.Clone(), nil
}

// PutProfile overwrites the stored profile and refreshes UpdatedAt.
func (s *Store) PutProfile(ctx context.Context, profile *model.Profile) error {
	unlock := s.locks.Lock(profile.ExternalUID)
	defer unlock()

	profile.UpdatedAt = s.now()
	s.save(profile.Clone())
	return nil
}

// UpdateProfile runs fn on a copy of the profile under the uid's lock and
// commits the copy only if fn succeeds.
func (s *Store) UpdateProfile(ctx context.Context, externalUID string, fn func(*model.Profile) error) (*model.Profile, error) {
	unlock := s.locks.Lock(externalUID)
	defer unlock()

	current, ok := s.load(externalUID)
	if !ok {
		return nil, apperror.NotFound("profile", externalUID)
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working.UpdatedAt = s.now()
	s.save(working)
	return working.Clone(), nil
}

// GetOrCreateProfile returns the existing profile or creates one, running init
// on the new profile before it is stored.
func (s *Store) GetOrCreateProfile(ctx context.Context, externalUID, email string, init func(*model.Profile) error) (*model.Profile, bool, error) {
	unlock := s.locks.Lock(externalUID)
	defer unlock()

	if p, ok := s.load(externalUID); ok {
		return p.Clone(), false, nil
	}

	p := model.NewProfile(xid.New().String(), externalUID, email, s.now())
	if init != nil {
		if err := init(p); err != nil {
			return nil, false, err
		}
	}
	s.save(p)
	return p.Clone(), true, nil
}

// AppendEvent records an event, assigning an ID and timestamp when missing.
func (s *Store) AppendEvent(ctx context.Context, event *model.PlatformEvent) error {
	if event.ID == "" {
		event.ID = xid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

// ListEventsByUser returns a user's events newest first.
func (s *Store) ListEventsByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.PlatformEvent, error) {
	s.mu.RLock()
	var matched []model.PlatformEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].UserID == userID {
			matched = append(matched, s.events[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if opts.Offset >= len(matched) {
		return []model.PlatformEvent{}, nil
	}
	matched = matched[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

// DeleteEventsBefore drops events older than cutoff.
func (s *Store) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var removed int64
	for _, ev := range s.events {
		if ev.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return removed, nil
}
