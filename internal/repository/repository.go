package repository

import (
	"context"
	"time"

	"github.com/sakif/cmdshift-learn/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// ProfileRepository is the exclusive owner of Profile records, keyed by
// external uid.
//
// Implementations must serialize UpdateProfile and GetOrCreateProfile per uid
// so that two concurrent read-modify-write cycles on one profile never lose an
// update. The function passed to UpdateProfile works on a copy; if it returns
// an error nothing is written and that error is returned unchanged.
type ProfileRepository interface {
	GetProfile(ctx context.Context, externalUID string) (*model.Profile, error)
	CreateProfile(ctx context.Context, externalUID, email string) (*model.Profile, error)
	PutProfile(ctx context.Context, profile *model.Profile) error
	UpdateProfile(ctx context.Context, externalUID string, fn func(*model.Profile) error) (*model.Profile, error)
	GetOrCreateProfile(ctx context.Context, externalUID, email string, init func(*model.Profile) error) (profile *model.Profile, created bool, err error)
}

type EventRepository interface {
	AppendEvent(ctx context.Context, event *model.PlatformEvent) error
	ListEventsByUser(ctx context.Context, userID string, opts ListOptions) ([]model.PlatformEvent, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ContentRepository interface {
	UpsertContent(ctx context.Context, item *model.ContentItem) error
	GetContent(ctx context.Context, kind model.ContentKind, id string) (*model.ContentItem, error)
}
