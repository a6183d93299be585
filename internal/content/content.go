// Package content resolves tutorial and challenge ids to their XP reward.
//
// The progress engine never fetches content itself. Handlers ask a Lookup for
// the reward first and pass the resolved amount in, so an unknown id fails
// with 404 before any profile is touched.
package content

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sakif/cmdshift-learn/internal/apperror"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
)

// Lookup returns the XP reward for a content item or apperror.ErrNotFound.
type Lookup interface {
	XPReward(ctx context.Context, kind model.ContentKind, id string) (int, error)
}

// RepositoryLookup adapts a ContentRepository to Lookup.
type RepositoryLookup struct {
	repo repository.ContentRepository
}

// NewLookup wraps repo.
func NewLookup(repo repository.ContentRepository) *RepositoryLookup {
	return &RepositoryLookup{repo: repo}
}

// XPReward implements Lookup.
func (l *RepositoryLookup) XPReward(ctx context.Context, kind model.ContentKind, id string) (int, error) {
	if !kind.Valid() {
		return 0, apperror.ValidationFailed("kind", fmt.Sprintf("unknown content kind %q", kind))
	}
	item, err := l.repo.GetContent(ctx, kind, id)
	if err != nil {
		return 0, err
	}
	return item.XP, nil
}

// Catalog is an in-memory ContentRepository. It backs STORE=memory and tests.
type Catalog struct {
	mu    sync.RWMutex
	items map[catalogKey]model.ContentItem
}

type catalogKey struct {
	kind model.ContentKind
	id   string
}

var _ repository.ContentRepository = (*Catalog)(nil)

// NewCatalog returns a catalog holding items.
func NewCatalog(items ...model.ContentItem) *Catalog {
	c := &Catalog{items: make(map[catalogKey]model.ContentItem, len(items))}
	for _, item := range items {
		c.items[catalogKey{item.Kind, item.ID}] = item
	}
	return c
}

// UpsertContent implements repository.ContentRepository.
func (c *Catalog) UpsertContent(ctx context.Context, item *model.ContentItem) error {
	if !item.Kind.Valid() {
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown content kind %q", item.Kind))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[catalogKey{item.Kind, item.ID}] = *item
	return nil
}

// GetContent implements repository.ContentRepository.
func (c *Catalog) GetContent(ctx context.Context, kind model.ContentKind, id string) (*model.ContentItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[catalogKey{kind, id}]
	if !ok {
		return nil, apperror.NotFound(string(kind), id)
	}
	return &item, nil
}

// Items returns every entry sorted by kind then id.
func (c *Catalog) Items() []model.ContentItem {
	c.mu.RLock()
	out := make([]model.ContentItem, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Seed upserts items into repo, stopping at the first error.
func Seed(ctx context.Context, repo repository.ContentRepository, items []model.ContentItem) error {
	for i := range items {
		if err := repo.UpsertContent(ctx, &items[i]); err != nil {
			return fmt.Errorf("content: seeding %s %s: %w", items[i].Kind, items[i].ID, err)
		}
	}
	return nil
}

// DefaultItems is the starter catalog shipped with the platform.
func DefaultItems() []model.ContentItem {
	return []model.ContentItem{
		{ID: "basics-navigation", Kind: model.KindTutorial, Title: "Navigating the File System", XP: 100, Difficulty: "Beginner"},
		{ID: "basics-files", Kind: model.KindTutorial, Title: "Working with Files", XP: 100, Difficulty: "Beginner"},
		{ID: "pipeline-basics", Kind: model.KindTutorial, Title: "The Pipeline", XP: 150, Difficulty: "Intermediate"},
		{ID: "objects-and-properties", Kind: model.KindTutorial, Title: "Objects and Properties", XP: 150, Difficulty: "Intermediate"},
		{ID: "scripting-functions", Kind: model.KindTutorial, Title: "Writing Functions", XP: 200, Difficulty: "Advanced"},
		{ID: "find-large-files", Kind: model.KindChallenge, Title: "Find the Largest Files", XP: 150, Difficulty: "Beginner"},
		{ID: "process-report", Kind: model.KindChallenge, Title: "Process Report", XP: 200, Difficulty: "Intermediate"},
		{ID: "log-parser", Kind: model.KindChallenge, Title: "Parse an Event Log", XP: 300, Difficulty: "Advanced"},
	}
}
