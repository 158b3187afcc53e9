package service

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/scheduled-publisher/internal/models"
	"github.com/maheshrc27/scheduled-publisher/internal/repository"
)

// DueScanner finds the posts a dispatch cycle should pick up.
type DueScanner interface {
	Scan(ctx context.Context, now time.Time) ([]*models.Post, error)
}

type dueScanner struct {
	pr         repository.PostRepository
	pl         repository.PlatformRepository
	pp         repository.PostPlatformRepository
	staleAfter time.Duration
}

// NewDueScanner returns a scanner for scheduled posts whose time has come.
// With staleAfter > 0 it also returns posts left in dispatching for longer
// than staleAfter, which is what a crashed cycle leaves behind.
func NewDueScanner(pr repository.PostRepository, pl repository.PlatformRepository, pp repository.PostPlatformRepository, staleAfter time.Duration) DueScanner {
	return &dueScanner{
		pr:         pr,
		pl:         pl,
		pp:         pp,
		staleAfter: staleAfter,
	}
}

func (s *dueScanner) Scan(ctx context.Context, now time.Time) ([]*models.Post, error) {
	due, err := s.pr.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("error listing due posts: %w", err)
	}

	if s.staleAfter > 0 {
		stale, err := s.pr.ListStaleDispatching(ctx, now.Add(-s.staleAfter))
		if err != nil {
			return nil, fmt.Errorf("error listing stale posts: %w", err)
		}
		due = append(due, stale...)
	}

	seen := make(map[int64]struct{}, len(due))
	posts := make([]*models.Post, 0, len(due))
	for _, p := range due {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		posts = append(posts, p)
	}

	if err := attachPlatforms(ctx, s.pp, s.pl, posts...); err != nil {
		return nil, err
	}
	return posts, nil
}
