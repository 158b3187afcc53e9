package service

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/maheshrc27/scheduled-publisher/internal/models"
	"github.com/maheshrc27/scheduled-publisher/internal/repository"
)

// attachPlatforms loads the association rows and platforms for posts and
// sets Post.Platforms / Post.Associations in place.
func attachPlatforms(ctx context.Context, pp repository.PostPlatformRepository, pl repository.PlatformRepository, posts ...*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	postIDs := make([]int64, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
	}

	associations, err := pp.ListByPostIDs(ctx, postIDs)
	if err != nil {
		return fmt.Errorf("error loading post platforms: %w", err)
	}

	platformIDs := make([]int64, 0, len(associations))
	for _, a := range associations {
		platformIDs = append(platformIDs, a.PlatformID)
	}

	platforms, err := pl.ListByIDs(ctx, uniqueIDs(platformIDs))
	if err != nil {
		return fmt.Errorf("error loading platforms: %w", err)
	}
	byID := make(map[int64]*models.Platform, len(platforms))
	for _, p := range platforms {
		byID[p.ID] = p
	}

	byPost := make(map[int64]*models.Post, len(posts))
	for _, p := range posts {
		p.Platforms = []*models.Platform{}
		p.Associations = nil
		byPost[p.ID] = p
	}
	for _, a := range associations {
		post, ok := byPost[a.PostID]
		if !ok {
			continue
		}
		post.Associations = append(post.Associations, a)
		if platform, ok := byID[a.PlatformID]; ok {
			post.Platforms = append(post.Platforms, platform)
		}
	}
	return nil
}

// requestErrors converts ozzo validation errors into a ValidationError.
// Any other error is returned unchanged.
func requestErrors(err error) error {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}

	verr := &ValidationError{}
	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		verr.add(Violation{Field: field, Rule: RuleInvalidField, Message: fieldErr.Error()})
	}
	return verr.orNil()
}

func copyPost(p *models.Post) *models.Post {
	c := *p
	c.Platforms = append([]*models.Platform(nil), p.Platforms...)
	c.Associations = append([]*models.PostPlatform(nil), p.Associations...)
	return &c
}
