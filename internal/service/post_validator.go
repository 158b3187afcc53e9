package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/scheduled-publisher/internal/models"
	"github.com/maheshrc27/scheduled-publisher/internal/repository"
)

// PostState is the effective state of a post as it would be after a
// create or update commits.
type PostState struct {
	UserID        int64
	Content       string
	HasImage      bool
	Status        string
	ScheduledTime *time.Time
	PlatformIDs   []int64

	// CheckQuota enables the daily scheduling quota rule.
	CheckQuota bool
	// ExcludePostID keeps a post from counting against its own quota.
	ExcludePostID int64
}

type PostValidator interface {
	Validate(ctx context.Context, state PostState) error
	ImageRequiredBy(ctx context.Context, platformIDs []int64) (string, error)
}

type postValidator struct {
	pl         repository.PlatformRepository
	pr         repository.PostRepository
	dailyLimit int
	marker     string
}

func NewPostValidator(pl repository.PlatformRepository, pr repository.PostRepository, dailyLimit int, instagramMarker string) PostValidator {
	if dailyLimit <= 0 {
		dailyLimit = 10
	}
	return &postValidator{
		pl:         pl,
		pr:         pr,
		dailyLimit: dailyLimit,
		marker:     instagramMarker,
	}
}

func (v *postValidator) Validate(ctx context.Context, state PostState) error {
	platforms, err := v.resolvePlatforms(ctx, state.PlatformIDs)
	if err != nil {
		return err
	}

	verr := &ValidationError{}

	if !state.HasImage {
		if name := v.imagePlatform(platforms); name != "" {
			slog.Warn("image required but not supplied", "platform", name)
			verr.add(imageRequired(name))
		}
	}

	length := utf8.RuneCountInString(state.Content)
	for _, p := range platforms {
		if !p.IsActive() || p.CharacterLimit <= 0 {
			continue
		}
		if length > p.CharacterLimit {
			slog.Warn("content exceeds character limit", "platform", p.Name, "limit", p.CharacterLimit, "content_length", length)
			verr.add(contentTooLong(p.Name, p.CharacterLimit, length))
		}
	}

	if state.Status == models.PostStatusScheduled {
		if state.ScheduledTime == nil {
			verr.add(Violation{
				Field:   "scheduled_time",
				Rule:    RuleScheduledTimeRequired,
				Message: "A scheduled time is required for scheduled posts.",
			})
		} else if state.CheckQuota {
			day := calendarDay(*state.ScheduledTime)
			count, err := v.pr.CountScheduledBetween(ctx, state.UserID, day, day.AddDate(0, 0, 1), state.ExcludePostID)
			if err != nil {
				return fmt.Errorf("error counting scheduled posts: %w", err)
			}
			if count >= v.dailyLimit {
				slog.Warn("daily scheduled post limit reached", "user_id", state.UserID, "scheduled_date", day.Format(time.DateOnly), "current_count", count)
				verr.add(dailyQuotaExceeded(day, count, v.dailyLimit))
			}
		}
	}

	return verr.orNil()
}

// ImageRequiredBy returns the name of the first platform in the set that
// cannot be published to without an image, or "" if none does.
func (v *postValidator) ImageRequiredBy(ctx context.Context, platformIDs []int64) (string, error) {
	platforms, err := v.resolvePlatforms(ctx, platformIDs)
	if err != nil {
		return "", err
	}
	return v.imagePlatform(platforms), nil
}

func (v *postValidator) imagePlatform(platforms []*models.Platform) string {
	for _, p := range platforms {
		if strings.EqualFold(p.Type, "instagram") || (v.marker != "" && strings.EqualFold(p.Name, v.marker)) {
			return p.Name
		}
	}
	return ""
}

func (v *postValidator) resolvePlatforms(ctx context.Context, ids []int64) ([]*models.Platform, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	platforms, err := v.pl.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error loading platforms: %w", err)
	}

	found := make(map[int64]struct{}, len(platforms))
	for _, p := range platforms {
		found[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, fmt.Errorf("platform %d: %w", id, ErrNotFound)
		}
	}
	return platforms, nil
}

// calendarDay truncates t to the start of its UTC calendar date.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
