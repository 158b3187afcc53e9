package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/maheshrc27/scheduled-publisher/internal/models"
	"github.com/maheshrc27/scheduled-publisher/internal/repository"
	"github.com/maheshrc27/scheduled-publisher/internal/transfer"
)

const postsPerPage = 10

// MutationResult describes a committed create or update so the caller can
// authorize and audit it.
type MutationResult struct {
	Post   *models.Post
	Before *models.Post // nil on create

	// MediaErr is set when an image was supplied but could not be stored
	// and no target platform required it. The write still went through.
	MediaErr error
}

type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*MutationResult, error)
	Update(ctx context.Context, postID int64, pu *transfer.PostUpdate) (*MutationResult, error)
	Delete(ctx context.Context, postID int64) error
	Get(ctx context.Context, postID int64) (*models.Post, error)
	List(ctx context.Context, userID int64, q *transfer.PostListQuery) (*transfer.PostPage, error)
	Analytics(ctx context.Context, userID int64) (*transfer.PostAnalytics, error)
}

type postService struct {
	tx    repository.TxManager
	pr    repository.PostRepository
	pl    repository.PlatformRepository
	pp    repository.PostPlatformRepository
	v     PostValidator
	media MediaIngestor
}

func NewPostService(
	tx repository.TxManager,
	pr repository.PostRepository,
	pl repository.PlatformRepository,
	pp repository.PostPlatformRepository,
	v PostValidator,
	media MediaIngestor) PostService {
	return &postService{
		tx:    tx,
		pr:    pr,
		pl:    pl,
		pp:    pp,
		v:     v,
		media: media,
	}
}

func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*MutationResult, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return nil, err
	}

	if err := requestErrors(pc.Validate()); err != nil {
		return nil, err
	}

	scheduledTime, err := transfer.ParseScheduledTime(pc.ScheduledTime)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduled time format: %w", err)
	}

	platformIDs := uniqueIDs(pc.PlatformIDs)

	err = s.v.Validate(ctx, PostState{
		UserID:        userID,
		Content:       pc.Content,
		HasImage:      pc.ImageURL != "",
		Status:        pc.Status,
		ScheduledTime: scheduledTime,
		PlatformIDs:   platformIDs,
		CheckQuota:    true,
	})
	if err != nil {
		return nil, err
	}

	result := &MutationResult{}

	var imageURL *string
	if pc.ImageURL != "" {
		stored, err := s.ingest(ctx, pc.ImageURL, platformIDs)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				return nil, err
			}
			slog.Warn("storing post without image", "user_id", userID, "error", err)
			result.MediaErr = err
		} else {
			imageURL = &stored
		}
	}

	post := &models.Post{
		UserID:        userID,
		Title:         pc.Title,
		Content:       pc.Content,
		ImageURL:      imageURL,
		ScheduledTime: scheduledTime,
		Status:        pc.Status,
	}

	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.pr.Create(ctx, tx, post); err != nil {
			return fmt.Errorf("error creating post: %w", err)
		}
		for _, platformID := range platformIDs {
			if err := s.pp.Create(ctx, tx, &models.PostPlatform{PostID: post.ID, PlatformID: platformID}); err != nil {
				return fmt.Errorf("error attaching platform %d: %w", platformID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := attachPlatforms(ctx, s.pp, s.pl, post); err != nil {
		return nil, err
	}

	slog.Info("post created", "post_id", post.ID, "has_image", post.HasImage())

	result.Post = post
	return result, nil
}

func (s *postService) Update(ctx context.Context, postID int64, pu *transfer.PostUpdate) (*MutationResult, error) {
	if pu == nil {
		err := errors.New("post update data is nil")
		slog.Error(err.Error())
		return nil, err
	}

	current, err := s.Get(ctx, postID)
	if err != nil {
		return nil, err
	}

	if err := requestErrors(pu.Validate()); err != nil {
		return nil, err
	}

	next := copyPost(current)
	var columns []string

	if pu.Title.Present() {
		next.Title = pu.Title.Value
		columns = append(columns, repository.PostColumnTitle)
	}
	if pu.Content.Present() {
		next.Content = pu.Content.Value
		columns = append(columns, repository.PostColumnContent)
	}
	if pu.Status.Present() {
		next.Status = pu.Status.Value
		columns = append(columns, repository.PostColumnStatus)
	}
	if pu.ScheduledTime.Set {
		scheduledTime, err := transfer.ParseScheduledTime(pu.ScheduledTime.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduled time format: %w", err)
		}
		next.ScheduledTime = scheduledTime
		columns = append(columns, repository.PostColumnScheduledTime)
	}

	hasImage := current.HasImage()
	if pu.ImageURL.Set {
		hasImage = pu.ImageURL.Value != ""
	}

	platformIDs := current.PlatformIDs()
	if pu.PlatformIDs.Present() {
		platformIDs = uniqueIDs(pu.PlatformIDs.Value)
	}

	err = s.v.Validate(ctx, PostState{
		UserID:        current.UserID,
		Content:       next.Content,
		HasImage:      hasImage,
		Status:        next.Status,
		ScheduledTime: next.ScheduledTime,
		PlatformIDs:   platformIDs,
		CheckQuota:    reservesNewDay(current, next),
		ExcludePostID: current.ID,
	})
	if err != nil {
		return nil, err
	}

	result := &MutationResult{Before: current}

	if pu.ImageURL.Set {
		if pu.ImageURL.Value == "" {
			next.ImageURL = nil
			columns = append(columns, repository.PostColumnImageURL)
		} else {
			stored, err := s.ingest(ctx, pu.ImageURL.Value, platformIDs)
			if err != nil {
				var verr *ValidationError
				if errors.As(err, &verr) {
					return nil, err
				}
				slog.Error("failed to store image for post update, keeping current image", "post_id", postID, "error", err)
				result.MediaErr = err
			} else {
				next.ImageURL = &stored
				columns = append(columns, repository.PostColumnImageURL)
			}
		}
	}

	slog.Info("updating post", "post_id", postID)

	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		updated, err := s.pr.Update(ctx, tx, next, columns, current.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error updating post: %w", err)
		}
		if !updated {
			slog.Info("post changed during update", "post_id", postID)
			return fmt.Errorf("post %d: %w", postID, ErrConflict)
		}
		if pu.PlatformIDs.Present() {
			if err := s.syncPlatforms(ctx, tx, postID, platformIDs); err != nil {
				return fmt.Errorf("error syncing platforms: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := attachPlatforms(ctx, s.pp, s.pl, next); err != nil {
		return nil, err
	}

	slog.Info("post updated", "post_id", postID)

	result.Post = next
	return result, nil
}

// reservesNewDay reports whether an update takes up a daily scheduling slot
// the post did not already hold.
func reservesNewDay(current, next *models.Post) bool {
	if next.Status != models.PostStatusScheduled || next.ScheduledTime == nil {
		return false
	}
	if current.Status != models.PostStatusScheduled || current.ScheduledTime == nil {
		return true
	}
	return !calendarDay(*current.ScheduledTime).Equal(calendarDay(*next.ScheduledTime))
}

// ingest stores an image. When the upload fails and a target platform
// needs an image, the failure becomes a validation error.
func (s *postService) ingest(ctx context.Context, raw string, platformIDs []int64) (string, error) {
	stored, err := s.media.Ingest(ctx, raw)
	if err == nil {
		return stored, nil
	}

	required, rerr := s.v.ImageRequiredBy(ctx, platformIDs)
	if rerr != nil {
		return "", rerr
	}
	if required != "" {
		v := imageRequired(required)
		v.Message = fmt.Sprintf("The image required by %s could not be stored: %v", required, err)
		return "", &ValidationError{Violations: []Violation{v}}
	}
	return "", err
}

// syncPlatforms brings the post's association rows in line with desired,
// attaching and detaching only the difference so existing rows keep their
// dispatch metadata.
func (s *postService) syncPlatforms(ctx context.Context, tx *sql.Tx, postID int64, desired []int64) error {
	existing, err := s.pp.ListByPostID(ctx, tx, postID)
	if err != nil {
		return err
	}

	want := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		want[id] = struct{}{}
	}
	have := make(map[int64]struct{}, len(existing))
	for _, a := range existing {
		have[a.PlatformID] = struct{}{}
		if _, ok := want[a.PlatformID]; !ok {
			if err := s.pp.Remove(ctx, tx, postID, a.PlatformID); err != nil {
				return err
			}
		}
	}

	for _, id := range desired {
		if _, ok := have[id]; ok {
			continue
		}
		if err := s.pp.Create(ctx, tx, &models.PostPlatform{PostID: postID, PlatformID: id}); err != nil {
			return err
		}
	}
	return nil
}

func (s *postService) Get(ctx context.Context, postID int64) (*models.Post, error) {
	if postID == 0 {
		return nil, fmt.Errorf("post 0: %w", ErrNotFound)
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post: %w", err)
	}
	if post == nil {
		slog.Info("post doesn't exist", "post_id", postID)
		return nil, fmt.Errorf("post %d: %w", postID, ErrNotFound)
	}

	if err := attachPlatforms(ctx, s.pp, s.pl, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *postService) Delete(ctx context.Context, postID int64) error {
	removed, err := s.pr.Remove(ctx, postID)
	if err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}
	if !removed {
		return fmt.Errorf("post %d: %w", postID, ErrNotFound)
	}

	slog.Info("post deleted", "post_id", postID)
	return nil
}

func (s *postService) List(ctx context.Context, userID int64, q *transfer.PostListQuery) (*transfer.PostPage, error) {
	if q == nil {
		q = &transfer.PostListQuery{}
	}

	page := q.Page
	if page < 1 {
		page = 1
	}

	filter := repository.PostFilter{
		Limit:  postsPerPage,
		Offset: (page - 1) * postsPerPage,
	}

	switch q.Status {
	case models.PostStatusDraft, models.PostStatusScheduled, models.PostStatusDispatching,
		models.PostStatusPublished, models.PostStatusPartiallyFailed:
		filter.Status = q.Status
	}

	var err error
	if filter.FromDate, err = transfer.ParseScheduledTime(q.FromDate); err != nil {
		return nil, &ValidationError{Violations: []Violation{{Field: "from_date", Rule: RuleInvalidField, Message: err.Error()}}}
	}
	if filter.ToDate, err = transfer.ParseScheduledTime(q.ToDate); err != nil {
		return nil, &ValidationError{Violations: []Violation{{Field: "to_date", Rule: RuleInvalidField, Message: err.Error()}}}
	}

	posts, total, err := s.pr.ListByUserID(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	if err := attachPlatforms(ctx, s.pp, s.pl, posts...); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*models.Post{}
	}

	lastPage := (total + postsPerPage - 1) / postsPerPage
	if lastPage < 1 {
		lastPage = 1
	}

	return &transfer.PostPage{
		Data:     posts,
		Total:    total,
		Page:     page,
		PerPage:  postsPerPage,
		LastPage: lastPage,
	}, nil
}

func (s *postService) Analytics(ctx context.Context, userID int64) (*transfer.PostAnalytics, error) {
	counts, err := s.pr.CountByStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error counting posts: %w", err)
	}

	platforms, err := s.pl.ListPostCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error counting platform posts: %w", err)
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	percentages := make(map[string]float64, len(counts))
	for status, c := range counts {
		percentages[status] = percent(c, total)
	}

	published := counts[models.PostStatusPublished]
	scheduled := counts[models.PostStatusScheduled]

	return &transfer.PostAnalytics{
		TotalPosts:        total,
		PostsByStatus:     counts,
		StatusPercentages: percentages,
		SuccessRate:       percent(published, published+scheduled),
		Platforms:         platforms,
	}, nil
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}
