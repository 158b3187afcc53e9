package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/scheduled-publisher/internal/models"
	"github.com/maheshrc27/scheduled-publisher/internal/repository"
)

const (
	twitterMaxLength  = 280
	linkedinMinLength = 50
)

var errClaimLost = errors.New("post claimed elsewhere")

// Publisher performs the side effect of publishing a post to one platform.
type Publisher interface {
	Publish(ctx context.Context, post *models.Post, platform *models.Platform) error
}

type stubPublisher struct{}

// NewStubPublisher returns a Publisher that records the publish in the log
// and always succeeds. No network calls are made.
func NewStubPublisher() Publisher {
	return stubPublisher{}
}

func (stubPublisher) Publish(ctx context.Context, post *models.Post, platform *models.Platform) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Info("published post", "post_id", post.ID, "platform", platform.Name)
	return nil
}

type PublishingService interface {
	ProcessDuePosts(ctx context.Context) (int, error)
	ValidateForPlatform(post *models.Post, platform *models.Platform) []string
}

type publishingService struct {
	scanner     DueScanner
	pr          repository.PostRepository
	pp          repository.PostPlatformRepository
	pub         Publisher
	concurrency int
	timeout     time.Duration
	now         func() time.Time
}

func NewPublishingService(
	scanner DueScanner,
	pr repository.PostRepository,
	pp repository.PostPlatformRepository,
	pub Publisher,
	concurrency int,
	timeout time.Duration) PublishingService {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &publishingService{
		scanner:     scanner,
		pr:          pr,
		pp:          pp,
		pub:         pub,
		concurrency: concurrency,
		timeout:     timeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ProcessDuePosts runs one dispatch cycle and returns how many posts were
// processed without error. A post whose platforms partly failed still
// counts; the per-platform outcome is on its associations.
func (s *publishingService) ProcessDuePosts(ctx context.Context) (int, error) {
	posts, err := s.scanner.Scan(ctx, s.now())
	if err != nil {
		slog.Error("failed to scan due posts", "error", err)
		return 0, err
	}
	if len(posts) == 0 {
		return 0, nil
	}

	slog.Info("processing due posts", "count", len(posts))

	var processed atomic.Int64
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.concurrency)

	for _, post := range posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := s.processPost(ctx, post)
			switch {
			case err == nil:
				processed.Add(1)
			case errors.Is(err, errClaimLost):
				slog.Info("skipping post claimed by another cycle", "post_id", post.ID)
			default:
				slog.Error("failed to process post", "post_id", post.ID, "error", err)
			}
		}(post)
	}

	wg.Wait()
	return int(processed.Load()), nil
}

func (s *publishingService) processPost(ctx context.Context, post *models.Post) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while processing post %d: %v", post.ID, p)
		}
	}()

	won, err := s.pr.Claim(ctx, post.ID, post.Status, models.PostStatusDispatching, post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error claiming post: %w", err)
	}
	if !won {
		return errClaimLost
	}

	// A post recovered from a crashed cycle keeps the platforms that cycle
	// already published to.
	done := make(map[int64]bool)
	if post.Status == models.PostStatusDispatching {
		for _, a := range post.Associations {
			if a.LastStatus == models.DispatchPublished {
				done[a.PlatformID] = true
			}
		}
	}

	results := make([]error, len(post.Platforms))
	var wg sync.WaitGroup
	for i, platform := range post.Platforms {
		if done[platform.ID] {
			slog.Info("skipping platform published before recovery", "post_id", post.ID, "platform", platform.Name)
			continue
		}
		wg.Add(1)
		go func(i int, platform *models.Platform) {
			defer wg.Done()
			results[i] = s.publishToPlatform(ctx, post, platform)
		}(i, platform)
	}
	wg.Wait()

	status := models.PostStatusPublished
	for _, err := range results {
		if err != nil {
			status = models.PostStatusPartiallyFailed
			break
		}
	}

	if err := s.pr.UpdatePostStatus(ctx, status, post.ID); err != nil {
		return fmt.Errorf("error setting final status: %w", err)
	}
	post.Status = status

	slog.Info("processed post", "post_id", post.ID, "status", status, "platforms", len(post.Platforms))
	return nil
}

func (s *publishingService) publishToPlatform(ctx context.Context, post *models.Post, platform *models.Platform) error {
	var err error

	if problems := s.ValidateForPlatform(post, platform); len(problems) > 0 {
		err = fmt.Errorf("%w: %s", ErrDispatchFailed, strings.Join(problems, "; "))
		slog.Warn("post failed validation for platform", "post_id", post.ID, "platform", platform.Name, "errors", problems)
	} else if perr := s.publish(ctx, post, platform); perr != nil {
		err = fmt.Errorf("%w: %w", ErrDispatchFailed, perr)
		slog.Error("failed to publish post", "post_id", post.ID, "platform", platform.Name, "error", perr)
	}

	dispatchedAt := s.now()
	outcome := &models.PostPlatform{
		PostID:       post.ID,
		PlatformID:   platform.ID,
		LastStatus:   models.DispatchPublished,
		DispatchedAt: &dispatchedAt,
	}
	if err != nil {
		outcome.LastStatus = models.DispatchFailed
		outcome.LastError = err.Error()
	}
	if rerr := s.pp.RecordOutcome(ctx, outcome); rerr != nil {
		slog.Error("failed to record dispatch outcome", "post_id", post.ID, "platform", platform.Name, "error", rerr)
	}

	return err
}

// publish runs one Publisher call under the per-platform timeout. A panic
// in the publisher is returned as an error.
func (s *publishingService) publish(ctx context.Context, post *models.Post, platform *models.Platform) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic publishing to %s: %v", platform.Name, p)
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.pub.Publish(ctx, post, platform)
}

// ValidateForPlatform applies the structural checks a platform imposes on
// a post at publish time.
func (s *publishingService) ValidateForPlatform(post *models.Post, platform *models.Platform) []string {
	var problems []string

	if !platform.IsActive() {
		problems = append(problems, fmt.Sprintf("%s is inactive", platform.Name))
	}

	length := utf8.RuneCountInString(post.Content)
	switch strings.ToLower(platform.Type) {
	case "twitter":
		if length > twitterMaxLength {
			problems = append(problems, fmt.Sprintf("Content exceeds Twitter's %d character limit", twitterMaxLength))
		}
	case "instagram":
		if !post.HasImage() {
			problems = append(problems, "Instagram posts require an image")
		}
	case "linkedin":
		if length < linkedinMinLength {
			problems = append(problems, fmt.Sprintf("LinkedIn posts should have at least %d characters for better engagement", linkedinMinLength))
		}
	}

	return problems
}
