package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/scheduled-publisher/internal/models"
)

type PostFilter struct {
	Status   string
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64, filter PostFilter) ([]*models.Post, int, error)
	Update(ctx context.Context, tx *sql.Tx, post *models.Post, columns []string, seenUpdatedAt time.Time) (bool, error)
	CountScheduledBetween(ctx context.Context, userID int64, from, to time.Time, excludeID int64) (int, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Post, error)
	ListStaleDispatching(ctx context.Context, updatedBefore time.Time) ([]*models.Post, error)
	Claim(ctx context.Context, id int64, from, to string, seenUpdatedAt time.Time) (bool, error)
	UpdatePostStatus(ctx context.Context, status string, postID int64) error
	CountByStatus(ctx context.Context, userID int64) (map[string]int, error)
	Remove(ctx context.Context, id int64) (bool, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

// Columns a partial Update may write.
const (
	PostColumnTitle         = "title"
	PostColumnContent       = "content"
	PostColumnImageURL      = "image_url"
	PostColumnScheduledTime = "scheduled_time"
	PostColumnStatus        = "status"
)

const postColumns = `id, user_id, title, content, image_url, scheduled_time, status, created_at, updated_at`

func scanPost(row interface{ Scan(dest ...any) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Title, &post.Content, &post.ImageURL,
		&post.ScheduledTime, &post.Status, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if post.ScheduledTime != nil {
		utc := post.ScheduledTime.UTC()
		post.ScheduledTime = &utc
	}
	return &post, nil
}

func (r *postRepository) queryPosts(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, title, content, image_url, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := conn(r.db, tx).QueryRowContext(ctx, query,
		post.UserID, post.Title, post.Content, post.ImageURL, post.ScheduledTime, post.Status,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return post.ID, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64, filter PostFilter) ([]*models.Post, int, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.FromDate != nil {
		args = append(args, *filter.FromDate)
		where = append(where, fmt.Sprintf("scheduled_time >= $%d", len(args)))
	}
	if filter.ToDate != nil {
		args = append(args, *filter.ToDate)
		where = append(where, fmt.Sprintf("scheduled_time <= $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE `+clause, args...).Scan(&total); err != nil {
		slog.Info(err.Error())
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM posts WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		postColumns, clause, len(args)-1, len(args))

	posts, err := r.queryPosts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Update writes the named columns of post, but only while the stored row
// still carries seenUpdatedAt and is not being dispatched. It reports false
// when that no longer holds; otherwise post is refreshed from the row.
func (r *postRepository) Update(ctx context.Context, tx *sql.Tx, post *models.Post, columns []string, seenUpdatedAt time.Time) (bool, error) {
	var set []string
	var args []any

	for _, column := range columns {
		var value any
		switch column {
		case PostColumnTitle:
			value = post.Title
		case PostColumnContent:
			value = post.Content
		case PostColumnImageURL:
			value = post.ImageURL
		case PostColumnScheduledTime:
			value = post.ScheduledTime
		case PostColumnStatus:
			value = post.Status
		default:
			return false, fmt.Errorf("unknown post column %q", column)
		}
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	args = append(args, time.Now().UTC())
	set = append(set, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, post.ID, seenUpdatedAt, models.PostStatusDispatching)

	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = $%d AND updated_at = $%d AND status <> $%d RETURNING %s`,
		strings.Join(set, ", "), len(args)-2, len(args)-1, len(args), postColumns)

	stored, err := scanPost(conn(r.db, tx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	stored.Platforms = post.Platforms
	stored.Associations = post.Associations
	*post = *stored
	return true, nil
}

// CountScheduledBetween counts the owner's scheduled posts with
// scheduled_time in [from, to), ignoring excludeID when it is non-zero.
func (r *postRepository) CountScheduledBetween(ctx context.Context, userID int64, from, to time.Time, excludeID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM posts
		WHERE user_id = $1 AND status = $2 AND scheduled_time >= $3 AND scheduled_time < $4 AND id <> $5
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, models.PostStatusScheduled, from, to, excludeID).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND scheduled_time <= $2 ORDER BY scheduled_time, id`
	return r.queryPosts(ctx, query, models.PostStatusScheduled, now)
}

func (r *postRepository) ListStaleDispatching(ctx context.Context, updatedBefore time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND updated_at < $2 ORDER BY updated_at, id`
	return r.queryPosts(ctx, query, models.PostStatusDispatching, updatedBefore)
}

// Claim moves a post from one status to another only if nobody touched it
// since it was read (same status and updated_at). It reports whether this
// caller won the transition.
func (r *postRepository) Claim(ctx context.Context, id int64, from, to string, seenUpdatedAt time.Time) (bool, error) {
	query := `UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4 AND updated_at = $5`

	result, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from, seenUpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) UpdatePostStatus(ctx context.Context, status string, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CountByStatus(ctx context.Context, userID int64) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM posts WHERE user_id = $1 GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return counts, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM posts WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected > 0, nil
}
