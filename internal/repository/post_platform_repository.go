package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/maheshrc27/scheduled-publisher/internal/models"
)

type PostPlatformRepository interface {
	Create(ctx context.Context, tx *sql.Tx, pp *models.PostPlatform) error
	ListByPostID(ctx context.Context, tx *sql.Tx, postID int64) ([]*models.PostPlatform, error)
	ListByPostIDs(ctx context.Context, postIDs []int64) ([]*models.PostPlatform, error)
	RecordOutcome(ctx context.Context, pp *models.PostPlatform) error
	Remove(ctx context.Context, tx *sql.Tx, postID, platformID int64) error
}

type postPlatformRepository struct {
	db *sql.DB
}

func NewPostPlatformRepository(db *sql.DB) PostPlatformRepository {
	return &postPlatformRepository{db: db}
}

const postPlatformColumns = `post_id, platform_id, last_status, last_error, dispatched_at, created_at`

func scanPostPlatforms(rows *sql.Rows) ([]*models.PostPlatform, error) {
	defer rows.Close()

	var list []*models.PostPlatform
	for rows.Next() {
		var pp models.PostPlatform
		if err := rows.Scan(&pp.PostID, &pp.PlatformID, &pp.LastStatus, &pp.LastError, &pp.DispatchedAt, &pp.CreatedAt); err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("scan row: %w", err)
		}
		list = append(list, &pp)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return list, nil
}

func (r *postPlatformRepository) Create(ctx context.Context, tx *sql.Tx, pp *models.PostPlatform) error {
	query := `
		INSERT INTO post_platform (post_id, platform_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, platform_id) DO NOTHING
	`

	_, err := conn(r.db, tx).ExecContext(ctx, query, pp.PostID, pp.PlatformID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postPlatformRepository) ListByPostID(ctx context.Context, tx *sql.Tx, postID int64) ([]*models.PostPlatform, error) {
	query := `SELECT ` + postPlatformColumns + ` FROM post_platform WHERE post_id = $1 ORDER BY platform_id`

	rows, err := conn(r.db, tx).QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("query rows: %w", err)
	}
	return scanPostPlatforms(rows)
}

func (r *postPlatformRepository) ListByPostIDs(ctx context.Context, postIDs []int64) ([]*models.PostPlatform, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + postPlatformColumns + ` FROM post_platform WHERE post_id = ANY($1) ORDER BY post_id, platform_id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(postIDs))
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("query rows: %w", err)
	}
	return scanPostPlatforms(rows)
}

func (r *postPlatformRepository) RecordOutcome(ctx context.Context, pp *models.PostPlatform) error {
	query := `
		UPDATE post_platform
		SET last_status = $1,
			last_error = $2,
			dispatched_at = $3
		WHERE post_id = $4 AND platform_id = $5
	`

	_, err := r.db.ExecContext(ctx, query, pp.LastStatus, pp.LastError, pp.DispatchedAt, pp.PostID, pp.PlatformID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postPlatformRepository) Remove(ctx context.Context, tx *sql.Tx, postID, platformID int64) error {
	query := `DELETE FROM post_platform WHERE post_id = $1 AND platform_id = $2`

	_, err := conn(r.db, tx).ExecContext(ctx, query, postID, platformID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
