package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/scheduled-publisher/internal/models"
)

type PlatformRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Platform, error)
	List(ctx context.Context) ([]*models.Platform, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*models.Platform, error)
	SetStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error
	ListPostCounts(ctx context.Context, userID int64) ([]*models.PlatformPostCount, error)
}

type platformRepository struct {
	db *sql.DB
}

func NewPlatformRepository(db *sql.DB) PlatformRepository {
	return &platformRepository{db: db}
}

const platformColumns = `id, name, type, character_limit, status, created_at, updated_at`

func (r *platformRepository) scanAll(rows *sql.Rows) ([]*models.Platform, error) {
	defer rows.Close()

	var platforms []*models.Platform
	for rows.Next() {
		var p models.Platform
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.CharacterLimit, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		platforms = append(platforms, &p)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return platforms, nil
}

func (r *platformRepository) GetByID(ctx context.Context, id int64) (*models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms WHERE id = $1`

	var p models.Platform
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Type, &p.CharacterLimit, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &p, nil
}

func (r *platformRepository) List(ctx context.Context) ([]*models.Platform, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+platformColumns+` FROM platforms ORDER BY id`)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *platformRepository) ListByIDs(ctx context.Context, ids []int64) ([]*models.Platform, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+platformColumns+` FROM platforms WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *platformRepository) SetStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	query := `UPDATE platforms SET status = $1, updated_at = $2 WHERE id = $3`

	_, err := conn(r.db, tx).ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformRepository) ListPostCounts(ctx context.Context, userID int64) ([]*models.PlatformPostCount, error) {
	query := `
		SELECT platforms.id, platforms.name, platforms.type, COUNT(posts.id)
		FROM platforms
		LEFT JOIN post_platform ON platforms.id = post_platform.platform_id
		LEFT JOIN posts ON post_platform.post_id = posts.id AND posts.user_id = $1
		GROUP BY platforms.id, platforms.name, platforms.type
		ORDER BY platforms.id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var counts []*models.PlatformPostCount
	for rows.Next() {
		var c models.PlatformPostCount
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.PostCount); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		counts = append(counts, &c)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return counts, nil
}
