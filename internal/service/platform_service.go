package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/scheduled-publisher/internal/models"
	"github.com/maheshrc27/scheduled-publisher/internal/repository"
	"github.com/maheshrc27/scheduled-publisher/internal/transfer"
)

type PlatformService interface {
	List(ctx context.Context) ([]*models.Platform, error)
	Toggle(ctx context.Context, platformIDs []int64) ([]*models.Platform, error)
}

type platformService struct {
	tx repository.TxManager
	pl repository.PlatformRepository
}

func NewPlatformService(tx repository.TxManager, pl repository.PlatformRepository) PlatformService {
	return &platformService{
		tx: tx,
		pl: pl,
	}
}

func (s *platformService) List(ctx context.Context) ([]*models.Platform, error) {
	platforms, err := s.pl.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting platforms: %w", err)
	}
	if platforms == nil {
		platforms = []*models.Platform{}
	}
	return platforms, nil
}

// Toggle flips every listed platform between active and inactive in one
// transaction. Unknown ids fail the whole call.
func (s *platformService) Toggle(ctx context.Context, platformIDs []int64) ([]*models.Platform, error) {
	if err := requestErrors(transfer.PlatformToggle{PlatformIDs: platformIDs}.Validate()); err != nil {
		return nil, err
	}

	ids := uniqueIDs(platformIDs)

	platforms, err := s.pl.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error getting platforms: %w", err)
	}
	if len(platforms) != len(ids) {
		return nil, fmt.Errorf("platform: %w", ErrNotFound)
	}

	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		for _, p := range platforms {
			next := models.PlatformStatusInactive
			if !p.IsActive() {
				next = models.PlatformStatusActive
			}
			if err := s.pl.SetStatus(ctx, tx, p.ID, next); err != nil {
				return fmt.Errorf("error toggling platform %d: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range platforms {
		if p.IsActive() {
			p.Status = models.PlatformStatusInactive
		} else {
			p.Status = models.PlatformStatusActive
		}
		slog.Info("platform toggled", "platform_id", p.ID, "status", p.Status)
	}
	return platforms, nil
}
