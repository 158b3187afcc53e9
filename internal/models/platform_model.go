package models

import "time"

type Platform struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Type           string    `db:"type" json:"type"`
	CharacterLimit int       `db:"character_limit" json:"character_limit"`
	Status         string    `db:"status" json:"status"` // active, inactive
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Platform) IsActive() bool {
	return p.Status == PlatformStatusActive
}

type PostPlatform struct {
	PostID       int64      `db:"post_id" json:"post_id"`
	PlatformID   int64      `db:"platform_id" json:"platform_id"`
	LastStatus   string     `db:"last_status" json:"last_status"` // pending, published, failed
	LastError    string     `db:"last_error" json:"last_error"`
	DispatchedAt *time.Time `db:"dispatched_at" json:"dispatched_at"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

type PlatformPostCount struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Type      string `db:"type" json:"type"`
	PostCount int    `db:"post_count" json:"post_count"`
}

const (
	PlatformStatusActive   = "active"
	PlatformStatusInactive = "inactive"

	DefaultCharacterLimit = 280

	DispatchPending   = "pending"
	DispatchPublished = "published"
	DispatchFailed    = "failed"
)
