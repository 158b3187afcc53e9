package models

import "time"

type Post struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	Title         string     `db:"title" json:"title"`
	Content       string     `db:"content" json:"content"`
	ImageURL      *string    `db:"image_url" json:"image_url"`
	ScheduledTime *time.Time `db:"scheduled_time" json:"scheduled_time"`
	Status        string     `db:"status" json:"status"` // draft, scheduled, dispatching, published, partially_failed
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	Platforms    []*Platform     `db:"-" json:"platforms"`
	Associations []*PostPlatform `db:"-" json:"-"`
}

// HasImage reports whether the post carries a non-empty image reference.
func (p *Post) HasImage() bool {
	return p.ImageURL != nil && *p.ImageURL != ""
}

func (p *Post) PlatformIDs() []int64 {
	ids := make([]int64, 0, len(p.Platforms))
	for _, pl := range p.Platforms {
		ids = append(ids, pl.ID)
	}
	return ids
}

const (
	PostStatusDraft           = "draft"
	PostStatusScheduled       = "scheduled"
	PostStatusDispatching     = "dispatching"
	PostStatusPublished       = "published"
	PostStatusPartiallyFailed = "partially_failed"
)

// ClientStatuses are the statuses a user may put a post into directly.
var ClientStatuses = []interface{}{PostStatusDraft, PostStatusScheduled, PostStatusPublished}
