package transfer

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/maheshrc27/scheduled-publisher/internal/models"
)

type PostCreation struct {
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	ImageURL      string  `json:"image_url"`
	ScheduledTime string  `json:"scheduled_time"`
	Status        string  `json:"status"`
	PlatformIDs   []int64 `json:"platform_ids"`
}

func (p PostCreation) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&p.Status, validation.Required, validation.In(models.ClientStatuses...)),
		validation.Field(&p.ScheduledTime, validation.By(scheduledTimeRule)),
		validation.Field(&p.PlatformIDs, validation.Each(validation.Min(int64(1)))),
	)
}

type PostUpdate struct {
	Title         Optional[string]  `json:"title"`
	Content       Optional[string]  `json:"content"`
	ImageURL      Optional[string]  `json:"image_url"`
	ScheduledTime Optional[string]  `json:"scheduled_time"`
	Status        Optional[string]  `json:"status"`
	PlatformIDs   Optional[[]int64] `json:"platform_ids"`
}

func (p PostUpdate) Validate() error {
	errs := validation.Errors{}
	if p.Title.Present() {
		errs["title"] = validation.Validate(p.Title.Value, validation.Required, validation.Length(1, 255))
	}
	if p.Status.Present() {
		errs["status"] = validation.Validate(p.Status.Value, validation.Required, validation.In(models.ClientStatuses...))
	}
	if p.ScheduledTime.Present() {
		errs["scheduled_time"] = validation.Validate(p.ScheduledTime.Value, validation.By(scheduledTimeRule))
	}
	if p.PlatformIDs.Present() {
		errs["platform_ids"] = validation.Validate(p.PlatformIDs.Value, validation.Each(validation.Min(int64(1))))
	}
	return errs.Filter()
}

type PostListQuery struct {
	Status   string `query:"status"`
	FromDate string `query:"from_date"`
	ToDate   string `query:"to_date"`
	Page     int    `query:"page"`
}

type PostPage struct {
	Data     []*models.Post `json:"data"`
	Total    int            `json:"total"`
	Page     int            `json:"current_page"`
	PerPage  int            `json:"per_page"`
	LastPage int            `json:"last_page"`
}

type PostAnalytics struct {
	TotalPosts        int                         `json:"total_posts"`
	PostsByStatus     map[string]int              `json:"posts_by_status"`
	StatusPercentages map[string]float64          `json:"status_percentages"`
	SuccessRate       float64                     `json:"success_rate"`
	Platforms         []*models.PlatformPostCount `json:"platforms"`
}

var scheduledTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
	time.DateOnly,
}

// ParseScheduledTime accepts RFC 3339 and a few zone-less layouts. Zone-less
// values are read as UTC. An empty string yields nil.
func ParseScheduledTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range scheduledTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc, nil
		}
	}
	return nil, errors.New("must be a valid date")
}

func scheduledTimeRule(value interface{}) error {
	s, _ := value.(string)
	_, err := ParseScheduledTime(s)
	return err
}
