package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidImageFormat = errors.New("invalid image format")
	ErrImageDecodeFailed  = errors.New("image decode failed")
	ErrUploadFailed       = errors.New("upload failed")
	ErrDispatchFailed     = errors.New("dispatch failed")
	ErrConflict           = errors.New("post changed since it was read")
)

// Violation kinds reported inside a ValidationError.
const (
	RuleImageRequired         = "ImageRequired"
	RuleContentTooLong        = "ContentTooLong"
	RuleDailyQuotaExceeded    = "DailyQuotaExceeded"
	RuleScheduledTimeRequired = "ScheduledTimeRequired"
	RuleInvalidField          = "InvalidField"
)

type Violation struct {
	Field   string
	Rule    string
	Message string

	Platform string // ImageRequired, ContentTooLong
	Limit    int    // ContentTooLong
	Length   int    // ContentTooLong
	Date     string // DailyQuotaExceeded
	Count    int    // DailyQuotaExceeded
}

// ValidationError collects every rule failure for one create/update call.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(v Violation) {
	e.Violations = append(e.Violations, v)
}

func (e *ValidationError) merge(other *ValidationError) {
	if other != nil {
		e.Violations = append(e.Violations, other.Violations...)
	}
}

func (e *ValidationError) Fields() map[string][]string {
	fields := make(map[string][]string)
	for _, v := range e.Violations {
		fields[v.Field] = append(fields[v.Field], v.Message)
	}
	return fields
}

// Has reports whether a violation of the given rule was recorded.
func (e *ValidationError) Has(rule string) bool {
	for _, v := range e.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

func imageRequired(platform string) Violation {
	return Violation{
		Field:    "image_url",
		Rule:     RuleImageRequired,
		Platform: platform,
		Message:  fmt.Sprintf("An image is required when posting to %s.", platform),
	}
}

func contentTooLong(platform string, limit, length int) Violation {
	return Violation{
		Field:    "content",
		Rule:     RuleContentTooLong,
		Platform: platform,
		Limit:    limit,
		Length:   length,
		Message: fmt.Sprintf("Content exceeds the %s character limit of %d characters. Current length: %d characters.",
			platform, limit, length),
	}
}

func dailyQuotaExceeded(date time.Time, count, limit int) Violation {
	day := date.Format(time.DateOnly)
	return Violation{
		Field:   "scheduled_time",
		Rule:    RuleDailyQuotaExceeded,
		Date:    day,
		Count:   count,
		Message: fmt.Sprintf("You have reached the daily limit of %d scheduled posts for %s. Please select another date.", limit, day),
	}
}
