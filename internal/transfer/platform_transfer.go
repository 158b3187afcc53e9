package transfer

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type PlatformToggle struct {
	PlatformIDs []int64 `json:"platform_ids"`
}

func (p PlatformToggle) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.PlatformIDs, validation.Required, validation.Each(validation.Min(int64(1)))),
	)
}
