// Package settings holds the admin-managed operating settings of the cafeteria.
package settings

import (
	"fmt"
	"time"

	"github.com/MikeMC777/cafeteria/internal/apperr"
)

const clockLayout = "15:04"

type Settings struct {
	MaxActiveOrders     int       `json:"max_active_orders"`
	OpenTime            string    `json:"open_time"`
	CloseTime           string    `json:"close_time"`
	AcceptingOrders     bool      `json:"accepting_orders"`
	CancelFromPreparing bool      `json:"cancel_from_preparing"`
	UpdatedBy           string    `json:"updated_by,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	MaxActiveOrders     *int    `json:"max_active_orders" validate:"omitempty,min=1,max=10000"`
	OpenTime            *string `json:"open_time" validate:"omitempty,clock"`
	CloseTime           *string `json:"close_time" validate:"omitempty,clock"`
	AcceptingOrders     *bool   `json:"accepting_orders"`
	CancelFromPreparing *bool   `json:"cancel_from_preparing"`
}

func (s Settings) Validate() error {
	if s.MaxActiveOrders <= 0 {
		return apperr.New(apperr.ErrInvalidInput, "max_active_orders must be > 0")
	}
	if (s.OpenTime == "") != (s.CloseTime == "") {
		return apperr.New(apperr.ErrInvalidInput, "open_time and close_time must be set together")
	}
	for _, v := range []string{s.OpenTime, s.CloseTime} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(clockLayout, v); err != nil {
			return apperr.New(apperr.ErrInvalidInput, "invalid time %q, want HH:MM", v)
		}
	}
	return nil
}

// IsOpen reports whether t falls inside operating hours in loc. Empty hours
// mean always open; a close time before the open time spans midnight.
func (s Settings) IsOpen(t time.Time, loc *time.Location) bool {
	if s.OpenTime == "" || s.CloseTime == "" {
		return true
	}
	open, err1 := minuteOfDay(s.OpenTime)
	closing, err2 := minuteOfDay(s.CloseTime)
	if err1 != nil || err2 != nil {
		return true
	}
	lt := t.In(loc)
	m := lt.Hour()*60 + lt.Minute()
	if open <= closing {
		return m >= open && m < closing
	}
	return m >= open || m < closing
}

func minuteOfDay(v string) (int, error) {
	t, err := time.Parse(clockLayout, v)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
