// Package model contains the domain types passed between layers of the
// parking service: raw client reports, aggregated zones and the answers the
// prediction engine produces.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// TrajectoryPoint is a single GPS sample reported by a client. Samples are
// append-only and only removed by retention.
type TrajectoryPoint struct {
	UserID    string    `validate:"required,max=128"`
	Latitude  float64   `validate:"gte=-90,lte=90"`
	Longitude float64   `validate:"gte=-180,lte=180"`
	Timestamp time.Time `validate:"required"`
	Speed     *float64  `validate:"omitnil,gte=0"`
	Heading   *float64  `validate:"omitnil,gte=0,lt=360"`
	Accuracy  *float64  `validate:"omitnil,gte=0"`
}

// Validate checks required fields and coordinate ranges.
func (p TrajectoryPoint) Validate() error {
	return check(p)
}

// ParkingEvent is one reported parking attempt. DayOfWeek follows
// time.Weekday (0 is Sunday) and, like Hour, is derived from Timestamp in
// the service time zone.
type ParkingEvent struct {
	ID             string
	UserID         string    `validate:"required,max=128"`
	Latitude       float64   `validate:"gte=-90,lte=90"`
	Longitude      float64   `validate:"gte=-180,lte=180"`
	Timestamp      time.Time `validate:"required"`
	DayOfWeek      int       `validate:"gte=0,lte=6"`
	Hour           int       `validate:"gte=0,lte=23"`
	FoundParking   bool
	SearchDuration int     `validate:"gte=0"` // seconds
	StreetName     *string `validate:"omitnil,max=256"`
}

// Validate checks required fields and coordinate ranges.
func (e ParkingEvent) Validate() error {
	return check(e)
}

// Stamp sets Timestamp (when zero) and derives DayOfWeek and Hour in loc.
func (e *ParkingEvent) Stamp(now time.Time, loc *time.Location) {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if loc == nil {
		loc = time.UTC
	}
	local := e.Timestamp.In(loc)
	e.DayOfWeek = int(local.Weekday())
	e.Hour = local.Hour()
}

func check(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
