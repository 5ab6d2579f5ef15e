package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// LogEntry instruments exactly one destination: time, odometer and fuel.
// EndTime is nil while the destination is in progress; Distance is only
// meaningful once EndTime is set.
type LogEntry struct {
	ID            uuid.UUID
	DestinationID uuid.UUID
	StartTime     time.Time
	EndTime       *time.Time
	StartOdometer int
	Odometer      int
	Distance      int
	RunningTime   int // stationary engine running time, minutes
	FuelReceived  float64
	FuelType      string
	Purpose       string
	Remarks       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MaxReading is the largest odometer, distance or running time the store
// can hold.
const MaxReading = math.MaxInt32

// CheckReading rejects a negative reading or one the store cannot hold.
// field names the reading in the error message.
func CheckReading(field string, v int) error {
	if v < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrValidation, field)
	}
	if v > MaxReading {
		return fmt.Errorf("%w: %s must not exceed %d", ErrValidation, field, MaxReading)
	}
	return nil
}

// Closed reports whether the entry has an end time.
func (l LogEntry) Closed() bool { return l.EndTime != nil }

// ClosingLog carries the fields a driver submits when ending a destination.
// Distance is optional; when nil it is derived from the odometer readings.
type ClosingLog struct {
	EndTime      time.Time
	Odometer     int
	Distance     *int
	RunningTime  int
	FuelReceived float64
	FuelType     string
	Purpose      string
	Remarks      string
}

// OpenLog builds the entry written when a destination starts.
func OpenLog(id, destinationID uuid.UUID, start time.Time, odometer int) LogEntry {
	return LogEntry{
		ID:            id,
		DestinationID: destinationID,
		StartTime:     start,
		StartOdometer: odometer,
		Odometer:      odometer,
		Distance:      0,
	}
}

// CloseLog applies the closing fields to an open entry.
func CloseLog(entry LogEntry, c ClosingLog) (LogEntry, error) {
	if entry.Closed() {
		return LogEntry{}, stateErr(ErrConflict, "log entry", entry.ID, "closed", "already closed")
	}
	if c.EndTime.IsZero() {
		return LogEntry{}, fmt.Errorf("%w: end_time is required", ErrValidation)
	}
	if c.EndTime.Before(entry.StartTime) {
		return LogEntry{}, fmt.Errorf("%w: end_time must not be before start_time", ErrValidation)
	}
	if c.FuelReceived < 0 {
		return LogEntry{}, fmt.Errorf("%w: fuel_received must not be negative", ErrValidation)
	}
	if err := CheckReading("odometer", c.Odometer); err != nil {
		return LogEntry{}, err
	}
	if err := CheckReading("running_time", c.RunningTime); err != nil {
		return LogEntry{}, err
	}

	end := c.EndTime
	entry.EndTime = &end
	entry.Odometer = c.Odometer
	if c.Distance != nil {
		if err := CheckReading("distance", *c.Distance); err != nil {
			return LogEntry{}, err
		}
		entry.Distance = *c.Distance
	} else {
		entry.Distance = c.Odometer - entry.StartOdometer
	}
	entry.RunningTime = c.RunningTime
	entry.FuelReceived = c.FuelReceived
	entry.FuelType = c.FuelType
	entry.Purpose = c.Purpose
	entry.Remarks = c.Remarks
	return entry, nil
}

// ContinuityPolicy holds the optional meter and date ordering checks.
// Both are off by default: operators correct readings after the fact, and
// trips are sometimes logged retroactively.
type ContinuityPolicy struct {
	// EnforceOdometer rejects a start reading below the vehicle's last
	// closed reading, and a closing reading below the opening one.
	EnforceOdometer bool

	// EnforceTripDate rejects a trip dated before the vehicle's latest trip.
	EnforceTripDate bool
}

// CheckStartReading validates a destination's opening odometer against the
// vehicle's last closed reading. last is nil when the vehicle has no history.
func (p ContinuityPolicy) CheckStartReading(last *int, start int) error {
	if err := CheckReading("start_odometer", start); err != nil {
		return err
	}
	if !p.EnforceOdometer || last == nil {
		return nil
	}
	if start < *last {
		return fmt.Errorf("%w: start_odometer %d is below the vehicle's last reading %d", ErrValidation, start, *last)
	}
	return nil
}

// CheckClosingReading validates a closing reading against the opening one.
func (p ContinuityPolicy) CheckClosingReading(entry LogEntry, closing int) error {
	if !p.EnforceOdometer {
		return nil
	}
	if closing < entry.StartOdometer {
		return fmt.Errorf("%w: closing odometer %d is below the opening reading %d", ErrValidation, closing, entry.StartOdometer)
	}
	return nil
}

// CheckTripDate validates a new trip's date against the vehicle's latest
// trip date. latest is nil when the vehicle has no trips.
func (p ContinuityPolicy) CheckTripDate(latest *time.Time, date time.Time) error {
	if !p.EnforceTripDate || latest == nil {
		return nil
	}
	if date.Before(*latest) {
		return fmt.Errorf("%w: trip_date %s is before the vehicle's latest trip on %s",
			ErrValidation, date.Format(time.DateOnly), latest.Format(time.DateOnly))
	}
	return nil
}
