package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/triplog/internal/repo"
)

// LogService answers questions about a vehicle's log history.
type LogService struct {
	logs repo.LogRepo
}

// NewLogService constructs a LogService backed by the provided LogRepo.
func NewLogService(logs repo.LogRepo) *LogService {
	return &LogService{logs: logs}
}

// LastOdometer returns the vehicle's most recent closed odometer reading, or
// nil if it has never completed a destination. Drivers use it to prefill the
// start reading.
func (s *LogService) LastOdometer(ctx context.Context, vehicleID uuid.UUID) (*int, error) {
	last, err := s.logs.LastClosedOdometer(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("service.LogService.LastOdometer: %w", err)
	}
	return last, nil
}
