package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/triplog/internal/domain"
	"github.com/pkordes/triplog/internal/repo"
)

// AvailabilityGuard answers whether a vehicle is free and whether an actor
// may use it at all.
type AvailabilityGuard struct {
	dir Directory
}

// NewAvailabilityGuard constructs an AvailabilityGuard over the organization directory.
func NewAvailabilityGuard(dir Directory) *AvailabilityGuard {
	return &AvailabilityGuard{dir: dir}
}

// IsAvailable reports whether no trip other than excluding is in progress on
// the vehicle. Pass the trips repo of the current transaction.
func (g *AvailabilityGuard) IsAvailable(ctx context.Context, trips repo.TripRepo, vehicleID uuid.UUID, excluding *uuid.UUID) (bool, error) {
	active, err := trips.ActiveOnVehicle(ctx, vehicleID)
	if err != nil {
		return false, fmt.Errorf("service.AvailabilityGuard.IsAvailable: %w", err)
	}
	for _, id := range active {
		if excluding == nil || id != *excluding {
			return false, nil
		}
	}
	return true, nil
}

// Reserve locks the vehicle for the rest of the transaction and fails with a
// precondition error if it is busy. Reserve must run inside WithinTx.
func (g *AvailabilityGuard) Reserve(ctx context.Context, trips repo.TripRepo, vehicleID uuid.UUID, excluding *uuid.UUID) error {
	if err := trips.LockVehicle(ctx, vehicleID); err != nil {
		return fmt.Errorf("service.AvailabilityGuard.Reserve: %w", err)
	}
	ok, err := g.IsAvailable(ctx, trips, vehicleID, excluding)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.StateError{
			Kind:   domain.ErrPrecondition,
			Entity: "vehicle",
			ID:     vehicleID,
			Reason: "vehicle is already on a trip in progress",
		}
	}
	return nil
}

// CanUse checks that the actor may drive the vehicle: it belongs to the
// actor's sub-unit, or to the actor's base and the actor holds base access.
func (g *AvailabilityGuard) CanUse(ctx context.Context, actor domain.Actor, vehicleID uuid.UUID) error {
	home, err := g.dir.VehicleHome(ctx, vehicleID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: vehicle %s does not exist", domain.ErrValidation, vehicleID)
	}
	if err != nil {
		return fmt.Errorf("service.AvailabilityGuard.CanUse: %w", err)
	}

	switch {
	case home.SubUnitID == actor.SubUnitID:
		return nil
	case actor.Has(domain.CapBaseVehicleAccess) && home.BaseID == actor.BaseID:
		return nil
	}
	return forbidden("vehicle", vehicleID, "vehicle belongs to another sub-unit")
}
