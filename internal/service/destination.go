package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/triplog/internal/domain"
	"github.com/pkordes/triplog/internal/repo"
)

// DestinationService drives individual stops: starting and ending them, and
// the ad-hoc stops a driver adds on the road.
type DestinationService struct {
	Deps
	guard *AvailabilityGuard
}

// NewDestinationService constructs a DestinationService from the shared collaborators.
func NewDestinationService(d Deps) *DestinationService {
	d = d.withDefaults()
	return &DestinationService{Deps: d, guard: NewAvailabilityGuard(d.Directory)}
}

// StartInput is the opening reading of a destination.
// A zero StartTime means now.
type StartInput struct {
	StartOdometer int
	StartTime     time.Time
}

// Start moves an inactive destination to in progress and opens its log.
// The first start of a trip also moves the trip to in progress.
func (s *DestinationService) Start(ctx context.Context, actor domain.Actor, destinationID uuid.UUID, in StartInput) (_ domain.Destination, _ domain.LogEntry, err error) {
	defer func() { s.Observer.Transition("destination.start", err) }()

	owner, err := s.owningTrip(ctx, actor, destinationID)
	if err != nil {
		return domain.Destination{}, domain.LogEntry{}, fmt.Errorf("service.DestinationService.Start: %w", err)
	}
	if in.StartTime.IsZero() {
		in.StartTime = s.Now()
	}

	var (
		dest  domain.Destination
		entry domain.LogEntry
	)
	err = s.Store.WithinTx(ctx, func(st repo.Store) error {
		// Vehicle, then trip, then destination: every writer on the vehicle
		// takes the locks in this order.
		if err := st.Trips().LockVehicle(ctx, owner.VehicleID); err != nil {
			return err
		}
		trip, err := st.Trips().GetForUpdate(ctx, owner.ID)
		if err != nil {
			return err
		}
		dest, err = st.Destinations().GetForUpdate(ctx, destinationID)
		if err != nil {
			return err
		}
		siblings, err := st.Destinations().ListByTrip(ctx, trip.ID)
		if err != nil {
			return err
		}
		if err := domain.CheckStart(trip, dest, siblings); err != nil {
			return err
		}
		free, err := s.guard.IsAvailable(ctx, st.Trips(), trip.VehicleID, &trip.ID)
		if err != nil {
			return err
		}
		if !free {
			return &domain.StateError{
				Kind:   domain.ErrPrecondition,
				Entity: "vehicle",
				ID:     trip.VehicleID,
				Reason: "vehicle is already on a trip in progress",
			}
		}
		last, err := st.Logs().LastClosedOdometer(ctx, trip.VehicleID)
		if err != nil {
			return err
		}
		if err := s.Policy.CheckStartReading(last, in.StartOdometer); err != nil {
			return err
		}

		now := s.Now()
		entry = domain.OpenLog(s.NewID(), dest.ID, in.StartTime, in.StartOdometer)
		dest.Status = domain.DestinationInProgress
		dest.UpdatedAt = now
		plan := new(domain.Plan).InsertLog(entry).UpdateDestination(dest)
		if trip.Status != domain.TripInProgress {
			trip.Status = domain.TripInProgress
			trip.UpdatedAt = now
			plan.UpdateTrip(trip)
		}
		return repo.Apply(ctx, st, plan)
	})
	if err != nil {
		return domain.Destination{}, domain.LogEntry{}, fmt.Errorf("service.DestinationService.Start: %w", err)
	}
	s.audit(ctx, actor, "started destination %s of trip %s at odometer %d", dest.ID, dest.TripID, in.StartOdometer)
	return dest, entry, nil
}

// EndInput is the closing log of a destination plus a free-text detail
// stored on the destination itself.
type EndInput struct {
	domain.ClosingLog
	Detail string
}

// End closes the log of a destination in progress and completes it. The
// trip's current odometer follows the closing reading.
func (s *DestinationService) End(ctx context.Context, actor domain.Actor, destinationID uuid.UUID, in EndInput) (_ domain.Destination, _ domain.LogEntry, err error) {
	defer func() { s.Observer.Transition("destination.end", err) }()

	owner, err := s.owningTrip(ctx, actor, destinationID)
	if err != nil {
		return domain.Destination{}, domain.LogEntry{}, fmt.Errorf("service.DestinationService.End: %w", err)
	}

	var (
		dest   domain.Destination
		closed domain.LogEntry
	)
	err = s.Store.WithinTx(ctx, func(st repo.Store) error {
		trip, err := st.Trips().GetForUpdate(ctx, owner.ID)
		if err != nil {
			return err
		}
		dest, err = st.Destinations().GetForUpdate(ctx, destinationID)
		if err != nil {
			return err
		}
		if err := domain.CheckEnd(trip, dest); err != nil {
			return err
		}
		entry, err := st.Logs().GetByDestination(ctx, dest.ID)
		if err != nil {
			return err
		}
		if err := s.Policy.CheckClosingReading(entry, in.Odometer); err != nil {
			return err
		}
		closed, err = domain.CloseLog(entry, in.ClosingLog)
		if err != nil {
			return err
		}

		now := s.Now()
		dest.Status = domain.DestinationCompleted
		if in.Detail != "" {
			dest.Detail = in.Detail
		}
		dest.UpdatedAt = now
		trip.CurrentOdometer = closed.Odometer
		trip.UpdatedAt = now
		return repo.Apply(ctx, st, new(domain.Plan).UpdateLog(closed).UpdateDestination(dest).UpdateTrip(trip))
	})
	if err != nil {
		return domain.Destination{}, domain.LogEntry{}, fmt.Errorf("service.DestinationService.End: %w", err)
	}
	s.audit(ctx, actor, "ended destination %s of trip %s at odometer %d", dest.ID, dest.TripID, closed.Odometer)
	return dest, closed, nil
}

// AdHocInput is a stop a driver adds to a trip after it was planned.
type AdHocInput struct {
	To      string
	Purpose string
	Detail  string
}

// AddAdHoc appends a destination to an open trip. It needs the trip's
// approving officer to sign off unless the trip was pre-approved.
func (s *DestinationService) AddAdHoc(ctx context.Context, actor domain.Actor, tripID uuid.UUID, in AdHocInput) (_ domain.Destination, err error) {
	defer func() { s.Observer.Transition("destination.add_ad_hoc", err) }()

	if strings.TrimSpace(in.To) == "" {
		return domain.Destination{}, fmt.Errorf("%w: to is required", domain.ErrValidation)
	}

	var dest domain.Destination
	err = s.Store.WithinTx(ctx, func(st repo.Store) error {
		trip, err := st.Trips().GetForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.OwnedBy(actor.ID) {
			return forbidden("trip", trip.ID, "only the trip's driver may add stops")
		}
		if trip.Status.Terminal() {
			return &domain.StateError{
				Kind:   domain.ErrPrecondition,
				Entity: "trip",
				ID:     trip.ID,
				State:  string(trip.Status),
				Reason: "stops cannot be added to a closed trip",
			}
		}
		dests, err := st.Destinations().ListByTrip(ctx, trip.ID)
		if err != nil {
			return err
		}
		seq := 0
		for _, d := range dests {
			seq = max(seq, d.Sequence)
		}

		now := s.Now()
		dest = domain.Destination{
			ID:             s.NewID(),
			TripID:         trip.ID,
			Sequence:       seq + 1,
			To:             strings.TrimSpace(in.To),
			Purpose:        in.Purpose,
			Status:         domain.DestinationInactive,
			ApprovalStatus: domain.ApprovalApproved,
			AdHoc:          true,
			Detail:         in.Detail,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if trip.ApproverID != nil {
			officer := *trip.ApproverID
			dest.ApprovalStatus = domain.ApprovalPending
			dest.ApproverID = &officer
		}
		return repo.Apply(ctx, st, new(domain.Plan).InsertDestination(dest))
	})
	if err != nil {
		return domain.Destination{}, fmt.Errorf("service.DestinationService.AddAdHoc: %w", err)
	}

	s.audit(ctx, actor, "added ad-hoc destination %s to trip %s", dest.ID, dest.TripID)
	if dest.ApproverID != nil {
		s.notifyApprover(ctx, *dest.ApproverID, dest.TripID,
			fmt.Sprintf("ad-hoc stop %q is awaiting your approval", dest.To))
	}
	return dest, nil
}

// ApproveAdHoc records the designated officer's approval of an ad-hoc stop.
func (s *DestinationService) ApproveAdHoc(ctx context.Context, actor domain.Actor, destinationID uuid.UUID) (_ domain.Destination, err error) {
	defer func() { s.Observer.Transition("destination.approve", err) }()

	dest, err := s.decide(ctx, actor, destinationID, domain.ApprovalApproved)
	if err != nil {
		return domain.Destination{}, fmt.Errorf("service.DestinationService.ApproveAdHoc: %w", err)
	}
	return dest, nil
}

// RejectAdHoc records the designated officer's rejection of an ad-hoc stop.
// A rejected stop is cancelled so it no longer blocks trip completion.
func (s *DestinationService) RejectAdHoc(ctx context.Context, actor domain.Actor, destinationID uuid.UUID) (_ domain.Destination, err error) {
	defer func() { s.Observer.Transition("destination.reject", err) }()

	dest, err := s.decide(ctx, actor, destinationID, domain.ApprovalRejected)
	if err != nil {
		return domain.Destination{}, fmt.Errorf("service.DestinationService.RejectAdHoc: %w", err)
	}
	return dest, nil
}

func (s *DestinationService) decide(ctx context.Context, actor domain.Actor, destinationID uuid.UUID, outcome domain.ApprovalStatus) (domain.Destination, error) {
	current, err := s.Store.Destinations().GetByID(ctx, destinationID)
	if err != nil {
		return domain.Destination{}, err
	}

	var (
		dest     domain.Destination
		driverID uuid.UUID
	)
	err = s.Store.WithinTx(ctx, func(st repo.Store) error {
		trip, err := st.Trips().GetForUpdate(ctx, current.TripID)
		if err != nil {
			return err
		}
		driverID = trip.DriverID
		dest, err = st.Destinations().GetForUpdate(ctx, destinationID)
		if err != nil {
			return err
		}
		if !dest.AdHoc {
			return &domain.StateError{
				Kind:   domain.ErrPrecondition,
				Entity: "destination",
				ID:     dest.ID,
				Reason: "only ad-hoc destinations are approved individually",
			}
		}
		if err := domain.CheckDecision("destination", dest.ID, dest.ApproverID, dest.ApprovalStatus, actor.ID); err != nil {
			return err
		}

		dest.ApprovalStatus = outcome
		if outcome == domain.ApprovalRejected && dest.Status == domain.DestinationInactive {
			dest.Status = domain.DestinationCancelled
		}
		dest.UpdatedAt = s.Now()
		return repo.Apply(ctx, st, new(domain.Plan).UpdateDestination(dest))
	})
	if err != nil {
		return domain.Destination{}, err
	}

	s.audit(ctx, actor, "%s ad-hoc destination %s of trip %s", outcome, dest.ID, dest.TripID)
	s.notifyDriver(ctx, driverID, dest.TripID, fmt.Sprintf("ad-hoc stop %q was %s", dest.To, outcome))
	return dest, nil
}

// owningTrip resolves the trip of a destination and checks the actor drives it.
// It reads without locks; callers re-read under lock inside the transaction.
func (s *DestinationService) owningTrip(ctx context.Context, actor domain.Actor, destinationID uuid.UUID) (domain.Trip, error) {
	dest, err := s.Store.Destinations().GetByID(ctx, destinationID)
	if err != nil {
		return domain.Trip{}, err
	}
	trip, err := s.Store.Trips().GetByID(ctx, dest.TripID)
	if err != nil {
		return domain.Trip{}, err
	}
	if !trip.OwnedBy(actor.ID) {
		return domain.Trip{}, forbidden("destination", dest.ID, "only the trip's driver may drive its destinations")
	}
	return trip, nil
}
