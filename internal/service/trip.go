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

// TripService implements the trip lifecycle: creation, approval, completion,
// cancellation and administrative force-completion.
type TripService struct {
	Deps
	guard *AvailabilityGuard
}

// NewTripService constructs a TripService from the shared collaborators.
func NewTripService(d Deps) *TripService {
	d = d.withDefaults()
	return &TripService{Deps: d, guard: NewAvailabilityGuard(d.Directory)}
}

// CreateTripInput is everything a driver submits to plan a trip.
type CreateTripInput struct {
	VehicleID     uuid.UUID
	TripDate      time.Time
	StartOdometer int
	Destinations  []domain.DestinationInput
	ApproverID    *uuid.UUID
	PreApproved   bool
	Safety        *domain.SafetyForm
}

func (in CreateTripInput) validate() error {
	if in.VehicleID == uuid.Nil {
		return fmt.Errorf("%w: vehicle_id is required", domain.ErrValidation)
	}
	if in.TripDate.IsZero() {
		return fmt.Errorf("%w: trip_date is required", domain.ErrValidation)
	}
	if err := domain.CheckReading("start_odometer", in.StartOdometer); err != nil {
		return err
	}
	if in.Safety != nil && in.Safety.RiskScore < 0 {
		return fmt.Errorf("%w: safety_form.risk_score must not be negative", domain.ErrValidation)
	}
	return domain.ValidateDestinations(in.Destinations)
}

// Create validates and persists a trip with its planned destinations.
// Pre-approved trips are approved immediately; all others wait for the named
// approving officer, who is notified after the trip commits.
func (s *TripService) Create(ctx context.Context, actor domain.Actor, in CreateTripInput) (_ domain.TripDetail, err error) {
	defer func() { s.Observer.Transition("trip.create", err) }()

	if !actor.Has(domain.CapDriver) && !actor.Has(domain.CapPreApprovedDriver) {
		return domain.TripDetail{}, forbidden("member", actor.ID, "only drivers can create trips")
	}
	if err := in.validate(); err != nil {
		return domain.TripDetail{}, err
	}

	officer, err := s.lookupMember(ctx, in.ApproverID)
	if err != nil {
		return domain.TripDetail{}, fmt.Errorf("service.TripService.Create: %w", err)
	}
	decision, err := domain.DecideApproval(domain.ApprovalRequest{
		PreApproved: in.PreApproved,
		Driver:      actor,
		OfficerID:   in.ApproverID,
		Officer:     officer,
	})
	if err != nil {
		return domain.TripDetail{}, err
	}
	if err := s.guard.CanUse(ctx, actor, in.VehicleID); err != nil {
		return domain.TripDetail{}, err
	}

	now := s.Now()
	trip := domain.Trip{
		ID:              s.NewID(),
		DriverID:        actor.ID,
		VehicleID:       in.VehicleID,
		ApproverID:      decision.OfficerID,
		TripDate:        in.TripDate,
		StartOdometer:   in.StartOdometer,
		CurrentOdometer: in.StartOdometer,
		Status:          domain.TripInactive,
		ApprovalStatus:  decision.InitialStatus(),
		PreApproved:     decision.AutoApproved,
		Safety:          in.Safety,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	dests := make([]domain.Destination, len(in.Destinations))
	plan := new(domain.Plan).InsertTrip(trip)
	for i, d := range in.Destinations {
		dests[i] = domain.Destination{
			ID:             s.NewID(),
			TripID:         trip.ID,
			Sequence:       i + 1,
			To:             strings.TrimSpace(d.To),
			Purpose:        d.Purpose,
			Status:         domain.DestinationInactive,
			ApprovalStatus: decision.InitialStatus(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		plan.InsertDestination(dests[i])
	}

	err = s.Store.WithinTx(ctx, func(st repo.Store) error {
		if err := s.guard.Reserve(ctx, st.Trips(), trip.VehicleID, nil); err != nil {
			return err
		}
		latest, err := st.Trips().LatestTripDate(ctx, trip.VehicleID)
		if err != nil {
			return err
		}
		if err := s.Policy.CheckTripDate(latest, trip.TripDate); err != nil {
			return err
		}
		return repo.Apply(ctx, st, plan)
	})
	if err != nil {
		return domain.TripDetail{}, fmt.Errorf("service.TripService.Create: %w", err)
	}

	s.audit(ctx, actor, "created trip %s on vehicle %s", trip.ID, trip.VehicleID)
	if !decision.AutoApproved {
		s.notifyApprover(ctx, *decision.OfficerID, trip.ID,
			fmt.Sprintf("trip on %s is awaiting your approval", trip.TripDate.Format(time.DateOnly)))
	}
	return domain.TripDetail{Trip: trip, Destinations: dests, Logs: map[uuid.UUID]domain.LogEntry{}}, nil
}

// Approve records the designated officer's approval of a pending, open trip and
// cascades it to every destination still awaiting a decision. notes are
// stored on the trip's safety form; trips created without one drop them.
func (s *TripService) Approve(ctx context.Context, actor domain.Actor, tripID uuid.UUID, notes string) (_ domain.Trip, err error) {
	defer func() { s.Observer.Transition("trip.approve", err) }()

	trip, err := s.decide(ctx, actor, tripID, domain.ApprovalApproved, notes)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Approve: %w", err)
	}
	s.audit(ctx, actor, "approved trip %s", trip.ID)
	s.notifyDriver(ctx, trip.DriverID, trip.ID, "your trip has been approved")
	return trip, nil
}

// Reject records the designated officer's rejection of a pending trip.
func (s *TripService) Reject(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (_ domain.Trip, err error) {
	defer func() { s.Observer.Transition("trip.reject", err) }()

	trip, err := s.decide(ctx, actor, tripID, domain.ApprovalRejected, "")
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Reject: %w", err)
	}
	s.audit(ctx, actor, "rejected trip %s", trip.ID)
	s.notifyDriver(ctx, trip.DriverID, trip.ID, "your trip has been rejected")
	return trip, nil
}

func (s *TripService) decide(ctx context.Context, actor domain.Actor, tripID uuid.UUID, outcome domain.ApprovalStatus, notes string) (domain.Trip, error) {
	var trip domain.Trip
	err := s.Store.WithinTx(ctx, func(st repo.Store) error {
		var err error
		trip, err = st.Trips().GetForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if err := domain.CheckDecision("trip", trip.ID, trip.ApproverID, trip.ApprovalStatus, actor.ID); err != nil {
			return err
		}
		if trip.Status.Terminal() {
			return &domain.StateError{
				Kind:   domain.ErrPrecondition,
				Entity: "trip",
				ID:     trip.ID,
				State:  string(trip.Status),
				Reason: "closed trips can no longer be approved or rejected",
			}
		}

		trip.ApprovalStatus = outcome
		trip.UpdatedAt = s.Now()
		if notes != "" && trip.Safety != nil {
			form := *trip.Safety
			form.ApproverNotes = notes
			trip.Safety = &form
		}
		plan := new(domain.Plan).UpdateTrip(trip)

		dests, err := st.Destinations().ListByTrip(ctx, trip.ID)
		if err != nil {
			return err
		}
		for _, d := range dests {
			if d.ApprovalStatus != domain.ApprovalPending {
				continue
			}
			d.ApprovalStatus = outcome
			d.UpdatedAt = trip.UpdatedAt
			plan.UpdateDestination(d)
		}
		return repo.Apply(ctx, st, plan)
	})
	return trip, err
}

// Complete closes a trip whose destinations are all completed or cancelled.
// Only the trip's driver may complete it.
func (s *TripService) Complete(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (_ domain.Trip, err error) {
	defer func() { s.Observer.Transition("trip.complete", err) }()

	var trip domain.Trip
	err = s.Store.WithinTx(ctx, func(st repo.Store) error {
		var err error
		trip, err = s.lockOwnedTrip(ctx, st, actor, tripID)
		if err != nil {
			return err
		}
		dests, err := st.Destinations().ListByTrip(ctx, trip.ID)
		if err != nil {
			return err
		}
		if open := domain.Outstanding(dests); len(open) > 0 {
			names := make([]string, len(open))
			for i, d := range open {
				names[i] = fmt.Sprintf("%s (%s)", d.To, d.Status)
			}
			return &domain.StateError{
				Kind:   domain.ErrPrecondition,
				Entity: "trip",
				ID:     trip.ID,
				State:  string(trip.Status),
				Reason: "destinations still open: " + strings.Join(names, ", "),
			}
		}

		now := s.Now()
		trip.Status = domain.TripCompleted
		trip.EndedAt = &now
		trip.UpdatedAt = now
		return repo.Apply(ctx, st, new(domain.Plan).UpdateTrip(trip))
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Complete: %w", err)
	}
	s.audit(ctx, actor, "completed trip %s", trip.ID)
	return trip, nil
}

// Cancel abandons a trip that has no destination in progress. Inactive
// destinations are cancelled with it.
func (s *TripService) Cancel(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (_ domain.Trip, err error) {
	defer func() { s.Observer.Transition("trip.cancel", err) }()

	var trip domain.Trip
	err = s.Store.WithinTx(ctx, func(st repo.Store) error {
		var err error
		trip, err = s.lockOwnedTrip(ctx, st, actor, tripID)
		if err != nil {
			return err
		}
		dests, err := st.Destinations().ListByTrip(ctx, trip.ID)
		if err != nil {
			return err
		}
		if active, ok := domain.Active(dests); ok {
			return &domain.StateError{
				Kind:   domain.ErrPrecondition,
				Entity: "trip",
				ID:     trip.ID,
				State:  string(trip.Status),
				Reason: fmt.Sprintf("destination %s is in progress", active.ID),
			}
		}

		now := s.Now()
		trip.Status = domain.TripCancelled
		trip.EndedAt = &now
		trip.UpdatedAt = now
		plan := new(domain.Plan).UpdateTrip(trip)
		for _, d := range cancelInactive(dests, now) {
			plan.UpdateDestination(d)
		}
		return repo.Apply(ctx, st, plan)
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Cancel: %w", err)
	}
	s.audit(ctx, actor, "cancelled trip %s", trip.ID)
	return trip, nil
}

// lockOwnedTrip loads the trip for update and checks the actor is its driver
// and that it is still open.
func (s *TripService) lockOwnedTrip(ctx context.Context, st repo.Store, actor domain.Actor, tripID uuid.UUID) (domain.Trip, error) {
	trip, err := st.Trips().GetForUpdate(ctx, tripID)
	if err != nil {
		return domain.Trip{}, err
	}
	if !trip.OwnedBy(actor.ID) {
		return domain.Trip{}, forbidden("trip", trip.ID, "only the trip's driver may change it")
	}
	if trip.Status.Terminal() {
		return domain.Trip{}, &domain.StateError{
			Kind:   domain.ErrConflict,
			Entity: "trip",
			ID:     trip.ID,
			State:  string(trip.Status),
			Reason: "trip is already closed",
		}
	}
	return trip, nil
}

// cancelInactive returns the inactive destinations of dests moved to cancelled.
func cancelInactive(dests []domain.Destination, now time.Time) []domain.Destination {
	var out []domain.Destination
	for _, d := range dests {
		if d.Status != domain.DestinationInactive {
			continue
		}
		d.Status = domain.DestinationCancelled
		d.UpdatedAt = now
		out = append(out, d)
	}
	return out
}

// ForceCompleteInput carries the closing readings an administrator supplies.
type ForceCompleteInput struct {
	FinalOdometer int
	EndTime       time.Time
	// StartTime opens the log when a destination that was never started is
	// closed on the driver's behalf. It defaults to EndTime.
	StartTime    *time.Time
	RunningTime  int
	FuelReceived float64
	FuelType     string
	Remarks      string
	// NoActiveDestination stops the fallback to a destination that was never
	// started. A destination in progress still gets its log closed.
	NoActiveDestination bool
}

// ForceCompleteResult reports what a force-complete changed.
type ForceCompleteResult struct {
	Trip      domain.Trip
	Closed    *domain.LogEntry
	Cancelled []uuid.UUID
	Changed   bool
}

// ForceComplete closes a trip on a driver's behalf. The destination in
// progress, or failing that the last approved destination not yet reached,
// gets its log closed at FinalOdometer; every other open destination is
// cancelled. Repeating the call on a closed trip changes nothing.
func (s *TripService) ForceComplete(ctx context.Context, actor domain.Actor, tripID uuid.UUID, in ForceCompleteInput) (_ ForceCompleteResult, err error) {
	defer func() { s.Observer.Transition("trip.force_complete", err) }()

	if !actor.Has(domain.CapFleetAdmin) {
		return ForceCompleteResult{}, forbidden("trip", tripID, "force-complete requires fleet administrator rights")
	}
	if in.EndTime.IsZero() {
		return ForceCompleteResult{}, fmt.Errorf("%w: end_time is required", domain.ErrValidation)
	}
	if err := domain.CheckReading("final_odometer", in.FinalOdometer); err != nil {
		return ForceCompleteResult{}, err
	}

	var res ForceCompleteResult
	err = s.Store.WithinTx(ctx, func(st repo.Store) error {
		trip, err := st.Trips().GetForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		res.Trip = trip
		dests, err := st.Destinations().ListByTrip(ctx, trip.ID)
		if err != nil {
			return err
		}
		target, found := forceTarget(trip, dests, in.NoActiveDestination)
		if trip.Status.Terminal() && !found {
			return nil
		}

		now := s.Now()
		plan := new(domain.Plan)
		if found {
			entry, err := s.closeOnBehalf(ctx, st, trip, target, in, plan)
			if err != nil {
				return err
			}
			res.Closed = &entry
			target.Status = domain.DestinationCompleted
			target.UpdatedAt = now
			plan.UpdateDestination(target)
		}
		for _, d := range cancelOutstanding(dests, target.ID, now) {
			res.Cancelled = append(res.Cancelled, d.ID)
			plan.UpdateDestination(d)
		}

		end := in.EndTime
		trip.Status = domain.TripCompleted
		trip.EndedAt = &end
		trip.CurrentOdometer = in.FinalOdometer
		trip.UpdatedAt = now
		plan.UpdateTrip(trip)
		if err := repo.Apply(ctx, st, plan); err != nil {
			return err
		}
		res.Trip = trip
		res.Changed = true
		return nil
	})
	if err != nil {
		return ForceCompleteResult{}, fmt.Errorf("service.TripService.ForceComplete: %w", err)
	}
	if res.Changed {
		s.audit(ctx, actor, "force-completed trip %s at odometer %d", res.Trip.ID, in.FinalOdometer)
		s.notifyDriver(ctx, res.Trip.DriverID, res.Trip.ID, "your trip was completed by a fleet administrator")
	}
	return res, nil
}

// forceTarget picks the destination whose log a force-complete closes.
func forceTarget(trip domain.Trip, dests []domain.Destination, skip bool) (domain.Destination, bool) {
	if active, ok := domain.Active(dests); ok {
		return active, true
	}
	if skip || trip.Status.Terminal() || trip.ApprovalStatus != domain.ApprovalApproved {
		return domain.Destination{}, false
	}
	for i := len(dests) - 1; i >= 0; i-- {
		d := dests[i]
		if d.Status == domain.DestinationInactive && d.ApprovalStatus == domain.ApprovalApproved {
			return d, true
		}
	}
	return domain.Destination{}, false
}

// closeOnBehalf closes the target's log, opening one first if the
// destination was never started, and adds the writes to plan.
func (s *TripService) closeOnBehalf(ctx context.Context, st repo.Store, trip domain.Trip, target domain.Destination, in ForceCompleteInput, plan *domain.Plan) (domain.LogEntry, error) {
	closing := domain.ClosingLog{
		EndTime:      in.EndTime,
		Odometer:     in.FinalOdometer,
		RunningTime:  in.RunningTime,
		FuelReceived: in.FuelReceived,
		FuelType:     in.FuelType,
		Purpose:      target.Purpose,
		Remarks:      in.Remarks,
	}

	if target.Status == domain.DestinationInProgress {
		entry, err := st.Logs().GetByDestination(ctx, target.ID)
		if err != nil {
			return domain.LogEntry{}, err
		}
		if err := s.Policy.CheckClosingReading(entry, in.FinalOdometer); err != nil {
			return domain.LogEntry{}, err
		}
		closed, err := domain.CloseLog(entry, closing)
		if err != nil {
			return domain.LogEntry{}, err
		}
		plan.UpdateLog(closed)
		return closed, nil
	}

	start := in.EndTime
	if in.StartTime != nil {
		start = *in.StartTime
	}
	entry := domain.OpenLog(s.NewID(), target.ID, start, trip.CurrentOdometer)
	if err := s.Policy.CheckClosingReading(entry, in.FinalOdometer); err != nil {
		return domain.LogEntry{}, err
	}
	closed, err := domain.CloseLog(entry, closing)
	if err != nil {
		return domain.LogEntry{}, err
	}
	plan.InsertLog(closed)
	return closed, nil
}

// cancelOutstanding cancels every inactive destination except keep.
func cancelOutstanding(dests []domain.Destination, keep uuid.UUID, now time.Time) []domain.Destination {
	var out []domain.Destination
	for _, d := range cancelInactive(dests, now) {
		if d.ID != keep {
			out = append(out, d)
		}
	}
	return out
}

// Get returns a trip with its destinations and logs. Drivers and officers
// only see trips they take part in.
func (s *TripService) Get(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (domain.TripDetail, error) {
	trip, err := s.Store.Trips().GetByID(ctx, tripID)
	if err != nil {
		return domain.TripDetail{}, fmt.Errorf("service.TripService.Get: %w", err)
	}
	if !actor.Has(domain.CapFleetAdmin) && !trip.OwnedBy(actor.ID) && !trip.DesignatedTo(actor.ID) {
		return domain.TripDetail{}, forbidden("trip", trip.ID, "caller does not take part in this trip")
	}
	dests, err := s.Store.Destinations().ListByTrip(ctx, trip.ID)
	if err != nil {
		return domain.TripDetail{}, fmt.Errorf("service.TripService.Get: %w", err)
	}
	logs, err := s.Store.Logs().ListByTrip(ctx, trip.ID)
	if err != nil {
		return domain.TripDetail{}, fmt.Errorf("service.TripService.Get: %w", err)
	}
	byDest := make(map[uuid.UUID]domain.LogEntry, len(logs))
	for _, l := range logs {
		byDest[l.DestinationID] = l
	}
	return domain.TripDetail{Trip: trip, Destinations: dests, Logs: byDest}, nil
}

// List returns one page of trips visible to the actor. Fleet administrators
// see every trip; everyone else sees trips they drive or approve.
func (s *TripService) List(ctx context.Context, actor domain.Actor, f domain.TripFilter, p domain.PaginationParams) (domain.Page[domain.Trip], error) {
	if !actor.Has(domain.CapFleetAdmin) {
		id := actor.ID
		f.ParticipantID = &id
	}
	if f.Status != nil && !f.Status.Valid() {
		return domain.Page[domain.Trip]{}, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, *f.Status)
	}
	if f.ApprovalStatus != nil && !f.ApprovalStatus.Valid() {
		return domain.Page[domain.Trip]{}, fmt.Errorf("%w: unknown approval_status %q", domain.ErrValidation, *f.ApprovalStatus)
	}
	trips, total, err := s.Store.Trips().List(ctx, f, p)
	if err != nil {
		return domain.Page[domain.Trip]{}, fmt.Errorf("service.TripService.List: %w", err)
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	return domain.Page[domain.Trip]{Items: trips, Total: total, PaginationParams: p}, nil
}

// Tombstone soft-deletes a trip and its destinations. A trip with a
// destination in progress cannot be removed.
func (s *TripService) Tombstone(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (err error) {
	defer func() { s.Observer.Transition("trip.tombstone", err) }()

	if !actor.Has(domain.CapFleetAdmin) {
		return forbidden("trip", tripID, "only fleet administrators may delete trips")
	}
	err = s.Store.WithinTx(ctx, func(st repo.Store) error {
		trip, err := st.Trips().GetForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if trip.Status == domain.TripInProgress {
			return &domain.StateError{
				Kind:   domain.ErrPrecondition,
				Entity: "trip",
				ID:     trip.ID,
				State:  string(trip.Status),
				Reason: "trips in progress cannot be deleted",
			}
		}
		dests, err := st.Destinations().ListByTrip(ctx, trip.ID)
		if err != nil {
			return err
		}

		now := s.Now()
		trip.DeletedAt = &now
		plan := new(domain.Plan).UpdateTrip(trip)
		for _, d := range dests {
			d.DeletedAt = &now
			plan.UpdateDestination(d)
		}
		return repo.Apply(ctx, st, plan)
	})
	if err != nil {
		return fmt.Errorf("service.TripService.Tombstone: %w", err)
	}
	s.audit(ctx, actor, "deleted trip %s", tripID)
	return nil
}
