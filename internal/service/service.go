// Package service contains the business logic of the trip log.
// Services validate input, enforce the trip/destination/log state machines
// and orchestrate repo calls inside a single transaction per operation.
// No SQL lives here: services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/triplog/internal/domain"
	"github.com/pkordes/triplog/internal/repo"
)

// Directory is the read-only organization lookup the services consult.
// repo.DirectoryRepo satisfies it.
type Directory interface {
	Member(ctx context.Context, id uuid.UUID) (domain.Member, error)
	VehicleHome(ctx context.Context, vehicleID uuid.UUID) (domain.VehicleHome, error)
}

// AuditLogger appends an audit record. It is fire-and-forget: implementations
// log their own failures and never report them back.
type AuditLogger interface {
	Record(ctx context.Context, actorID uuid.UUID, role, description string)
}

// Notifier delivers best-effort notifications. Errors are logged by the
// service and never fail the operation that triggered them.
type Notifier interface {
	NotifyApprover(ctx context.Context, officerID, tripID uuid.UUID, message string) error
	NotifyDriver(ctx context.Context, driverID, tripID uuid.UUID, message string) error
}

// Observer is told the outcome of every lifecycle operation.
type Observer interface {
	Transition(operation string, err error)
}

// Deps holds the collaborators shared by TripService and DestinationService.
// Store and Directory are required; the rest default to no-ops.
type Deps struct {
	Store     repo.Transactor
	Directory Directory
	Audit     AuditLogger
	Notifier  Notifier
	Observer  Observer
	Policy    domain.ContinuityPolicy
	Logger    *slog.Logger

	// Now and NewID are replaced in tests for deterministic output.
	Now   func() time.Time
	NewID func() uuid.UUID
}

func (d Deps) withDefaults() Deps {
	if d.Audit == nil {
		d.Audit = nopAudit{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.New
	}
	return d
}

// notifyApprover sends a notification and logs, rather than returns, failures.
func (d Deps) notifyApprover(ctx context.Context, officerID, tripID uuid.UUID, message string) {
	if err := d.Notifier.NotifyApprover(ctx, officerID, tripID, message); err != nil {
		d.Logger.WarnContext(ctx, "approver notification failed",
			"officer_id", officerID, "trip_id", tripID, "error", err)
	}
}

func (d Deps) notifyDriver(ctx context.Context, driverID, tripID uuid.UUID, message string) {
	if err := d.Notifier.NotifyDriver(ctx, driverID, tripID, message); err != nil {
		d.Logger.WarnContext(ctx, "driver notification failed",
			"driver_id", driverID, "trip_id", tripID, "error", err)
	}
}

func (d Deps) audit(ctx context.Context, actor domain.Actor, format string, args ...any) {
	d.Audit.Record(ctx, actor.ID, actor.Role(), fmt.Sprintf(format, args...))
}

// lookupMember returns nil, not an error, for unknown members so that the
// approval rules can report them as a validation failure.
func (d Deps) lookupMember(ctx context.Context, id *uuid.UUID) (*domain.Member, error) {
	if id == nil {
		return nil, nil
	}
	m, err := d.Directory.Member(ctx, *id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, uuid.UUID, string, string) {}

type nopNotifier struct{}

func (nopNotifier) NotifyApprover(context.Context, uuid.UUID, uuid.UUID, string) error { return nil }
func (nopNotifier) NotifyDriver(context.Context, uuid.UUID, uuid.UUID, string) error   { return nil }

type nopObserver struct{}

func (nopObserver) Transition(string, error) {}

func forbidden(entity string, id uuid.UUID, reason string) error {
	return &domain.StateError{Kind: domain.ErrForbidden, Entity: entity, ID: id, Reason: reason}
}
