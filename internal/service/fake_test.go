package service_test

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/triplog/internal/domain"
	"github.com/pkordes/triplog/internal/repo"
	"github.com/pkordes/triplog/internal/service"
)

// memStore is an in-memory repo.Transactor. WithinTx works on a copy of the
// data and swaps it in only when fn succeeds, so a failed plan leaves no
// trace. Transactions are serialized by a single mutex, which stands in for
// the row and advisory locks Postgres would take.
type memStore struct {
	mu   sync.Mutex
	data *memData

	// failures makes the named operation ("trips.update", "logs.insert", ...)
	// return the given error.
	failures map[string]error
}

type memData struct {
	trips map[uuid.UUID]domain.Trip
	dests map[uuid.UUID]domain.Destination
	logs  map[uuid.UUID]domain.LogEntry
}

func newMemStore() *memStore {
	return &memStore{
		data: &memData{
			trips: map[uuid.UUID]domain.Trip{},
			dests: map[uuid.UUID]domain.Destination{},
			logs:  map[uuid.UUID]domain.LogEntry{},
		},
		failures: map[string]error{},
	}
}

func (d *memData) clone() *memData {
	return &memData{trips: maps.Clone(d.trips), dests: maps.Clone(d.dests), logs: maps.Clone(d.logs)}
}

func (s *memStore) Trips() repo.TripRepo               { return memTrips{memView{s: s}} }
func (s *memStore) Destinations() repo.DestinationRepo { return memDests{memView{s: s}} }
func (s *memStore) Logs() repo.LogRepo                 { return memLogs{memView{s: s}} }

func (s *memStore) WithinTx(_ context.Context, fn func(repo.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.data.clone()
	if err := fn(memView{s: s, tx: tx}); err != nil {
		return err
	}
	s.data = tx
	return nil
}

var _ repo.Transactor = (*memStore)(nil)

// memView is either the committed data (tx nil, reads take the mutex) or
// the working copy of one transaction.
type memView struct {
	s  *memStore
	tx *memData
}

func (v memView) Trips() repo.TripRepo               { return memTrips{v} }
func (v memView) Destinations() repo.DestinationRepo { return memDests{v} }
func (v memView) Logs() repo.LogRepo                 { return memLogs{v} }

func (v memView) enter() (*memData, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.s.mu.Lock()
	return v.s.data, v.s.mu.Unlock
}

func (v memView) fail(op string) error { return v.s.failures[op] }

// ---- trips -----------------------------------------------------------------

type memTrips struct{ v memView }

func (r memTrips) GetByID(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	d, done := r.v.enter()
	defer done()
	t, ok := d.trips[id]
	if !ok || t.Tombstoned() {
		return domain.Trip{}, domain.ErrNotFound
	}
	return t, nil
}

func (r memTrips) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return r.GetByID(ctx, id)
}

func (r memTrips) List(_ context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	d, done := r.v.enter()
	defer done()
	var out []domain.Trip
	for _, t := range d.trips {
		switch {
		case t.Tombstoned():
		case f.ParticipantID != nil && !t.OwnedBy(*f.ParticipantID) && !t.DesignatedTo(*f.ParticipantID):
		case f.DriverID != nil && t.DriverID != *f.DriverID:
		case f.VehicleID != nil && t.VehicleID != *f.VehicleID:
		case f.Status != nil && t.Status != *f.Status:
		case f.ApprovalStatus != nil && t.ApprovalStatus != *f.ApprovalStatus:
		default:
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b domain.Trip) int { return b.TripDate.Compare(a.TripDate) })
	total := int64(len(out))
	lo := min(p.Offset(), len(out))
	hi := min(lo+p.Limit, len(out))
	return out[lo:hi], total, nil
}

func (r memTrips) ActiveOnVehicle(_ context.Context, vehicleID uuid.UUID) ([]uuid.UUID, error) {
	d, done := r.v.enter()
	defer done()
	var ids []uuid.UUID
	for _, t := range d.trips {
		if t.VehicleID == vehicleID && t.Status == domain.TripInProgress && !t.Tombstoned() {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (r memTrips) LockVehicle(context.Context, uuid.UUID) error { return r.v.fail("trips.lock") }

func (r memTrips) LatestTripDate(_ context.Context, vehicleID uuid.UUID) (*time.Time, error) {
	d, done := r.v.enter()
	defer done()
	var latest *time.Time
	for _, t := range d.trips {
		if t.VehicleID == vehicleID && !t.Tombstoned() && (latest == nil || t.TripDate.After(*latest)) {
			date := t.TripDate
			latest = &date
		}
	}
	return latest, nil
}

func (r memTrips) Insert(_ context.Context, t domain.Trip) error {
	if err := r.v.fail("trips.insert"); err != nil {
		return err
	}
	d, done := r.v.enter()
	defer done()
	d.trips[t.ID] = t
	return nil
}

func (r memTrips) Update(_ context.Context, t domain.Trip) error {
	if err := r.v.fail("trips.update"); err != nil {
		return err
	}
	d, done := r.v.enter()
	defer done()
	if _, ok := d.trips[t.ID]; !ok {
		return domain.ErrNotFound
	}
	if t.Status == domain.TripInProgress {
		for _, other := range d.trips {
			if other.ID != t.ID && other.VehicleID == t.VehicleID && other.Status == domain.TripInProgress {
				return &domain.StateError{Kind: domain.ErrPrecondition, Entity: "vehicle", ID: t.VehicleID, Reason: "busy"}
			}
		}
	}
	d.trips[t.ID] = t
	return nil
}

// ---- destinations ----------------------------------------------------------

type memDests struct{ v memView }

func (r memDests) GetByID(_ context.Context, id uuid.UUID) (domain.Destination, error) {
	d, done := r.v.enter()
	defer done()
	dest, ok := d.dests[id]
	if !ok || dest.Tombstoned() {
		return domain.Destination{}, domain.ErrNotFound
	}
	return dest, nil
}

func (r memDests) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Destination, error) {
	return r.GetByID(ctx, id)
}

func (r memDests) ListByTrip(_ context.Context, tripID uuid.UUID) ([]domain.Destination, error) {
	d, done := r.v.enter()
	defer done()
	out := []domain.Destination{}
	for _, dest := range d.dests {
		if dest.TripID == tripID && !dest.Tombstoned() {
			out = append(out, dest)
		}
	}
	slices.SortFunc(out, func(a, b domain.Destination) int { return a.Sequence - b.Sequence })
	return out, nil
}

func (r memDests) Insert(_ context.Context, dest domain.Destination) error {
	if err := r.v.fail("destinations.insert"); err != nil {
		return err
	}
	d, done := r.v.enter()
	defer done()
	d.dests[dest.ID] = dest
	return nil
}

func (r memDests) Update(_ context.Context, dest domain.Destination) error {
	if err := r.v.fail("destinations.update"); err != nil {
		return err
	}
	d, done := r.v.enter()
	defer done()
	if _, ok := d.dests[dest.ID]; !ok {
		return domain.ErrNotFound
	}
	if dest.Status == domain.DestinationInProgress {
		for _, other := range d.dests {
			if other.ID != dest.ID && other.TripID == dest.TripID && other.Status == domain.DestinationInProgress {
				return &domain.StateError{Kind: domain.ErrPrecondition, Entity: "trip", ID: dest.TripID, Reason: "busy"}
			}
		}
	}
	d.dests[dest.ID] = dest
	return nil
}

// ---- logs ------------------------------------------------------------------

type memLogs struct{ v memView }

func (r memLogs) GetByDestination(_ context.Context, destinationID uuid.UUID) (domain.LogEntry, error) {
	d, done := r.v.enter()
	defer done()
	for _, l := range d.logs {
		if l.DestinationID == destinationID {
			return l, nil
		}
	}
	return domain.LogEntry{}, domain.ErrNotFound
}

func (r memLogs) ListByTrip(_ context.Context, tripID uuid.UUID) ([]domain.LogEntry, error) {
	d, done := r.v.enter()
	defer done()
	out := []domain.LogEntry{}
	for _, l := range d.logs {
		if dest, ok := d.dests[l.DestinationID]; ok && dest.TripID == tripID && !dest.Tombstoned() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r memLogs) LastClosedOdometer(_ context.Context, vehicleID uuid.UUID) (*int, error) {
	d, done := r.v.enter()
	defer done()
	var last *domain.LogEntry
	for _, l := range d.logs {
		if !l.Closed() {
			continue
		}
		dest := d.dests[l.DestinationID]
		if trip := d.trips[dest.TripID]; trip.VehicleID != vehicleID || trip.Tombstoned() || dest.Tombstoned() {
			continue
		}
		if last == nil || l.EndTime.After(*last.EndTime) {
			last = &l
		}
	}
	if last == nil {
		return nil, nil
	}
	return &last.Odometer, nil
}

func (r memLogs) Insert(_ context.Context, l domain.LogEntry) error {
	if err := r.v.fail("logs.insert"); err != nil {
		return err
	}
	d, done := r.v.enter()
	defer done()
	for _, existing := range d.logs {
		if existing.DestinationID == l.DestinationID {
			return domain.ErrConflict
		}
	}
	d.logs[l.ID] = l
	return nil
}

func (r memLogs) Update(_ context.Context, l domain.LogEntry) error {
	if err := r.v.fail("logs.update"); err != nil {
		return err
	}
	d, done := r.v.enter()
	defer done()
	if _, ok := d.logs[l.ID]; !ok {
		return domain.ErrNotFound
	}
	d.logs[l.ID] = l
	return nil
}

// ---- collaborators ---------------------------------------------------------

// mockDirectory is a hand-written test double for service.Directory.
type mockDirectory struct {
	members  map[uuid.UUID]domain.Member
	vehicles map[uuid.UUID]domain.VehicleHome
}

func (m *mockDirectory) Member(_ context.Context, id uuid.UUID) (domain.Member, error) {
	if mem, ok := m.members[id]; ok {
		return mem, nil
	}
	return domain.Member{}, domain.ErrNotFound
}

func (m *mockDirectory) VehicleHome(_ context.Context, id uuid.UUID) (domain.VehicleHome, error) {
	if v, ok := m.vehicles[id]; ok {
		return v, nil
	}
	return domain.VehicleHome{}, domain.ErrNotFound
}

var _ service.Directory = (*mockDirectory)(nil)

type notification struct {
	To      uuid.UUID
	TripID  uuid.UUID
	Message string
}

// recordingNotifier captures notifications; err, when set, is returned from
// every call after recording it.
type recordingNotifier struct {
	mu       sync.Mutex
	approver []notification
	driver   []notification
	err      error
}

func (n *recordingNotifier) NotifyApprover(_ context.Context, officerID, tripID uuid.UUID, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approver = append(n.approver, notification{officerID, tripID, msg})
	return n.err
}

func (n *recordingNotifier) NotifyDriver(_ context.Context, driverID, tripID uuid.UUID, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.driver = append(n.driver, notification{driverID, tripID, msg})
	return n.err
}

var _ service.Notifier = (*recordingNotifier)(nil)

type recordingAudit struct {
	mu      sync.Mutex
	entries []string
}

func (a *recordingAudit) Record(_ context.Context, _ uuid.UUID, role, description string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, role+": "+description)
}

var _ service.AuditLogger = (*recordingAudit)(nil)

type recordingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (o *recordingObserver) Transition(op string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = map[string]int{}
	}
	o.calls[op]++
}

var _ service.Observer = (*recordingObserver)(nil)
