package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/triplog/internal/domain"
	"github.com/pkordes/triplog/internal/handler"
	"github.com/pkordes/triplog/internal/middleware"
	"github.com/pkordes/triplog/internal/service"
)

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	create        func(ctx context.Context, actor domain.Actor, in service.CreateTripInput) (domain.TripDetail, error)
	get           func(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.TripDetail, error)
	list          func(ctx context.Context, actor domain.Actor, f domain.TripFilter, p domain.PaginationParams) (domain.Page[domain.Trip], error)
	approve       func(ctx context.Context, actor domain.Actor, id uuid.UUID, notes string) (domain.Trip, error)
	reject        func(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error)
	complete      func(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error)
	cancel        func(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error)
	forceComplete func(ctx context.Context, actor domain.Actor, id uuid.UUID, in service.ForceCompleteInput) (service.ForceCompleteResult, error)
	tombstone     func(ctx context.Context, actor domain.Actor, id uuid.UUID) error
}

func (m *mockTripServicer) Create(ctx context.Context, a domain.Actor, in service.CreateTripInput) (domain.TripDetail, error) {
	return m.create(ctx, a, in)
}
func (m *mockTripServicer) Get(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.TripDetail, error) {
	return m.get(ctx, a, id)
}
func (m *mockTripServicer) List(ctx context.Context, a domain.Actor, f domain.TripFilter, p domain.PaginationParams) (domain.Page[domain.Trip], error) {
	return m.list(ctx, a, f, p)
}
func (m *mockTripServicer) Approve(ctx context.Context, a domain.Actor, id uuid.UUID, notes string) (domain.Trip, error) {
	return m.approve(ctx, a, id, notes)
}
func (m *mockTripServicer) Reject(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Trip, error) {
	return m.reject(ctx, a, id)
}
func (m *mockTripServicer) Complete(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Trip, error) {
	return m.complete(ctx, a, id)
}
func (m *mockTripServicer) Cancel(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Trip, error) {
	return m.cancel(ctx, a, id)
}
func (m *mockTripServicer) ForceComplete(ctx context.Context, a domain.Actor, id uuid.UUID, in service.ForceCompleteInput) (service.ForceCompleteResult, error) {
	return m.forceComplete(ctx, a, id, in)
}
func (m *mockTripServicer) Tombstone(ctx context.Context, a domain.Actor, id uuid.UUID) error {
	return m.tombstone(ctx, a, id)
}

// compile-time check: mockTripServicer must satisfy handler.TripServicer.
var _ handler.TripServicer = (*mockTripServicer)(nil)

// mockDestinationServicer is a test double for handler.DestinationServicer.
type mockDestinationServicer struct {
	start        func(ctx context.Context, actor domain.Actor, id uuid.UUID, in service.StartInput) (domain.Destination, domain.LogEntry, error)
	end          func(ctx context.Context, actor domain.Actor, id uuid.UUID, in service.EndInput) (domain.Destination, domain.LogEntry, error)
	addAdHoc     func(ctx context.Context, actor domain.Actor, tripID uuid.UUID, in service.AdHocInput) (domain.Destination, error)
	approveAdHoc func(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Destination, error)
	rejectAdHoc  func(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Destination, error)
}

func (m *mockDestinationServicer) Start(ctx context.Context, a domain.Actor, id uuid.UUID, in service.StartInput) (domain.Destination, domain.LogEntry, error) {
	return m.start(ctx, a, id, in)
}
func (m *mockDestinationServicer) End(ctx context.Context, a domain.Actor, id uuid.UUID, in service.EndInput) (domain.Destination, domain.LogEntry, error) {
	return m.end(ctx, a, id, in)
}
func (m *mockDestinationServicer) AddAdHoc(ctx context.Context, a domain.Actor, tripID uuid.UUID, in service.AdHocInput) (domain.Destination, error) {
	return m.addAdHoc(ctx, a, tripID, in)
}
func (m *mockDestinationServicer) ApproveAdHoc(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Destination, error) {
	return m.approveAdHoc(ctx, a, id)
}
func (m *mockDestinationServicer) RejectAdHoc(ctx context.Context, a domain.Actor, id uuid.UUID) (domain.Destination, error) {
	return m.rejectAdHoc(ctx, a, id)
}

// compile-time check: mockDestinationServicer must satisfy handler.DestinationServicer.
var _ handler.DestinationServicer = (*mockDestinationServicer)(nil)

// mockLogServicer is a test double for handler.LogServicer.
type mockLogServicer struct {
	lastOdometer func(ctx context.Context, vehicleID uuid.UUID) (*int, error)
}

func (m *mockLogServicer) LastOdometer(ctx context.Context, vehicleID uuid.UUID) (*int, error) {
	return m.lastOdometer(ctx, vehicleID)
}

// compile-time check: mockLogServicer must satisfy handler.LogServicer.
var _ handler.LogServicer = (*mockLogServicer)(nil)

// ---- helpers ---------------------------------------------------------------

// testActor is the caller every authenticated test request carries.
var testActor = domain.Actor{
	ID:           uuid.MustParse("11111111-1111-1111-1111-111111111111"),
	SubUnitID:    uuid.MustParse("22222222-2222-2222-2222-222222222222"),
	BaseID:       uuid.MustParse("33333333-3333-3333-3333-333333333333"),
	Capabilities: []domain.Capability{domain.CapDriver},
}

// asActor stands in for the JWT authenticator: it places a in the context.
func asActor(a domain.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithActor(r.Context(), a)))
		})
	}
}

type services struct {
	trips *mockTripServicer
	dests *mockDestinationServicer
	logs  *mockLogServicer
}

// newHTTPHandler wires a Server with the given mocks into its chi router,
// authenticated as testActor.
func newHTTPHandler(svc services) http.Handler {
	if svc.trips == nil {
		svc.trips = &mockTripServicer{}
	}
	if svc.dests == nil {
		svc.dests = &mockDestinationServicer{}
	}
	if svc.logs == nil {
		svc.logs = &mockLogServicer{}
	}
	srv := handler.NewServer(svc.trips, svc.dests, svc.logs, []byte("openapi: 3.0.3\n"), nil)
	return srv.Routes(asActor(testActor))
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

// do sends one request through h and returns the recorder.
func do(h http.Handler, method, path string, body *bytes.Buffer) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}
