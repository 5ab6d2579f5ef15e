// Package handler implements the HTTP handlers for the trip log API.
// Handlers are thin: they decode the request, resolve the caller from the
// context, call one service operation and map the result or error to JSON.
// Methods are split into resource files (trip.go, destination.go, vehicle.go)
// but all share the same Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/triplog/internal/domain"
	"github.com/pkordes/triplog/internal/middleware"
	"github.com/pkordes/triplog/internal/service"
)

// TripServicer defines the trip operations the handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type TripServicer interface {
	Create(ctx context.Context, actor domain.Actor, in service.CreateTripInput) (domain.TripDetail, error)
	Get(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (domain.TripDetail, error)
	List(ctx context.Context, actor domain.Actor, f domain.TripFilter, p domain.PaginationParams) (domain.Page[domain.Trip], error)
	Approve(ctx context.Context, actor domain.Actor, tripID uuid.UUID, notes string) (domain.Trip, error)
	Reject(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (domain.Trip, error)
	Complete(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (domain.Trip, error)
	Cancel(ctx context.Context, actor domain.Actor, tripID uuid.UUID) (domain.Trip, error)
	ForceComplete(ctx context.Context, actor domain.Actor, tripID uuid.UUID, in service.ForceCompleteInput) (service.ForceCompleteResult, error)
	Tombstone(ctx context.Context, actor domain.Actor, tripID uuid.UUID) error
}

// DestinationServicer defines the destination operations the handlers depend on.
type DestinationServicer interface {
	Start(ctx context.Context, actor domain.Actor, destinationID uuid.UUID, in service.StartInput) (domain.Destination, domain.LogEntry, error)
	End(ctx context.Context, actor domain.Actor, destinationID uuid.UUID, in service.EndInput) (domain.Destination, domain.LogEntry, error)
	AddAdHoc(ctx context.Context, actor domain.Actor, tripID uuid.UUID, in service.AdHocInput) (domain.Destination, error)
	ApproveAdHoc(ctx context.Context, actor domain.Actor, destinationID uuid.UUID) (domain.Destination, error)
	RejectAdHoc(ctx context.Context, actor domain.Actor, destinationID uuid.UUID) (domain.Destination, error)
}

// LogServicer defines the log continuity read the handlers depend on.
type LogServicer interface {
	LastOdometer(ctx context.Context, vehicleID uuid.UUID) (*int, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	trips   TripServicer
	dests   DestinationServicer
	logs    LogServicer
	openapi []byte
	log     *slog.Logger
}

// NewServer constructs the Server with all its dependencies. openapi is the
// document served at /openapi.yaml. A nil logger means slog.Default().
func NewServer(trips TripServicer, dests DestinationServicer, logs LogServicer, openapi []byte, log *slog.Logger) *Server {
	return &Server{trips: trips, dests: dests, logs: logs, openapi: openapi, log: logger(log)}
}

// Routes returns the API router. /healthz and /openapi.yaml are public;
// every other route sits behind auth, which must place a domain.Actor in the
// request context (see middleware.NewAuthenticator).
func (s *Server) Routes(auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Route("/trips", func(r chi.Router) {
			r.Post("/", s.CreateTrip)
			r.Post("/without-safety-form", s.CreateTripWithoutSafetyForm)
			r.Get("/", s.ListTrips)

			r.Route("/{tripId}", func(r chi.Router) {
				r.Get("/", s.GetTrip)
				r.Delete("/", s.DeleteTrip)
				r.Post("/approve", s.ApproveTrip)
				r.Post("/reject", s.RejectTrip)
				r.Post("/complete", s.CompleteTrip)
				r.Post("/cancel", s.CancelTrip)
				r.Post("/force-complete", s.ForceCompleteTrip)
				r.Post("/destinations", s.AddAdHocDestination)
			})
		})

		r.Route("/destinations/{destinationId}", func(r chi.Router) {
			r.Post("/start", s.StartDestination)
			r.Post("/end", s.EndDestination)
			r.Post("/approve", s.ApproveDestination)
			r.Post("/reject", s.RejectDestination)
		})

		r.Get("/vehicles/{vehicleId}/odometer", s.GetVehicleOdometer)
	})
	return r
}

// actor returns the authenticated caller. It answers 401 itself when the
// context carries none, which only happens when auth was not wired.
func (s *Server) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	a, ok := middleware.ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	}
	return a, ok
}

// pathID parses the named chi URL parameter as a UUID, answering 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		requestError(w, "invalid format for parameter "+name)
		return uuid.Nil, false
	}
	return id, true
}
