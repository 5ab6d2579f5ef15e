package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/pkordes/triplog/internal/domain"
)

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	s.createTrip(w, r, true)
}

// CreateTripWithoutSafetyForm handles POST /trips/without-safety-form.
// Any safety_form in the body is ignored.
func (s *Server) CreateTripWithoutSafetyForm(w http.ResponseWriter, r *http.Request) {
	s.createTrip(w, r, false)
}

func (s *Server) createTrip(w http.ResponseWriter, r *http.Request, withSafety bool) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var body createTripRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	if body.StartOdometer == nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "start_odometer is required")
		return
	}

	created, err := s.trips.Create(r.Context(), actor, body.toInput(withSafety))
	if err != nil {
		s.fail(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusCreated, detailToResponse(created))
}

// ListTrips handles GET /trips.
// Supports ?status=, ?approval_status=, ?vehicle_id=, ?page= and ?limit=
// (defaults: page=1, limit=20, max=100). Non-admin callers only see trips
// they drive or approve.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var f domain.TripFilter
	if v := q.Get("status"); v != "" {
		st := domain.TripStatus(v)
		f.Status = &st
	}
	if v := q.Get("approval_status"); v != "" {
		st := domain.ApprovalStatus(v)
		f.ApprovalStatus = &st
	}
	if v := q.Get("vehicle_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			requestError(w, "invalid format for parameter vehicle_id")
			return
		}
		f.VehicleID = &id
	}
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	res, err := s.trips.List(r.Context(), actor, f, domain.NewPaginationParams(page, limit))
	if err != nil {
		s.fail(w, r, err, "trip")
		return
	}

	data := make([]tripResponse, len(res.Items))
	for i, t := range res.Items {
		data[i] = tripToResponse(t)
	}
	writeJSON(w, http.StatusOK, tripListResponse{
		Data: data,
		Pagination: pagination{
			Page:  res.Page,
			Limit: res.Limit,
			Total: res.Total,
		},
	})
}

// GetTrip handles GET /trips/{tripId}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "tripId")
	if !ok {
		return
	}

	detail, err := s.trips.Get(r.Context(), actor, id)
	if err != nil {
		s.fail(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, detailToResponse(detail))
}

// DeleteTrip handles DELETE /trips/{tripId}. The trip is tombstoned, not removed.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "tripId")
	if !ok {
		return
	}

	if err := s.trips.Tombstone(r.Context(), actor, id); err != nil {
		s.fail(w, r, err, "trip")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveTrip handles POST /trips/{tripId}/approve. The body is optional.
func (s *Server) ApproveTrip(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "tripId")
	if !ok {
		return
	}
	var body approveRequest
	if !decodeBody(w, r, &body, true) {
		return
	}

	trip, err := s.trips.Approve(r.Context(), actor, id, body.SafetyNotes)
	if err != nil {
		s.fail(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// RejectTrip handles POST /trips/{tripId}/reject.
func (s *Server) RejectTrip(w http.ResponseWriter, r *http.Request) {
	s.tripTransition(w, r, s.trips.Reject)
}

// CompleteTrip handles POST /trips/{tripId}/complete.
func (s *Server) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	s.tripTransition(w, r, s.trips.Complete)
}

// CancelTrip handles POST /trips/{tripId}/cancel.
func (s *Server) CancelTrip(w http.ResponseWriter, r *http.Request) {
	s.tripTransition(w, r, s.trips.Cancel)
}

// ForceCompleteTrip handles POST /trips/{tripId}/force-complete, which an
// administrator uses to close a trip a driver abandoned and free the vehicle.
func (s *Server) ForceCompleteTrip(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "tripId")
	if !ok {
		return
	}
	var body forceCompleteRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	if body.FinalOdometer == nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "final_odometer is required")
		return
	}

	res, err := s.trips.ForceComplete(r.Context(), actor, id, body.toInput())
	if err != nil {
		s.fail(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, forceCompleteToResponse(res))
}

// tripTransition runs a body-less trip transition and answers with the trip.
func (s *Server) tripTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Trip, error)) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "tripId")
	if !ok {
		return
	}

	trip, err := op(r.Context(), actor, id)
	if err != nil {
		s.fail(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// queryInt parses an optional integer query parameter, answering 400 when
// it is present but not a number.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		requestError(w, "invalid format for parameter "+name)
		return nil, false
	}
	return &n, true
}
