package handler

import (
	"net/http"

	"github.com/pkordes/triplog/internal/service"
)

// StartDestination handles POST /destinations/{destinationId}/start.
func (s *Server) StartDestination(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "destinationId")
	if !ok {
		return
	}
	var body startRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	if body.StartOdometer == nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "start_odometer is required")
		return
	}
	in := service.StartInput{StartOdometer: *body.StartOdometer}
	if body.StartTime != nil {
		in.StartTime = *body.StartTime
	}

	dest, entry, err := s.dests.Start(r.Context(), actor, id, in)
	if err != nil {
		s.fail(w, r, err, "destination")
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{Destination: destinationToResponse(dest), Log: logToResponse(entry)})
}

// EndDestination handles POST /destinations/{destinationId}/end.
func (s *Server) EndDestination(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "destinationId")
	if !ok {
		return
	}
	var body endRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	if body.Odometer == nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "odometer is required")
		return
	}

	dest, entry, err := s.dests.End(r.Context(), actor, id, body.toInput())
	if err != nil {
		s.fail(w, r, err, "destination")
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{Destination: destinationToResponse(dest), Log: logToResponse(entry)})
}

// AddAdHocDestination handles POST /trips/{tripId}/destinations.
func (s *Server) AddAdHocDestination(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	tripID, ok := pathID(w, r, "tripId")
	if !ok {
		return
	}
	var body adHocRequest
	if !decodeBody(w, r, &body, false) {
		return
	}

	dest, err := s.dests.AddAdHoc(r.Context(), actor, tripID, service.AdHocInput{
		To:      body.To,
		Purpose: body.Purpose,
		Detail:  body.Detail,
	})
	if err != nil {
		s.fail(w, r, err, "trip")
		return
	}
	writeJSON(w, http.StatusCreated, destinationToResponse(dest))
}

// ApproveDestination handles POST /destinations/{destinationId}/approve.
func (s *Server) ApproveDestination(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "destinationId")
	if !ok {
		return
	}

	dest, err := s.dests.ApproveAdHoc(r.Context(), actor, id)
	if err != nil {
		s.fail(w, r, err, "destination")
		return
	}
	writeJSON(w, http.StatusOK, destinationToResponse(dest))
}

// RejectDestination handles POST /destinations/{destinationId}/reject.
func (s *Server) RejectDestination(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "destinationId")
	if !ok {
		return
	}

	dest, err := s.dests.RejectAdHoc(r.Context(), actor, id)
	if err != nil {
		s.fail(w, r, err, "destination")
		return
	}
	writeJSON(w, http.StatusOK, destinationToResponse(dest))
}
