package handler

import "net/http"

// GetVehicleOdometer handles GET /vehicles/{vehicleId}/odometer. odometer is
// null when the vehicle has no closed log entry yet.
func (s *Server) GetVehicleOdometer(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.actor(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "vehicleId")
	if !ok {
		return
	}

	odo, err := s.logs.LastOdometer(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "vehicle")
		return
	}
	writeJSON(w, http.StatusOK, odometerResponse{VehicleID: id, Odometer: odo})
}
