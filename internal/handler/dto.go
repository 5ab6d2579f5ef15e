package handler

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/triplog/internal/domain"
	"github.com/pkordes/triplog/internal/service"
)

// --- request bodies ---------------------------------------------------------

type destinationRequest struct {
	To      string `json:"to"`
	Purpose string `json:"purpose"`
}

type createTripRequest struct {
	VehicleID     openapi_types.UUID   `json:"vehicle_id"`
	TripDate      openapi_types.Date   `json:"trip_date"`
	StartOdometer *int                 `json:"start_odometer"`
	Destinations  []destinationRequest `json:"destinations"`
	ApproverID    *openapi_types.UUID  `json:"approver_id,omitempty"`
	PreApproved   bool                 `json:"pre_approved"`
	SafetyForm    *domain.SafetyForm   `json:"safety_form,omitempty"`
}

type approveRequest struct {
	SafetyNotes string `json:"safety_notes"`
}

type startRequest struct {
	StartOdometer *int       `json:"start_odometer"`
	StartTime     *time.Time `json:"start_time,omitempty"`
}

type endRequest struct {
	EndTime      *time.Time `json:"end_time"`
	Odometer     *int       `json:"odometer"`
	Distance     *int       `json:"distance,omitempty"`
	RunningTime  int        `json:"running_time"`
	FuelReceived float64    `json:"fuel_received"`
	FuelType     string     `json:"fuel_type"`
	Purpose      string     `json:"purpose"`
	Remarks      string     `json:"remarks"`
	Detail       string     `json:"detail"`
}

type adHocRequest struct {
	To      string `json:"to"`
	Purpose string `json:"purpose"`
	Detail  string `json:"detail"`
}

type forceCompleteRequest struct {
	FinalOdometer       *int       `json:"final_odometer"`
	EndTime             *time.Time `json:"end_time"`
	StartTime           *time.Time `json:"start_time,omitempty"`
	RunningTime         int        `json:"running_time"`
	FuelReceived        float64    `json:"fuel_received"`
	FuelType            string     `json:"fuel_type"`
	Remarks             string     `json:"remarks"`
	NoActiveDestination bool       `json:"no_active_destination"`
}

// --- response bodies --------------------------------------------------------

type tripResponse struct {
	ID              openapi_types.UUID    `json:"id"`
	DriverID        openapi_types.UUID    `json:"driver_id"`
	VehicleID       openapi_types.UUID    `json:"vehicle_id"`
	ApproverID      *openapi_types.UUID   `json:"approver_id"`
	TripDate        openapi_types.Date    `json:"trip_date"`
	StartOdometer   int                   `json:"start_odometer"`
	CurrentOdometer int                   `json:"current_odometer"`
	Status          domain.TripStatus     `json:"status"`
	ApprovalStatus  domain.ApprovalStatus `json:"approval_status"`
	PreApproved     bool                  `json:"pre_approved"`
	SafetyForm      *domain.SafetyForm    `json:"safety_form,omitempty"`
	EndedAt         *time.Time            `json:"ended_at"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type logEntryResponse struct {
	ID            openapi_types.UUID `json:"id"`
	DestinationID openapi_types.UUID `json:"destination_id"`
	StartTime     time.Time          `json:"start_time"`
	EndTime       *time.Time         `json:"end_time"`
	StartOdometer int                `json:"start_odometer"`
	Odometer      int                `json:"odometer"`
	Distance      int                `json:"distance"`
	RunningTime   int                `json:"running_time"`
	FuelReceived  float64            `json:"fuel_received"`
	FuelType      string             `json:"fuel_type,omitempty"`
	Purpose       string             `json:"purpose,omitempty"`
	Remarks       string             `json:"remarks,omitempty"`
}

type destinationResponse struct {
	ID             openapi_types.UUID       `json:"id"`
	TripID         openapi_types.UUID       `json:"trip_id"`
	Sequence       int                      `json:"sequence"`
	To             string                   `json:"to"`
	Purpose        string                   `json:"purpose,omitempty"`
	Status         domain.DestinationStatus `json:"status"`
	ApprovalStatus domain.ApprovalStatus    `json:"approval_status"`
	AdHoc          bool                     `json:"ad_hoc"`
	ApproverID     *openapi_types.UUID      `json:"approver_id"`
	Detail         string                   `json:"detail,omitempty"`
	Log            *logEntryResponse        `json:"log,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

type tripDetailResponse struct {
	tripResponse
	Destinations []destinationResponse `json:"destinations"`
}

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type tripListResponse struct {
	Data       []tripResponse `json:"data"`
	Pagination pagination     `json:"pagination"`
}

type transitionResponse struct {
	Destination destinationResponse `json:"destination"`
	Log         logEntryResponse    `json:"log"`
}

type forceCompleteResponse struct {
	Trip      tripResponse         `json:"trip"`
	ClosedLog *logEntryResponse    `json:"closed_log,omitempty"`
	Cancelled []openapi_types.UUID `json:"cancelled_destination_ids"`
	Changed   bool                 `json:"changed"`
}

type odometerResponse struct {
	VehicleID openapi_types.UUID `json:"vehicle_id"`
	Odometer  *int               `json:"odometer"`
}

// --- mapping helpers --------------------------------------------------------

func (b createTripRequest) toInput(withSafety bool) service.CreateTripInput {
	in := service.CreateTripInput{
		VehicleID:   b.VehicleID,
		TripDate:    b.TripDate.Time,
		ApproverID:  b.ApproverID,
		PreApproved: b.PreApproved,
	}
	if b.StartOdometer != nil {
		in.StartOdometer = *b.StartOdometer
	}
	for _, d := range b.Destinations {
		in.Destinations = append(in.Destinations, domain.DestinationInput{To: d.To, Purpose: d.Purpose})
	}
	if withSafety && b.SafetyForm != nil {
		form := *b.SafetyForm
		// Notes belong to the approving officer, never the submitter.
		form.ApproverNotes = ""
		in.Safety = &form
	}
	return in
}

func (b endRequest) toInput() service.EndInput {
	in := service.EndInput{
		ClosingLog: domain.ClosingLog{
			Distance:     b.Distance,
			RunningTime:  b.RunningTime,
			FuelReceived: b.FuelReceived,
			FuelType:     b.FuelType,
			Purpose:      b.Purpose,
			Remarks:      b.Remarks,
		},
		Detail: b.Detail,
	}
	if b.EndTime != nil {
		in.EndTime = *b.EndTime
	}
	if b.Odometer != nil {
		in.Odometer = *b.Odometer
	}
	return in
}

func (b forceCompleteRequest) toInput() service.ForceCompleteInput {
	in := service.ForceCompleteInput{
		StartTime:           b.StartTime,
		RunningTime:         b.RunningTime,
		FuelReceived:        b.FuelReceived,
		FuelType:            b.FuelType,
		Remarks:             b.Remarks,
		NoActiveDestination: b.NoActiveDestination,
	}
	if b.FinalOdometer != nil {
		in.FinalOdometer = *b.FinalOdometer
	}
	if b.EndTime != nil {
		in.EndTime = *b.EndTime
	}
	return in
}

func tripToResponse(t domain.Trip) tripResponse {
	return tripResponse{
		ID:              t.ID,
		DriverID:        t.DriverID,
		VehicleID:       t.VehicleID,
		ApproverID:      t.ApproverID,
		TripDate:        openapi_types.Date{Time: t.TripDate},
		StartOdometer:   t.StartOdometer,
		CurrentOdometer: t.CurrentOdometer,
		Status:          t.Status,
		ApprovalStatus:  t.ApprovalStatus,
		PreApproved:     t.PreApproved,
		SafetyForm:      t.Safety,
		EndedAt:         t.EndedAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func logToResponse(l domain.LogEntry) logEntryResponse {
	return logEntryResponse{
		ID:            l.ID,
		DestinationID: l.DestinationID,
		StartTime:     l.StartTime,
		EndTime:       l.EndTime,
		StartOdometer: l.StartOdometer,
		Odometer:      l.Odometer,
		Distance:      l.Distance,
		RunningTime:   l.RunningTime,
		FuelReceived:  l.FuelReceived,
		FuelType:      l.FuelType,
		Purpose:       l.Purpose,
		Remarks:       l.Remarks,
	}
}

func destinationToResponse(d domain.Destination) destinationResponse {
	return destinationResponse{
		ID:             d.ID,
		TripID:         d.TripID,
		Sequence:       d.Sequence,
		To:             d.To,
		Purpose:        d.Purpose,
		Status:         d.Status,
		ApprovalStatus: d.ApprovalStatus,
		AdHoc:          d.AdHoc,
		ApproverID:     d.ApproverID,
		Detail:         d.Detail,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func detailToResponse(d domain.TripDetail) tripDetailResponse {
	resp := tripDetailResponse{
		tripResponse: tripToResponse(d.Trip),
		Destinations: make([]destinationResponse, len(d.Destinations)),
	}
	for i, dest := range d.Destinations {
		resp.Destinations[i] = destinationToResponse(dest)
		if l, ok := d.Logs[dest.ID]; ok {
			lr := logToResponse(l)
			resp.Destinations[i].Log = &lr
		}
	}
	return resp
}

func forceCompleteToResponse(r service.ForceCompleteResult) forceCompleteResponse {
	resp := forceCompleteResponse{
		Trip:      tripToResponse(r.Trip),
		Cancelled: make([]openapi_types.UUID, len(r.Cancelled)),
		Changed:   r.Changed,
	}
	copy(resp.Cancelled, r.Cancelled)
	if r.Closed != nil {
		lr := logToResponse(*r.Closed)
		resp.ClosedLog = &lr
	}
	return resp
}
