package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ApprovalRequest is the input to the approval decision made at trip creation.
// Officer is the directory record for OfficerID; the caller looks it up and
// leaves it nil when OfficerID is nil or unknown.
type ApprovalRequest struct {
	PreApproved bool
	Driver      Actor
	OfficerID   *uuid.UUID
	Officer     *Member
}

// ApprovalDecision is either auto-approved or awaiting the named officer.
type ApprovalDecision struct {
	AutoApproved bool
	OfficerID    *uuid.UUID
}

// InitialStatus is the approval status new trips and destinations start in.
func (d ApprovalDecision) InitialStatus() ApprovalStatus {
	if d.AutoApproved {
		return ApprovalApproved
	}
	return ApprovalPending
}

// DecideApproval decides whether a new trip needs sign-off.
//
// Pre-approved trips require the driver to hold the pre-approved capability
// and carry no approving officer. Every other trip needs an approving officer
// from the driver's own sub-unit.
func DecideApproval(req ApprovalRequest) (ApprovalDecision, error) {
	if req.PreApproved {
		if !req.Driver.Has(CapPreApprovedDriver) {
			return ApprovalDecision{}, fmt.Errorf("%w: driver is not a pre-approved driver", ErrValidation)
		}
		return ApprovalDecision{AutoApproved: true}, nil
	}

	if req.OfficerID == nil {
		return ApprovalDecision{}, fmt.Errorf("%w: approving_officer_id is required", ErrValidation)
	}
	if req.Officer == nil {
		return ApprovalDecision{}, fmt.Errorf("%w: approving officer %s does not exist", ErrValidation, *req.OfficerID)
	}
	if req.Officer.ID == req.Driver.ID {
		return ApprovalDecision{}, fmt.Errorf("%w: a driver cannot approve their own trip", ErrValidation)
	}
	if !req.Officer.Has(CapApprovingOfficer) {
		return ApprovalDecision{}, fmt.Errorf("%w: %s is not an approving officer", ErrValidation, req.Officer.ID)
	}
	if req.Officer.SubUnitID != req.Driver.SubUnitID {
		return ApprovalDecision{}, fmt.Errorf("%w: approving officer is not in the driver's sub-unit", ErrValidation)
	}
	officer := req.Officer.ID
	return ApprovalDecision{OfficerID: &officer}, nil
}

// CheckDecision validates that officerID may decide an approval currently in
// status current. entity and id only feed the error message.
func CheckDecision(entity string, id uuid.UUID, designated *uuid.UUID, current ApprovalStatus, officerID uuid.UUID) error {
	if designated == nil || *designated != officerID {
		return stateErr(ErrForbidden, entity, id, "", "caller is not the designated approving officer")
	}
	if current.Decided() {
		return stateErr(ErrConflict, entity, id, string(current), "already decided")
	}
	return nil
}
