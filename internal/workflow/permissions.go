package workflow

import (
	"github.com/google/uuid"

	"motionify/portal-api/models"
)

// Action names a capability that can be checked or denied.
type Action string

const (
	ActionApprove           Action = "approve"
	ActionReject            Action = "reject"
	ActionComment           Action = "comment"
	ActionUploadBeta        Action = "upload_beta"
	ActionUploadFinal       Action = "upload_final"
	ActionAccessFinal       Action = "access_final"
	ActionSendForReview     Action = "send_for_review"
	ActionCreateDeliverable Action = "create_deliverable"
)

// Actor is the user a permission check runs for, as resolved from project
// membership.
type Actor struct {
	ID    uuid.UUID
	Name  string
	Email string
	Role  string
}

// IsStaff reports whether the actor belongs to the internal Motionify team.
func (a Actor) IsStaff() bool {
	switch a.Role {
	case models.RoleMotionifyMember, models.RoleProjectManager, models.RoleAdmin:
		return true
	}
	return false
}

// IsClient reports whether the actor belongs to the client team.
func (a Actor) IsClient() bool {
	return a.Role == models.RoleClientPrimaryContact || a.Role == models.RoleClientTeamMember
}

// ProjectContext carries the project-level facts the evaluator needs.
// PaymentComplete is supplied by the payment collaborator; the evaluator only
// reads the boolean.
type ProjectContext struct {
	TermsAccepted   bool
	PaymentComplete bool
	Quota           RevisionQuota
}

// DeliverableContext carries the deliverable-level facts the evaluator needs.
type DeliverableContext struct {
	Status   Status
	HasVideo bool
}

// Capabilities is the capability set produced by Evaluate. For every false
// capability DeniedReason returns a non-empty, user-displayable explanation.
type Capabilities struct {
	CanApprove           bool `json:"can_approve"`
	CanReject            bool `json:"can_reject"`
	CanComment           bool `json:"can_comment"`
	CanUploadBeta        bool `json:"can_upload_beta"`
	CanUploadFinal       bool `json:"can_upload_final"`
	CanAccessFinal       bool `json:"can_access_final"`
	CanSendForReview     bool `json:"can_send_for_review"`
	CanCreateDeliverable bool `json:"can_create_deliverable"`
	IsClientPM           bool `json:"is_client_pm"`

	denials map[Action]string

	// Rejection can be blocked by the quota rather than by the actor's
	// role or the deliverable's status; that denial surfaces as
	// ErrQuotaExhausted so callers can offer the additional-revision path.
	rejectBlockedByQuota bool
}

// DeniedReason returns the user-displayable reason the action is unavailable,
// or "" when the capability is granted.
func (c Capabilities) DeniedReason(action Action) string {
	return c.denials[action]
}

// Allows reports whether the capability for action is granted.
func (c Capabilities) Allows(action Action) bool {
	switch action {
	case ActionApprove:
		return c.CanApprove
	case ActionReject:
		return c.CanReject
	case ActionComment:
		return c.CanComment
	case ActionUploadBeta:
		return c.CanUploadBeta
	case ActionUploadFinal:
		return c.CanUploadFinal
	case ActionAccessFinal:
		return c.CanAccessFinal
	case ActionSendForReview:
		return c.CanSendForReview
	case ActionCreateDeliverable:
		return c.CanCreateDeliverable
	}
	return false
}

// Require returns a ForbiddenError carrying the denial reason when the action
// is not granted, nil otherwise.
func (c Capabilities) Require(action Action) error {
	if c.Allows(action) {
		return nil
	}
	if action == ActionReject && c.rejectBlockedByQuota {
		return ErrQuotaExhausted
	}
	reason := c.DeniedReason(action)
	if reason == "" {
		reason = "you do not have permission to perform this action"
	}
	return &ForbiddenError{Action: action, Reason: reason}
}

// Evaluate computes the capability set for an actor against a project and
// deliverable. It is a pure function of its inputs; rules are evaluated in
// order and the first applicable rule wins.
func Evaluate(actor Actor, project ProjectContext, deliverable DeliverableContext) Capabilities {
	caps := Capabilities{denials: make(map[Action]string)}
	caps.IsClientPM = actor.Role == models.RoleClientPrimaryContact

	// Approve/reject: primary contact only, and only while awaiting approval.
	switch {
	case !caps.IsClientPM:
		caps.denials[ActionApprove] = "only the client's primary contact can approve deliverables"
		caps.denials[ActionReject] = "only the client's primary contact can request revisions"
	case deliverable.Status != StatusAwaitingApproval:
		caps.denials[ActionApprove] = "this deliverable is not awaiting your approval"
		caps.denials[ActionReject] = "this deliverable is not awaiting your approval"
	case !project.TermsAccepted:
		caps.denials[ActionApprove] = "terms not accepted"
		caps.denials[ActionReject] = "terms not accepted"
	default:
		caps.CanApprove = true
		if project.Quota.Exhausted() {
			caps.denials[ActionReject] = "no revisions remaining; request additional revisions to continue"
			caps.rejectBlockedByQuota = true
		} else {
			caps.CanReject = true
		}
	}

	// Commenting is open to the whole team once there is a video to comment
	// on, but clients must have accepted the project terms first.
	switch {
	case !deliverable.HasVideo:
		caps.denials[ActionComment] = "there is no video to comment on yet"
	case deliverable.Status == StatusPending:
		caps.denials[ActionComment] = "this deliverable has not started review yet"
	case actor.IsClient() && !project.TermsAccepted:
		caps.denials[ActionComment] = "terms not accepted"
	default:
		caps.CanComment = true
	}

	// Final file access: released only after final delivery, gated on the
	// payment/terms collaborator.
	switch {
	case deliverable.Status != StatusFinalDelivered:
		caps.denials[ActionAccessFinal] = "final files have not been released yet"
	case !project.PaymentComplete:
		caps.denials[ActionAccessFinal] = "payment not completed"
	case !project.TermsAccepted:
		caps.denials[ActionAccessFinal] = "terms not accepted"
	default:
		caps.CanAccessFinal = true
	}

	// Staff-only capabilities.
	if !actor.IsStaff() {
		caps.denials[ActionUploadBeta] = "only the Motionify team can upload preview files"
		caps.denials[ActionUploadFinal] = "only the Motionify team can upload final files"
		caps.denials[ActionSendForReview] = "only the Motionify team can send a deliverable for review"
		caps.denials[ActionCreateDeliverable] = "only the Motionify team can create deliverables"
		return caps
	}

	caps.CanCreateDeliverable = true

	switch deliverable.Status {
	case StatusPending, StatusInProgress, StatusRevisionRequested:
		caps.CanUploadBeta = true
	default:
		caps.denials[ActionUploadBeta] = "preview uploads are not accepted in the current status"
	}

	switch deliverable.Status {
	case StatusApproved, StatusPaymentPending:
		caps.CanUploadFinal = true
	default:
		caps.denials[ActionUploadFinal] = "final uploads are only accepted after client approval"
	}

	if deliverable.Status == StatusBetaReady {
		caps.CanSendForReview = true
	} else {
		caps.denials[ActionSendForReview] = "the deliverable has no new preview ready for review"
	}

	return caps
}
