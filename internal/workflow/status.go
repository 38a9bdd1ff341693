// Package workflow implements the deliverable review/revision workflow: the
// status transition table, revision quota accounting, the permission
// evaluator, the timestamped comment ledger, and the approval submission
// rules. Everything here is pure; persistence and notification side effects
// belong to the handlers.
package workflow

// Status is a deliverable lifecycle status.
type Status string

const (
	StatusPending           Status = "pending"
	StatusInProgress        Status = "in_progress"
	StatusBetaReady         Status = "beta_ready"
	StatusAwaitingApproval  Status = "awaiting_approval"
	StatusApproved          Status = "approved"
	StatusRevisionRequested Status = "revision_requested"
	StatusPaymentPending    Status = "payment_pending"
	StatusFinalDelivered    Status = "final_delivered"
)

// Trigger is an event that may move a deliverable between statuses.
type Trigger string

const (
	TriggerStartWork       Trigger = "start_work"
	TriggerUploadBeta      Trigger = "upload_beta"
	TriggerSendForReview   Trigger = "send_for_review"
	TriggerApprove         Trigger = "approve"
	TriggerRequestRevision Trigger = "request_revision"
	TriggerConfirmPayment  Trigger = "confirm_payment"
	TriggerDeliverFinal    Trigger = "deliver_final"
)

// transitions is the authoritative transition table. Any (status, trigger)
// pair absent from the table is an invalid transition.
var transitions = map[Status]map[Trigger]Status{
	StatusPending: {
		TriggerStartWork:  StatusInProgress,
		TriggerUploadBeta: StatusBetaReady,
	},
	StatusInProgress: {
		TriggerUploadBeta: StatusBetaReady,
	},
	StatusBetaReady: {
		TriggerSendForReview: StatusAwaitingApproval,
	},
	StatusAwaitingApproval: {
		TriggerApprove:         StatusApproved,
		TriggerRequestRevision: StatusRevisionRequested,
	},
	StatusRevisionRequested: {
		TriggerUploadBeta: StatusBetaReady,
	},
	StatusApproved: {
		TriggerConfirmPayment: StatusPaymentPending,
	},
	StatusPaymentPending: {
		TriggerDeliverFinal: StatusFinalDelivered,
	},
}

// progressByStatus maps each status to its display progress percentage.
// Progress is always derived from status, never stored independently.
var progressByStatus = map[Status]int{
	StatusPending:           0,
	StatusInProgress:        25,
	StatusBetaReady:         50,
	StatusAwaitingApproval:  60,
	StatusRevisionRequested: 40,
	StatusApproved:          75,
	StatusPaymentPending:    85,
	StatusFinalDelivered:    100,
}

// Transition applies trigger to the current status and returns the new
// status. It returns an InvalidTransitionError when the pair is not in the
// table; the caller's status is never changed implicitly.
func Transition(from Status, trigger Trigger) (Status, error) {
	row, ok := transitions[from]
	if !ok {
		return from, &InvalidTransitionError{From: from, Trigger: trigger}
	}
	to, ok := row[trigger]
	if !ok {
		return from, &InvalidTransitionError{From: from, Trigger: trigger}
	}
	return to, nil
}

// CanTransition reports whether trigger is legal from the given status.
func CanTransition(from Status, trigger Trigger) bool {
	_, err := Transition(from, trigger)
	return err == nil
}

// ProgressFor returns the display progress percentage for a status. Unknown
// statuses map to 0.
func ProgressFor(s Status) int {
	return progressByStatus[s]
}

// ValidStatus reports whether s is one of the known lifecycle statuses.
func ValidStatus(s Status) bool {
	if s == StatusPending {
		return true
	}
	_, ok := progressByStatus[s]
	return ok && s != ""
}

// Terminal reports whether the status ends the deliverable lifecycle.
func Terminal(s Status) bool {
	return s == StatusFinalDelivered
}
