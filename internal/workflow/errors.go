package workflow

import (
	"errors"
	"fmt"
)

// ErrQuotaExhausted is returned when a revision is consumed with zero
// revisions remaining.
var ErrQuotaExhausted = errors.New("no revisions remaining")

// ErrQuotaConflict is returned when a revision could not be consumed because
// the stored counter kept moving under concurrent submissions while
// revisions still remain. The submission is safe to retry.
var ErrQuotaConflict = errors.New("the revision quota changed while submitting; please retry")

// ErrDuplicatePendingRequest is returned when a project already has an
// unresolved additional-revision request.
var ErrDuplicatePendingRequest = errors.New("an additional revision request is already pending for this project")

// ErrCommentNotFound is returned by comment ledger operations when the
// comment id is not in the ledger.
var ErrCommentNotFound = errors.New("comment not found")

// InvalidTransitionError reports an attempted status change that is not
// permitted from the current status.
type InvalidTransitionError struct {
	From    Status
	Trigger Trigger
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: trigger %q is not allowed from status %q", e.Trigger, e.From)
}

// ForbiddenError reports a failed permission check. Reason is always a
// user-displayable explanation, never empty.
type ForbiddenError struct {
	Action Action
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

// ValidationError reports a form-level rule violation, surfaced inline next
// to the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}

// IsForbidden reports whether err is a ForbiddenError.
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
