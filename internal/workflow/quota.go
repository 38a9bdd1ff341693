package workflow

import "strings"

// Bounds for additional revision requests.
const (
	MinAdditionalReasonLen = 100
	MinAdditionalCount     = 1
	MaxAdditionalCount     = 5
)

// RevisionQuota tracks the contractually included revision rounds for a
// project. Remaining is always max(Total-Used, 0); Used only ever increases.
type RevisionQuota struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// NewRevisionQuota builds a quota from the persisted total/used counters,
// recomputing Remaining.
func NewRevisionQuota(total, used int) RevisionQuota {
	if total < 0 {
		total = 0
	}
	if used < 0 {
		used = 0
	}
	remaining := total - used
	if remaining < 0 {
		remaining = 0
	}
	return RevisionQuota{Total: total, Used: used, Remaining: remaining}
}

// CanRequestRevision reports whether at least one revision round remains.
func (q RevisionQuota) CanRequestRevision() bool {
	return q.Remaining > 0
}

// Consume returns a new quota with one revision consumed. It fails with
// ErrQuotaExhausted when no revisions remain; the receiver is unchanged on
// failure. Note this is only the arithmetic: callers persisting the result
// must use a conditional update against the stored Used value so that two
// concurrent consumers cannot both succeed on the last revision.
func (q RevisionQuota) Consume() (RevisionQuota, error) {
	if q.Remaining <= 0 {
		return q, ErrQuotaExhausted
	}
	return NewRevisionQuota(q.Total, q.Used+1), nil
}

// Exhausted reports whether no revision rounds remain.
func (q RevisionQuota) Exhausted() bool {
	return q.Remaining == 0
}

// ValidateAdditionalRequest checks the reason and count for an
// additional-revision request. The reason must carry real content, so it is
// measured after trimming.
func ValidateAdditionalRequest(reason string, count int) error {
	if len(strings.TrimSpace(reason)) < MinAdditionalReasonLen {
		return &ValidationError{
			Field:   "reason",
			Message: "please describe why additional revisions are needed (at least 100 characters)",
		}
	}
	if count < MinAdditionalCount || count > MaxAdditionalCount {
		return &ValidationError{
			Field:   "requested_count",
			Message: "requested revision count must be between 1 and 5",
		}
	}
	return nil
}
