package models

import (
	"time"

	"github.com/google/uuid"
)

// Additional revision request statuses.
const (
	RevisionRequestPending  = "pending"
	RevisionRequestApproved = "approved"
	RevisionRequestDenied   = "denied"
)

// AdditionalRevisionRequest is an out-of-band request to extend a project's
// revision quota once it is exhausted. At most one pending request may exist
// per project at a time.
type AdditionalRevisionRequest struct {
	ID              uuid.UUID  `json:"id"`
	ProjectID       uuid.UUID  `json:"project_id"`
	Reason          string     `json:"reason"`
	RequestedCount  int        `json:"requested_count"`
	Status          string     `json:"status"`
	RequestedBy     uuid.UUID  `json:"requested_by"`
	RequestedByName string     `json:"requested_by_name"`
	ResolvedBy      *uuid.UUID `json:"resolved_by,omitempty"` // Nullable foreign key
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
