package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Deliverable types.
const (
	DeliverableTypeVideo    = "video"
	DeliverableTypeImage    = "image"
	DeliverableTypeDocument = "document"
)

// Deliverable represents the structure of a deliverable in the database.
// ApprovalHistory is an embedded JSONB column holding the ordered list of
// DeliverableApproval records; it is append-only.
type Deliverable struct {
	ID               uuid.UUID       `json:"id"`
	ProjectID        uuid.UUID       `json:"project_id"`
	Title            string          `json:"title"`
	Description      *string         `json:"description,omitempty"`
	Type             string          `json:"type"`
	Status           string          `json:"status"`
	Progress         int             `json:"progress"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	BetaFileKey      *string         `json:"beta_file_key,omitempty"`
	BetaFileURL      *string         `json:"beta_file_url,omitempty"`
	FinalFileKey     *string         `json:"final_file_key,omitempty"`
	FinalFileURL     *string         `json:"final_file_url,omitempty"`
	VideoDuration    *float64        `json:"video_duration,omitempty"` // Seconds; nullable FLOAT
	ApprovalHistory  json.RawMessage `json:"approval_history,omitempty"` // Nullable JSONB
	FinalDeliveredAt *time.Time      `json:"final_delivered_at,omitempty"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Watermarked reports whether the deliverable is currently in its watermarked
// preview state: a beta file exists and no final file has been released.
func (d *Deliverable) Watermarked() bool {
	return d.BetaFileKey != nil && *d.BetaFileKey != "" &&
		(d.FinalFileKey == nil || *d.FinalFileKey == "")
}

// HasVideo reports whether the deliverable has a reviewable video attached.
func (d *Deliverable) HasVideo() bool {
	return d.Type == DeliverableTypeVideo && d.BetaFileKey != nil && *d.BetaFileKey != ""
}
