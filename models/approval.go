package models

import (
	"time"

	"github.com/google/uuid"
)

// Approval actions.
const (
	ApprovalActionApproved = "approved"
	ApprovalActionRejected = "rejected"
)

// Revision priorities (rejections only).
const (
	PriorityCritical   = "critical"
	PriorityImportant  = "important"
	PriorityNiceToHave = "nice-to-have"
)

// DeliverableApproval is one immutable entry in a deliverable's approval
// history. Once appended it is never mutated; the embedded comment list is a
// snapshot taken at submission time, not a reference to the draft ledger.
type DeliverableApproval struct {
	ID                  uuid.UUID            `json:"id"`
	DeliverableID       uuid.UUID            `json:"deliverable_id"`
	Action              string               `json:"action"`
	Timestamp           time.Time            `json:"timestamp"`
	UserID              uuid.UUID            `json:"user_id"`
	UserName            string               `json:"user_name"`
	UserEmail           string               `json:"user_email"`
	Feedback            string               `json:"feedback"`
	TimestampedComments []TimestampedComment `json:"timestamped_comments,omitempty"`
	IssueCategories     []string             `json:"issue_categories,omitempty"`
	Priority            *string              `json:"priority,omitempty"` // Only for rejections
	Attachments         []FeedbackAttachment `json:"attachments,omitempty"`
}

// TimestampedComment is feedback anchored to a playback time in a video
// deliverable. Rows in deliverable_comments form the mutable draft ledger;
// copies embedded in a DeliverableApproval are frozen.
type TimestampedComment struct {
	ID            uuid.UUID `json:"id"`
	DeliverableID uuid.UUID `json:"deliverable_id"`
	Timestamp     float64   `json:"timestamp"` // Seconds into the video
	Comment       string    `json:"comment"`
	UserID        uuid.UUID `json:"user_id"`
	UserName      string    `json:"user_name"`
	UserAvatar    *string   `json:"user_avatar,omitempty"`
	Resolved      bool      `json:"resolved"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FeedbackAttachment is a reference file attached to a revision request.
type FeedbackAttachment struct {
	ID       uuid.UUID `json:"id"`
	FileName string    `json:"file_name"`
	FileSize int64     `json:"file_size"`
	FileType string    `json:"file_type"`
	URL      string    `json:"url"`
}
