package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types emitted by the workflow.
const (
	NotificationDeliverableReady        = "deliverable_ready"
	NotificationApprovalReceived        = "approval_received"
	NotificationRevisionRequested       = "revision_requested"
	NotificationPaymentDue              = "payment_due"
	NotificationFinalDelivered          = "final_delivered"
	NotificationRevisionRequestReceived = "revision_request_received"
	NotificationRevisionRequestResolved = "revision_request_resolved"
)

// AppNotification represents one row in the notifications table.
type AppNotification struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Type          string     `json:"type"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	ProjectID     *uuid.UUID `json:"project_id,omitempty"`     // Nullable foreign key
	DeliverableID *uuid.UUID `json:"deliverable_id,omitempty"` // Nullable foreign key
	Read          bool       `json:"read"`
	CreatedAt     time.Time  `json:"created_at"`
}
