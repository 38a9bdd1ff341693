package models

import (
	"time"

	"github.com/google/uuid"
)

// File categories for deliverable files.
const (
	FileCategoryBeta       = "beta"
	FileCategoryFinal      = "final"
	FileCategoryAttachment = "attachment"
	FileCategoryThumbnail  = "thumbnail"
)

// DeliverableFile represents one stored file belonging to a deliverable.
// The record is independent of the presigned-URL upload mechanics; file_key
// is the object path inside the storage bucket.
type DeliverableFile struct {
	ID           uuid.UUID  `json:"id"`
	DeliverableID uuid.UUID `json:"deliverable_id"`
	FileKey      string     `json:"file_key"`
	FileName     string     `json:"file_name"`
	FileSize     *int64     `json:"file_size,omitempty"` // Nullable BIGINT
	MimeType     *string    `json:"mime_type,omitempty"`
	FileCategory string     `json:"file_category"`
	IsFinal      bool       `json:"is_final"`
	UploadedBy   *uuid.UUID `json:"uploaded_by,omitempty"` // Nullable foreign key
	UploadedAt   time.Time  `json:"uploaded_at"`
}
