package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"motionify/portal-api/models"
)

// MinRejectionFeedbackLen is the minimum trimmed length of non-empty
// rejection feedback.
const MinRejectionFeedbackLen = 20

var issueCategories = map[string]bool{
	"color":   true,
	"audio":   true,
	"timing":  true,
	"editing": true,
	"content": true,
	"other":   true,
}

var priorities = map[string]bool{
	models.PriorityCritical:   true,
	models.PriorityImportant:  true,
	models.PriorityNiceToHave: true,
}

// SubmissionPayload is the validated content of an approval or revision
// submission. Comments is the draft-ledger snapshot taken at submission time.
type SubmissionPayload struct {
	Feedback        string
	Comments        []models.TimestampedComment
	IssueCategories []string
	Priority        string
	Attachments     []models.FeedbackAttachment
}

// ValidateSubmission checks the submission rules for the given action.
//
// Rejections must carry substance: either trimmed feedback of at least 20
// characters or at least one timestamped comment. Feedback is optional, but
// when present it must meet the minimum length even if comments exist.
func ValidateSubmission(action string, payload SubmissionPayload) error {
	if action != models.ApprovalActionApproved && action != models.ApprovalActionRejected {
		return &ValidationError{Field: "action", Message: "action must be either 'approved' or 'rejected'"}
	}

	for _, category := range payload.IssueCategories {
		if !issueCategories[category] {
			return &ValidationError{Field: "issue_categories", Message: "unknown issue category: " + category}
		}
	}

	if action == models.ApprovalActionApproved {
		return nil
	}

	feedback := strings.TrimSpace(payload.Feedback)
	if feedback == "" && len(payload.Comments) == 0 {
		return &ValidationError{
			Field:   "feedback",
			Message: "a revision request needs written feedback or at least one timestamped comment",
		}
	}
	if feedback != "" && len(feedback) < MinRejectionFeedbackLen {
		return &ValidationError{
			Field:   "feedback",
			Message: "feedback must be at least 20 characters so the team can act on it",
		}
	}

	if payload.Priority != "" && !priorities[payload.Priority] {
		return &ValidationError{Field: "priority", Message: "priority must be critical, important or nice-to-have"}
	}
	if len(payload.IssueCategories) > 0 && payload.Priority == "" {
		return &ValidationError{Field: "priority", Message: "pick a priority for the reported issues"}
	}

	return nil
}

// BuildApprovalRecord assembles the immutable approval-history entry for a
// validated submission. Comments and attachments are deep-copied so that the
// record is detached from the caller's slices.
func BuildApprovalRecord(deliverableID uuid.UUID, action string, actor Actor, payload SubmissionPayload, now time.Time) models.DeliverableApproval {
	record := models.DeliverableApproval{
		ID:            uuid.New(),
		DeliverableID: deliverableID,
		Action:        action,
		Timestamp:     now,
		UserID:        actor.ID,
		UserName:      actor.Name,
		UserEmail:     actor.Email,
		Feedback:      strings.TrimSpace(payload.Feedback),
	}

	if len(payload.Comments) > 0 {
		record.TimestampedComments = make([]models.TimestampedComment, len(payload.Comments))
		for i, c := range payload.Comments {
			out := c
			if c.UserAvatar != nil {
				avatar := *c.UserAvatar
				out.UserAvatar = &avatar
			}
			record.TimestampedComments[i] = out
		}
	}

	if action == models.ApprovalActionRejected {
		if len(payload.IssueCategories) > 0 {
			record.IssueCategories = append([]string(nil), payload.IssueCategories...)
		}
		if payload.Priority != "" {
			priority := payload.Priority
			record.Priority = &priority
		}
		if len(payload.Attachments) > 0 {
			record.Attachments = append([]models.FeedbackAttachment(nil), payload.Attachments...)
		}
	}

	return record
}

// TriggerForAction maps a submission action to the state-machine trigger it
// drives.
func TriggerForAction(action string) Trigger {
	if action == models.ApprovalActionApproved {
		return TriggerApprove
	}
	return TriggerRequestRevision
}
