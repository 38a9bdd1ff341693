package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/supabase-community/postgrest-go"

	"motionify/portal-api/internal/workflow"
	"motionify/portal-api/models"
	"motionify/portal-api/utils"
)

// SubmitApprovalRequest defines the expected JSON structure for an approval
// or revision-request submission.
type SubmitApprovalRequest struct {
	UserID          uuid.UUID                   `json:"user_id" validate:"required"`
	Action          string                      `json:"action" validate:"required,oneof=approved rejected"`
	Feedback        string                      `json:"feedback,omitempty"`
	IssueCategories []string                    `json:"issue_categories,omitempty"`
	Priority        string                      `json:"priority,omitempty"`
	Attachments     []models.FeedbackAttachment `json:"attachments,omitempty"`
}

// SubmitApproval processes the client's approve-or-reject decision on a
// deliverable awaiting approval. A rejection consumes one revision from the
// project quota; both outcomes append an immutable record to the
// deliverable's approval history carrying a frozen snapshot of the draft
// comments, which are then cleared.
func (h *ApplicationHandler) SubmitApproval(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	payload := new(SubmitApprovalRequest)
	if err := c.BodyParser(payload); err != nil {
		h.Logger.Errorf("Error parsing approval payload: %v", err)
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	if err := validate.Struct(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	project, err := h.getProjectByID(projectID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Project not found")
	}
	member, err := h.getProjectMember(projectID, payload.UserID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusForbidden, "You are not a member of this project")
	}
	actor := actorFor(member)

	caps := capabilitiesFor(member, project, deliverable)
	requiredAction := workflow.ActionApprove
	if payload.Action == models.ApprovalActionRejected {
		requiredAction = workflow.ActionReject
	}
	if err := caps.Require(requiredAction); err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	drafts, err := h.draftComments(deliverable.ID)
	if err != nil {
		h.Logger.Errorf("Error loading draft comments for deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load draft comments")
	}
	ledger := workflow.NewCommentLedger(deliverable.ID, deliverable.VideoDuration, drafts)

	submission := workflow.SubmissionPayload{
		Feedback:        payload.Feedback,
		Comments:        ledger.Snapshot(),
		IssueCategories: payload.IssueCategories,
		Priority:        payload.Priority,
		Attachments:     payload.Attachments,
	}
	if err := workflow.ValidateSubmission(payload.Action, submission); err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	newStatus, err := workflow.Transition(workflow.Status(deliverable.Status), workflow.TriggerForAction(payload.Action))
	if err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	record := workflow.BuildApprovalRecord(deliverable.ID, payload.Action, actor, submission, time.Now())

	history, err := appendApprovalHistory(deliverable.ApprovalHistory, record)
	if err != nil {
		h.Logger.Errorf("Error encoding approval history for deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not record the approval")
	}

	// Rejections consume a revision. The conditional update is the real
	// gate: two concurrent submissions racing for the last revision cannot
	// both match the stored revisions_used value.
	if payload.Action == models.ApprovalActionRejected {
		if err := h.consumeRevision(project); err != nil {
			return utils.RespondWithWorkflowError(c, err)
		}
	}

	// Status and history are written together, conditional on the status
	// this request read. A concurrent submission that already moved the
	// deliverable out of awaiting_approval matches zero rows, so its
	// history entry can never be overwritten by this one.
	updated, claimed, err := h.claimReview(deliverable, newStatus, history)
	if err != nil {
		h.Logger.Errorf("Error persisting approval for deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not record the approval")
	}
	if !claimed {
		if payload.Action == models.ApprovalActionRejected {
			h.refundRevision(project)
		}
		from := workflow.Status(deliverable.Status)
		if fresh, err := h.getDeliverableByID(projectID, deliverable.ID); err == nil {
			from = workflow.Status(fresh.Status)
		}
		return utils.RespondWithWorkflowError(c, &workflow.InvalidTransitionError{
			From:    from,
			Trigger: workflow.TriggerForAction(payload.Action),
		})
	}

	// Drafts were frozen into the record above; clear the working set so the
	// next review round starts empty.
	if err := h.clearDraftComments(deliverable.ID); err != nil {
		h.Logger.Errorf("Error clearing draft comments for deliverable %s: %v", deliverable.ID, err)
	}

	deliverableID := deliverable.ID
	if payload.Action == models.ApprovalActionApproved {
		h.notifyStaff(projectID, &deliverableID, models.NotificationApprovalReceived,
			"Deliverable approved",
			fmt.Sprintf("%s approved %q.", actor.Name, deliverable.Title))
		h.notifyStaff(projectID, &deliverableID, models.NotificationPaymentDue,
			"Balance payment due",
			fmt.Sprintf("%q was approved; send the balance payment link for %s.", deliverable.Title, project.Name))
	} else {
		h.notifyStaff(projectID, &deliverableID, models.NotificationRevisionRequested,
			"Revision requested",
			fmt.Sprintf("%s requested a revision on %q.", actor.Name, deliverable.Title))
	}

	h.Logger.WithFields(logrus.Fields{
		"project_id":     projectID,
		"deliverable_id": deliverable.ID,
		"action":         payload.Action,
		"comments":       len(submission.Comments),
		"new_status":     updated.Status,
	}).Info("Approval submitted")

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"deliverable": viewOf(*updated),
		"approval":    record,
	})
}

// consumeRevision decrements the project's remaining revisions with a
// conditional update on the stored revisions_used counter. A zero-row update
// means another submission got there first; the fresh counter is re-read and
// the update retried once before giving up.
func (h *ApplicationHandler) consumeRevision(project *models.Project) error {
	current := workflow.NewRevisionQuota(project.RevisionsTotal, project.RevisionsUsed)
	for attempt := 0; attempt < 2; attempt++ {
		next, err := current.Consume()
		if err != nil {
			return err
		}

		_, count, err := h.DB.From("projects").
			Update(map[string]interface{}{"revisions_used": next.Used}, "", "exact").
			Eq("id", project.ID.String()).
			Eq("revisions_used", strconv.Itoa(current.Used)).
			Execute()
		if err != nil {
			return fmt.Errorf("consuming revision for project %s: %w", project.ID, err)
		}
		if count > 0 {
			project.RevisionsUsed = next.Used
			return nil
		}

		fresh, err := h.getProjectByID(project.ID)
		if err != nil {
			return fmt.Errorf("re-reading project %s after quota conflict: %w", project.ID, err)
		}
		current = workflow.NewRevisionQuota(fresh.RevisionsTotal, fresh.RevisionsUsed)
	}
	if current.Remaining > 0 {
		return workflow.ErrQuotaConflict
	}
	return workflow.ErrQuotaExhausted
}

// refundRevision returns the revision consumed by a submission whose status
// claim was lost to a concurrent one. Conditional on the counter this
// request wrote, so it never undoes someone else's consumption.
func (h *ApplicationHandler) refundRevision(project *models.Project) {
	_, count, err := h.DB.From("projects").
		Update(map[string]interface{}{"revisions_used": project.RevisionsUsed - 1}, "", "exact").
		Eq("id", project.ID.String()).
		Eq("revisions_used", strconv.Itoa(project.RevisionsUsed)).
		Execute()
	if err != nil || count == 0 {
		h.Logger.Errorf("Could not refund revision for project %s (count %d): %v", project.ID, count, err)
		return
	}
	project.RevisionsUsed--
}

// claimReview writes the new status, derived progress and appended history in
// one update filtered on the status the submission was validated against.
// The boolean result is false when another submission claimed the review
// first.
func (h *ApplicationHandler) claimReview(deliverable *models.Deliverable, to workflow.Status, history json.RawMessage) (*models.Deliverable, bool, error) {
	var updated []models.Deliverable
	_, err := h.DB.From("deliverables").
		Update(map[string]interface{}{
			"status":           string(to),
			"progress":         workflow.ProgressFor(to),
			"approval_history": history,
			"updated_at":       time.Now(),
		}, "representation", "exact").
		Eq("id", deliverable.ID.String()).
		Eq("status", deliverable.Status).
		ExecuteTo(&updated)
	if err != nil {
		return nil, false, err
	}
	if len(updated) == 0 {
		return nil, false, nil
	}
	return &updated[0], true, nil
}

// appendApprovalHistory appends a record to the stored approval history
// column. Existing entries are never modified.
func appendApprovalHistory(stored json.RawMessage, record models.DeliverableApproval) (json.RawMessage, error) {
	var history []models.DeliverableApproval
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &history); err != nil {
			return nil, fmt.Errorf("decoding stored approval history: %w", err)
		}
	}
	history = append(history, record)
	encoded, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}
	return encoded, nil
}

// draftComments loads the current draft comment ledger rows for a
// deliverable, oldest first.
func (h *ApplicationHandler) draftComments(deliverableID uuid.UUID) ([]models.TimestampedComment, error) {
	var comments []models.TimestampedComment
	_, err := h.DB.From("deliverable_comments").
		Select("*", "", false).
		Eq("deliverable_id", deliverableID.String()).
		Order("timestamp", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&comments)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (h *ApplicationHandler) clearDraftComments(deliverableID uuid.UUID) error {
	_, _, err := h.DB.From("deliverable_comments").
		Delete("minimal", "exact").
		Eq("deliverable_id", deliverableID.String()).
		Execute()
	return err
}
