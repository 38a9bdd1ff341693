package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"motionify/portal-api/internal/workflow"
	"motionify/portal-api/models"
	"motionify/portal-api/utils"
)

// CreateCommentRequest defines the expected JSON structure for adding a
// timestamped comment.
type CreateCommentRequest struct {
	UserID    uuid.UUID `json:"user_id" validate:"required"`
	Timestamp float64   `json:"timestamp"`
	Comment   string    `json:"comment" validate:"required"`
}

// UpdateCommentRequest defines the PATCHable fields of a draft comment.
type UpdateCommentRequest struct {
	UserID   uuid.UUID `json:"user_id" validate:"required"`
	Comment  *string   `json:"comment,omitempty"`
	Resolved *bool     `json:"resolved,omitempty"`
}

// ListComments returns the draft comment ledger for a deliverable, ordered by
// video timestamp.
func (h *ApplicationHandler) ListComments(c *fiber.Ctx) error {
	_, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	comments, err := h.draftComments(deliverable.ID)
	if err != nil {
		h.Logger.Errorf("Error fetching comments for deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch comments")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, comments)
}

// CreateComment adds a timestamped comment to the deliverable's draft ledger.
// Comments near an existing marker still get their own entry; merging into a
// neighbor is a client-side affordance, not a server rule.
func (h *ApplicationHandler) CreateComment(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	payload := new(CreateCommentRequest)
	if err := c.BodyParser(payload); err != nil {
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

	caps := capabilitiesFor(member, project, deliverable)
	if err := caps.Require(workflow.ActionComment); err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	ledger := workflow.NewCommentLedger(deliverable.ID, deliverable.VideoDuration, nil)
	comment, err := ledger.Add(payload.Timestamp, utils.SanitizeInput(payload.Comment), actorFor(member))
	if err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}
	comment.UserAvatar = member.UserAvatar

	var created []models.TimestampedComment
	_, err = h.DB.From("deliverable_comments").
		Insert(comment, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil || len(created) == 0 {
		h.Logger.Errorf("Error inserting comment for deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not save comment")
	}

	h.Logger.Infof("Comment %s added at %.2fs on deliverable %s by %s", created[0].ID, payload.Timestamp, deliverable.ID, member.UserName)
	return utils.RespondWithJSON(c, fiber.StatusCreated, created[0])
}

// UpdateComment edits the text of a draft comment or toggles its resolved
// flag. Text edits follow the author-or-primary-contact rule; staff may
// resolve any comment.
func (h *ApplicationHandler) UpdateComment(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}
	commentID, err := uuid.Parse(c.Params("commentId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid comment ID format")
	}

	payload := new(UpdateCommentRequest)
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	if err := validate.Struct(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}
	if payload.Comment == nil && payload.Resolved == nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Provide comment text or a resolved flag to update")
	}

	member, err := h.getProjectMember(projectID, payload.UserID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusForbidden, "You are not a member of this project")
	}

	drafts, err := h.draftComments(deliverable.ID)
	if err != nil {
		h.Logger.Errorf("Error loading comments for deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load comments")
	}
	ledger := workflow.NewCommentLedger(deliverable.ID, deliverable.VideoDuration, drafts)

	actor := actorFor(member)
	var result models.TimestampedComment
	if payload.Comment != nil {
		result, err = ledger.Update(commentID, utils.SanitizeInput(*payload.Comment), actor)
		if err != nil {
			return utils.RespondWithWorkflowError(c, err)
		}
	}
	if payload.Resolved != nil {
		result, err = ledger.SetResolved(commentID, *payload.Resolved, actor)
		if err != nil {
			return utils.RespondWithWorkflowError(c, err)
		}
	}

	updates := map[string]interface{}{
		"comment":    result.Comment,
		"resolved":   result.Resolved,
		"updated_at": result.UpdatedAt,
	}
	var updated []models.TimestampedComment
	_, err = h.DB.From("deliverable_comments").
		Update(updates, "representation", "exact").
		Eq("id", commentID.String()).
		ExecuteTo(&updated)
	if err != nil || len(updated) == 0 {
		h.Logger.Errorf("Error updating comment %s: %v", commentID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not update comment")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, updated[0])
}

// DeleteComment removes a draft comment under the author-or-primary-contact
// rule. The user making the request arrives as a query parameter since
// DELETE bodies are unreliable across proxies.
func (h *ApplicationHandler) DeleteComment(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}
	commentID, err := uuid.Parse(c.Params("commentId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid comment ID format")
	}
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "A valid user_id query parameter is required")
	}

	member, err := h.getProjectMember(projectID, userID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusForbidden, "You are not a member of this project")
	}

	drafts, err := h.draftComments(deliverable.ID)
	if err != nil {
		h.Logger.Errorf("Error loading comments for deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not load comments")
	}
	ledger := workflow.NewCommentLedger(deliverable.ID, deliverable.VideoDuration, drafts)

	if err := ledger.Remove(commentID, actorFor(member)); err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	_, count, err := h.DB.From("deliverable_comments").
		Delete("minimal", "exact").
		Eq("id", commentID.String()).
		Execute()
	if err != nil {
		h.Logger.Errorf("Error deleting comment %s: %v", commentID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not delete comment")
	}
	if count == 0 {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Comment not found")
	}

	h.Logger.Infof("Comment %s deleted from deliverable %s by %s", commentID, deliverable.ID, member.UserName)
	return c.SendStatus(fiber.StatusNoContent)
}
