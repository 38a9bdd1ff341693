package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/supabase-community/postgrest-go"

	"motionify/portal-api/internal/notifier"
	"motionify/portal-api/internal/workflow"
	"motionify/portal-api/models"
	"motionify/portal-api/utils"
)

// CreateRevisionRequestRequest defines the expected JSON structure for
// requesting additional revisions.
type CreateRevisionRequestRequest struct {
	UserID         uuid.UUID `json:"user_id" validate:"required"`
	Reason         string    `json:"reason" validate:"required"`
	RequestedCount int       `json:"requested_count" validate:"required"`
}

// ResolveRevisionRequestRequest defines the expected JSON structure for
// resolving an additional-revision request.
type ResolveRevisionRequestRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Status string    `json:"status" validate:"required,oneof=approved denied"`
}

// ListRevisionRequests returns a project's additional-revision requests,
// newest first.
func (h *ApplicationHandler) ListRevisionRequests(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid project ID format")
	}

	if _, err := h.getProjectByID(projectID); err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Project not found")
	}

	var requests []models.AdditionalRevisionRequest
	_, err = h.DB.From("additional_revision_requests").
		Select("*", "", false).
		Eq("project_id", projectID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&requests)
	if err != nil {
		h.Logger.Errorf("Error fetching revision requests for project %s: %v", projectID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch revision requests")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, requests)
}

// CreateRevisionRequest files an additional-revision request once the
// included quota is used up. Only the client's primary contact may file one,
// and only one may be pending per project at a time.
func (h *ApplicationHandler) CreateRevisionRequest(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid project ID format")
	}

	payload := new(CreateRevisionRequestRequest)
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
	if member.Role != models.RoleClientPrimaryContact {
		return utils.RespondWithError(c, fiber.StatusForbidden, "Only the client's primary contact can request additional revisions")
	}

	quota := workflow.NewRevisionQuota(project.RevisionsTotal, project.RevisionsUsed)
	if !quota.Exhausted() {
		return utils.RespondWithWorkflowError(c, &workflow.ValidationError{
			Field:   "requested_count",
			Message: fmt.Sprintf("%d included revision(s) still remain; additional revisions can be requested once they are used", quota.Remaining),
		})
	}

	if err := workflow.ValidateAdditionalRequest(payload.Reason, payload.RequestedCount); err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	var pending []models.AdditionalRevisionRequest
	_, err = h.DB.From("additional_revision_requests").
		Select("id", "", false).
		Eq("project_id", projectID.String()).
		Eq("status", models.RevisionRequestPending).
		ExecuteTo(&pending)
	if err != nil {
		h.Logger.Errorf("Error checking pending revision requests for project %s: %v", projectID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not check existing requests")
	}
	if len(pending) > 0 {
		return utils.RespondWithWorkflowError(c, workflow.ErrDuplicatePendingRequest)
	}

	now := time.Now()
	request := models.AdditionalRevisionRequest{
		ID:              uuid.New(),
		ProjectID:       projectID,
		Reason:          utils.SanitizeInput(payload.Reason),
		RequestedCount:  payload.RequestedCount,
		Status:          models.RevisionRequestPending,
		RequestedBy:     member.UserID,
		RequestedByName: member.UserName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var created []models.AdditionalRevisionRequest
	_, err = h.DB.From("additional_revision_requests").
		Insert(request, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil || len(created) == 0 {
		h.Logger.Errorf("Error creating revision request for project %s: %v", projectID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not create revision request")
	}

	h.notifyStaff(projectID, nil, models.NotificationRevisionRequestReceived,
		"Additional revisions requested",
		fmt.Sprintf("%s requested %d additional revision(s) on %s.", member.UserName, payload.RequestedCount, project.Name))

	h.Logger.WithFields(logrus.Fields{
		"project_id":      projectID,
		"request_id":      created[0].ID,
		"requested_count": payload.RequestedCount,
	}).Info("Additional revision request filed")

	return utils.RespondWithJSON(c, fiber.StatusCreated, created[0])
}

// ResolveRevisionRequest approves or denies a pending additional-revision
// request. Approval raises the project's revision quota by the requested
// count. Admins and project managers only.
func (h *ApplicationHandler) ResolveRevisionRequest(c *fiber.Ctx) error {
	requestID, err := uuid.Parse(c.Params("requestId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid request ID format")
	}

	payload := new(ResolveRevisionRequestRequest)
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	if err := validate.Struct(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	var request models.AdditionalRevisionRequest
	_, err = h.DB.From("additional_revision_requests").
		Select("*", "exact", false).
		Eq("id", requestID.String()).
		Single().
		ExecuteTo(&request)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Revision request not found")
	}

	member, err := h.getProjectMember(request.ProjectID, payload.UserID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusForbidden, "You are not a member of this project")
	}
	if member.Role != models.RoleAdmin && member.Role != models.RoleProjectManager {
		return utils.RespondWithError(c, fiber.StatusForbidden, "Only an admin or project manager can resolve revision requests")
	}

	now := time.Now()
	// Conditional on the pending status so two admins cannot resolve the
	// same request twice.
	var resolved []models.AdditionalRevisionRequest
	_, err = h.DB.From("additional_revision_requests").
		Update(map[string]interface{}{
			"status":      payload.Status,
			"resolved_by": member.UserID,
			"resolved_at": now,
			"updated_at":  now,
		}, "representation", "exact").
		Eq("id", requestID.String()).
		Eq("status", models.RevisionRequestPending).
		ExecuteTo(&resolved)
	if err != nil {
		h.Logger.Errorf("Error resolving revision request %s: %v", requestID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not resolve revision request")
	}
	if len(resolved) == 0 {
		return utils.RespondWithError(c, fiber.StatusConflict, "This revision request has already been resolved")
	}

	if payload.Status == models.RevisionRequestApproved {
		project, err := h.getProjectByID(request.ProjectID)
		if err != nil {
			h.Logger.Errorf("Error loading project %s to extend quota: %v", request.ProjectID, err)
			return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not extend the revision quota")
		}
		_, _, err = h.DB.From("projects").
			Update(map[string]interface{}{
				"revisions_total": project.RevisionsTotal + request.RequestedCount,
			}, "", "exact").
			Eq("id", request.ProjectID.String()).
			Execute()
		if err != nil {
			h.Logger.Errorf("Error extending quota for project %s: %v", request.ProjectID, err)
			return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not extend the revision quota")
		}
	}

	projectID := request.ProjectID
	title := "Additional revisions approved"
	message := fmt.Sprintf("Your request for %d additional revision(s) was approved.", request.RequestedCount)
	if payload.Status == models.RevisionRequestDenied {
		title = "Additional revisions denied"
		message = fmt.Sprintf("Your request for %d additional revision(s) was denied.", request.RequestedCount)
	}
	if err := h.Notifier.Enqueue(notifier.Notification{
		UserID:    request.RequestedBy,
		Type:      models.NotificationRevisionRequestResolved,
		Title:     title,
		Message:   message,
		ProjectID: &projectID,
	}); err != nil {
		h.Logger.Errorf("Could not enqueue resolution notification for user %s: %v", request.RequestedBy, err)
	}

	h.Logger.Infof("Revision request %s %s by %s", requestID, payload.Status, member.UserName)
	return utils.RespondWithJSON(c, fiber.StatusOK, resolved[0])
}
