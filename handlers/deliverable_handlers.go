package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/supabase-community/postgrest-go"

	"motionify/portal-api/internal/workflow"
	"motionify/portal-api/models"
	"motionify/portal-api/utils"
)

// CreateDeliverableRequest defines the expected JSON structure for creating a deliverable.
type CreateDeliverableRequest struct {
	UserID      uuid.UUID  `json:"user_id" validate:"required"`
	Title       string     `json:"title" validate:"required,min=1,max=255"`
	Description *string    `json:"description,omitempty"`
	Type        string     `json:"type" validate:"required,oneof=video image document"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// UpdateDeliverableRequest defines the PATCHable fields of a deliverable.
// Status is never patched directly; it only moves through the trigger
// endpoints.
type UpdateDeliverableRequest struct {
	UserID        uuid.UUID  `json:"user_id" validate:"required"`
	Title         *string    `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description   *string    `json:"description,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	VideoDuration *float64   `json:"video_duration,omitempty" validate:"omitempty,gt=0"`
}

// deliverableView is the wire shape for a deliverable, with the derived
// watermark flag attached.
type deliverableView struct {
	models.Deliverable
	Watermarked bool `json:"watermarked"`
}

func viewOf(d models.Deliverable) deliverableView {
	return deliverableView{Deliverable: d, Watermarked: d.Watermarked()}
}

// ListDeliverables returns all deliverables of a project, oldest first.
func (h *ApplicationHandler) ListDeliverables(c *fiber.Ctx) error {
	projectIDStr := c.Params("projectId")
	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid project ID format")
	}

	if _, err := h.getProjectByID(projectID); err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Project not found")
	}

	var deliverables []models.Deliverable
	_, err = h.DB.From("deliverables").
		Select("*", "", false).
		Eq("project_id", projectID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&deliverables)
	if err != nil {
		h.Logger.Errorf("Error fetching deliverables for project %s: %v", projectID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch deliverables")
	}

	views := make([]deliverableView, len(deliverables))
	for i, d := range deliverables {
		views[i] = viewOf(d)
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, views)
}

// GetDeliverable returns a single deliverable with its embedded approval
// history.
func (h *ApplicationHandler) GetDeliverable(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	h.Logger.WithFields(logrus.Fields{
		"project_id":     projectID,
		"deliverable_id": deliverable.ID,
		"status":         deliverable.Status,
	}).Debug("Fetched deliverable")

	return utils.RespondWithJSON(c, fiber.StatusOK, viewOf(*deliverable))
}

// CreateDeliverable creates a new deliverable in the pending status. Staff only.
func (h *ApplicationHandler) CreateDeliverable(c *fiber.Ctx) error {
	projectIDStr := c.Params("projectId")
	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid project ID format")
	}

	payload := new(CreateDeliverableRequest)
	if err := c.BodyParser(payload); err != nil {
		h.Logger.Errorf("Error parsing create deliverable payload: %v", err)
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

	caps := workflow.Evaluate(actorFor(member), projectContextFor(project), workflow.DeliverableContext{Status: workflow.StatusPending})
	if err := caps.Require(workflow.ActionCreateDeliverable); err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	now := time.Now()
	deliverable := models.Deliverable{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Title:       utils.SanitizeInput(payload.Title),
		Description: payload.Description,
		Type:        payload.Type,
		Status:      string(workflow.StatusPending),
		Progress:    workflow.ProgressFor(workflow.StatusPending),
		DueDate:     payload.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var created []models.Deliverable
	_, err = h.DB.From("deliverables").
		Insert(deliverable, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil || len(created) == 0 {
		h.Logger.Errorf("Error creating deliverable for project %s: %v", projectID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not create deliverable")
	}

	h.Logger.Infof("Created deliverable %s (%s) in project %s", created[0].ID, created[0].Title, projectID)
	return utils.RespondWithJSON(c, fiber.StatusCreated, viewOf(created[0]))
}

// UpdateDeliverable patches mutable metadata on a deliverable. Staff only;
// status and files move through their own endpoints.
func (h *ApplicationHandler) UpdateDeliverable(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	payload := new(UpdateDeliverableRequest)
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	if err := validate.Struct(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
	}

	member, err := h.getProjectMember(projectID, payload.UserID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusForbidden, "You are not a member of this project")
	}
	if !actorFor(member).IsStaff() {
		return utils.RespondWithError(c, fiber.StatusForbidden, "Only the Motionify team can edit deliverables")
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if payload.Title != nil {
		updates["title"] = utils.SanitizeInput(*payload.Title)
	}
	if payload.Description != nil {
		updates["description"] = *payload.Description
	}
	if payload.DueDate != nil {
		updates["due_date"] = *payload.DueDate
	}
	if payload.VideoDuration != nil {
		updates["video_duration"] = *payload.VideoDuration
	}
	if len(updates) == 1 {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "No updatable fields provided")
	}

	var updated []models.Deliverable
	_, err = h.DB.From("deliverables").
		Update(updates, "representation", "exact").
		Eq("id", deliverable.ID.String()).
		ExecuteTo(&updated)
	if err != nil || len(updated) == 0 {
		h.Logger.Errorf("Error updating deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not update deliverable")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, viewOf(updated[0]))
}

// StartWork moves a pending deliverable into production. Staff only.
func (h *ApplicationHandler) StartWork(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	payload := new(struct {
		UserID uuid.UUID `json:"user_id" validate:"required"`
	})
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "user_id is required")
	}

	member, err := h.getProjectMember(projectID, payload.UserID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusForbidden, "You are not a member of this project")
	}
	if !actorFor(member).IsStaff() {
		return utils.RespondWithError(c, fiber.StatusForbidden, "Only the Motionify team can start work on a deliverable")
	}

	newStatus, err := workflow.Transition(workflow.Status(deliverable.Status), workflow.TriggerStartWork)
	if err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	updated, err := h.applyStatus(deliverable.ID, newStatus, nil)
	if err != nil {
		h.Logger.Errorf("Error starting work on deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not update deliverable status")
	}

	h.Logger.Infof("Work started on deliverable %s by %s", deliverable.ID, member.UserName)
	return utils.RespondWithJSON(c, fiber.StatusOK, viewOf(*updated))
}

// SendForReview moves a beta-ready deliverable into the client's approval
// queue and notifies the primary contact.
func (h *ApplicationHandler) SendForReview(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	payload := new(struct {
		UserID uuid.UUID `json:"user_id" validate:"required"`
	})
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "user_id is required")
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
	if err := caps.Require(workflow.ActionSendForReview); err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	newStatus, err := workflow.Transition(workflow.Status(deliverable.Status), workflow.TriggerSendForReview)
	if err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	updated, err := h.applyStatus(deliverable.ID, newStatus, nil)
	if err != nil {
		h.Logger.Errorf("Error sending deliverable %s for review: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not update deliverable status")
	}

	deliverableID := deliverable.ID
	h.notifyPrimaryContact(projectID, &deliverableID, models.NotificationDeliverableReady,
		"A deliverable is ready for your review",
		fmt.Sprintf("%q is ready for review in %s.", deliverable.Title, project.Name))

	h.Logger.Infof("Deliverable %s sent for review by %s", deliverable.ID, member.UserName)
	return utils.RespondWithJSON(c, fiber.StatusOK, viewOf(*updated))
}

// ConfirmPayment records the balance payment for an approved deliverable.
// The endpoint trusts the upstream payment webhook; it marks the project
// paid, moves the deliverable to payment_pending, and releases the final
// files immediately when they have already been uploaded.
func (h *ApplicationHandler) ConfirmPayment(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	project, err := h.getProjectByID(projectID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Project not found")
	}

	newStatus, err := workflow.Transition(workflow.Status(deliverable.Status), workflow.TriggerConfirmPayment)
	if err != nil {
		return utils.RespondWithWorkflowError(c, err)
	}

	_, _, err = h.DB.From("projects").
		Update(map[string]interface{}{"payment_complete": true}, "", "exact").
		Eq("id", projectID.String()).
		Execute()
	if err != nil {
		h.Logger.Errorf("Error marking project %s as paid: %v", projectID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not record payment")
	}

	updated, err := h.applyStatus(deliverable.ID, newStatus, nil)
	if err != nil {
		h.Logger.Errorf("Error updating deliverable %s after payment: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not update deliverable status")
	}

	// When the final file is already in storage the deliverable can be
	// released in the same step.
	if updated.FinalFileKey != nil && *updated.FinalFileKey != "" {
		updated, err = h.deliverFinal(updated)
		if err != nil {
			h.Logger.Errorf("Error releasing final files for deliverable %s: %v", deliverable.ID, err)
			return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not release final files")
		}
		deliverableID := updated.ID
		h.notifyPrimaryContact(projectID, &deliverableID, models.NotificationFinalDelivered,
			"Your final files are ready",
			fmt.Sprintf("The final files for %q in %s are now available for download.", updated.Title, project.Name))
	}

	h.Logger.WithFields(logrus.Fields{
		"project_id":     projectID,
		"deliverable_id": deliverable.ID,
		"status":         updated.Status,
	}).Info("Payment confirmed")

	return utils.RespondWithJSON(c, fiber.StatusOK, viewOf(*updated))
}

// GetDeliverablePermissions evaluates the capability set for a user against a
// deliverable, returning the denial reason alongside each unavailable action.
func (h *ApplicationHandler) GetDeliverablePermissions(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "A valid user_id query parameter is required")
	}

	project, err := h.getProjectByID(projectID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Project not found")
	}
	member, err := h.getProjectMember(projectID, userID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusForbidden, "You are not a member of this project")
	}

	caps := capabilitiesFor(member, project, deliverable)

	denials := fiber.Map{}
	for _, action := range []workflow.Action{
		workflow.ActionApprove,
		workflow.ActionReject,
		workflow.ActionComment,
		workflow.ActionUploadBeta,
		workflow.ActionUploadFinal,
		workflow.ActionAccessFinal,
		workflow.ActionSendForReview,
		workflow.ActionCreateDeliverable,
	} {
		if reason := caps.DeniedReason(action); reason != "" {
			denials[string(action)] = reason
		}
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"capabilities":   caps,
		"denial_reasons": denials,
	})
}

// loadDeliverable parses the route params and fetches the deliverable. The
// third return value is the already-written error response, nil on success.
func (h *ApplicationHandler) loadDeliverable(c *fiber.Ctx) (uuid.UUID, *models.Deliverable, error) {
	projectID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return uuid.Nil, nil, utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid project ID format")
	}
	deliverableID, err := uuid.Parse(c.Params("deliverableId"))
	if err != nil {
		return uuid.Nil, nil, utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid deliverable ID format")
	}
	deliverable, err := h.getDeliverableByID(projectID, deliverableID)
	if err != nil {
		return uuid.Nil, nil, utils.RespondWithError(c, fiber.StatusNotFound, "Deliverable not found")
	}
	return projectID, deliverable, nil
}

// applyStatus persists a status change and its derived progress. extra holds
// any additional columns that must change in the same update.
func (h *ApplicationHandler) applyStatus(deliverableID uuid.UUID, status workflow.Status, extra map[string]interface{}) (*models.Deliverable, error) {
	updates := map[string]interface{}{
		"status":     string(status),
		"progress":   workflow.ProgressFor(status),
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	var updated []models.Deliverable
	_, err := h.DB.From("deliverables").
		Update(updates, "representation", "exact").
		Eq("id", deliverableID.String()).
		ExecuteTo(&updated)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, ErrRecordNotFound
	}
	return &updated[0], nil
}

// deliverFinal moves a paid deliverable to final_delivered and stamps the
// delivery and storage expiry times. Final files remain downloadable for one
// year after delivery.
func (h *ApplicationHandler) deliverFinal(deliverable *models.Deliverable) (*models.Deliverable, error) {
	newStatus, err := workflow.Transition(workflow.Status(deliverable.Status), workflow.TriggerDeliverFinal)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return h.applyStatus(deliverable.ID, newStatus, map[string]interface{}{
		"final_delivered_at": now,
		"expires_at":         now.AddDate(1, 0, 0),
	})
}
