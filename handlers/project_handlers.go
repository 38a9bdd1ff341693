package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"motionify/portal-api/internal/workflow"
	"motionify/portal-api/models"
	"motionify/portal-api/utils"
)

// GetProject returns a project together with its team membership and the
// revision quota block the portal header renders.
func (h *ApplicationHandler) GetProject(c *fiber.Ctx) error {
	projectIDStr := c.Params("projectId")
	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid project ID format")
	}

	project, err := h.getProjectByID(projectID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Project not found")
	}

	var members []models.ProjectMember
	_, err = h.DB.From("project_members").
		Select("*", "", false).
		Eq("project_id", projectID.String()).
		ExecuteTo(&members)
	if err != nil {
		h.Logger.Errorf("Error fetching members for project %s: %v", projectID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch project members")
	}

	quota := workflow.NewRevisionQuota(project.RevisionsTotal, project.RevisionsUsed)

	h.Logger.WithFields(logrus.Fields{
		"project_id":          projectID,
		"members":             len(members),
		"revisions_remaining": quota.Remaining,
	}).Info("Fetched project")

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"project": project,
		"members": members,
		"quota":   quota,
	})
}

// AcceptTerms marks the project terms as accepted. Only the client's primary
// contact may accept on behalf of the client team.
func (h *ApplicationHandler) AcceptTerms(c *fiber.Ctx) error {
	projectIDStr := c.Params("projectId")
	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid project ID format")
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
	if member.Role != models.RoleClientPrimaryContact {
		return utils.RespondWithError(c, fiber.StatusForbidden, "Only the client's primary contact can accept the project terms")
	}

	var updated []models.Project
	_, err = h.DB.From("projects").
		Update(map[string]interface{}{"terms_accepted": true}, "representation", "exact").
		Eq("id", projectID.String()).
		ExecuteTo(&updated)
	if err != nil {
		h.Logger.Errorf("Error accepting terms for project %s: %v", projectID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not update project")
	}

	h.Logger.Infof("Terms accepted for project %s by %s", projectID, member.UserName)
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"terms_accepted": true})
}
