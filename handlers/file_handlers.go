package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"motionify/portal-api/internal/workflow"
	"motionify/portal-api/models"
	"motionify/portal-api/utils"
)

// ListFiles returns the stored files of a deliverable. Final files are
// omitted for members who cannot access them yet, so the portal never shows
// a download it would have to refuse.
func (h *ApplicationHandler) ListFiles(c *fiber.Ctx) error {
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

	var files []models.DeliverableFile
	_, err = h.DB.From("deliverable_files").
		Select("*", "", false).
		Eq("deliverable_id", deliverable.ID.String()).
		Order("uploaded_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&files)
	if err != nil {
		h.Logger.Errorf("Error fetching files for deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch files")
	}

	caps := capabilitiesFor(member, project, deliverable)
	if !caps.CanAccessFinal && !actorFor(member).IsStaff() {
		visible := files[:0]
		for _, f := range files {
			if !f.IsFinal {
				visible = append(visible, f)
			}
		}
		files = visible
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, files)
}

// DeleteFile removes a stored file record. Staff only; the storage object is
// cleaned up by a retention job, not inline.
func (h *ApplicationHandler) DeleteFile(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}
	fileID, err := uuid.Parse(c.Params("fileId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid file ID format")
	}
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "A valid user_id query parameter is required")
	}

	member, err := h.getProjectMember(projectID, userID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusForbidden, "You are not a member of this project")
	}
	if !actorFor(member).IsStaff() {
		return utils.RespondWithError(c, fiber.StatusForbidden, "Only the Motionify team can delete files")
	}

	file, err := h.getFileRecord(deliverable.ID, fileID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "File record not found")
	}

	// Detaching the active beta or final file would silently break the
	// deliverable's lifecycle invariants.
	if deliverable.BetaFileKey != nil && *deliverable.BetaFileKey == file.FileKey {
		return utils.RespondWithWorkflowError(c, &workflow.ForbiddenError{
			Action: workflow.ActionUploadBeta,
			Reason: "this file is the deliverable's current preview; upload a replacement first",
		})
	}
	if deliverable.FinalFileKey != nil && *deliverable.FinalFileKey == file.FileKey {
		return utils.RespondWithWorkflowError(c, &workflow.ForbiddenError{
			Action: workflow.ActionUploadFinal,
			Reason: "this file is the deliverable's released final; it cannot be deleted",
		})
	}

	if err := h.deleteFileRecord(fileID); err != nil {
		h.Logger.Errorf("Error deleting file record %s: %v", fileID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not delete file")
	}

	h.Logger.Infof("File %s deleted from deliverable %s by %s", fileID, deliverable.ID, member.UserName)
	return c.SendStatus(fiber.StatusNoContent)
}
