package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"motionify/portal-api/config"
	"motionify/portal-api/internal/workflow"
	"motionify/portal-api/models"
	"motionify/portal-api/utils"
)

// InitiateUploadRequest defines the expected JSON structure for initiating a
// deliverable file upload.
type InitiateUploadRequest struct {
	UserID      uuid.UUID `json:"user_id" validate:"required"`
	FileName    string    `json:"file_name" validate:"required"`
	ContentType string    `json:"content_type" validate:"required"`
	FileSize    *int64    `json:"file_size,omitempty" validate:"omitempty,gt=0"`
	Category    string    `json:"category" validate:"required,oneof=beta final attachment"`
}

// InitiateDeliverableUpload creates a file record and returns a presigned URL
// the caller PUTs the file to. Beta and final uploads are permission-gated to
// staff and to the right point in the deliverable lifecycle; attachments only
// require project membership.
func (h *ApplicationHandler) InitiateDeliverableUpload(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	payload := new(InitiateUploadRequest)
	if err := c.BodyParser(payload); err != nil {
		h.Logger.Errorf("Error parsing initiate upload payload: %v", err)
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
	switch payload.Category {
	case models.FileCategoryBeta:
		if err := caps.Require(workflow.ActionUploadBeta); err != nil {
			return utils.RespondWithWorkflowError(c, err)
		}
	case models.FileCategoryFinal:
		if err := caps.Require(workflow.ActionUploadFinal); err != nil {
			return utils.RespondWithWorkflowError(c, err)
		}
	}

	fileID := uuid.New()
	fileExtension := filepath.Ext(payload.FileName)
	// Object path inside the bucket: {project}/{deliverable}/{file uuid}.{ext}
	storagePath := fmt.Sprintf("%s/%s/%s%s", projectID, deliverable.ID, fileID, fileExtension)

	uploadedBy := payload.UserID
	fileRecord := models.DeliverableFile{
		ID:            fileID,
		DeliverableID: deliverable.ID,
		FileKey:       storagePath,
		FileName:      payload.FileName,
		FileSize:      payload.FileSize,
		MimeType:      &payload.ContentType,
		FileCategory:  payload.Category,
		IsFinal:       payload.Category == models.FileCategoryFinal,
		UploadedBy:    &uploadedBy,
		UploadedAt:    time.Now(),
	}

	var created []models.DeliverableFile
	_, err = h.DB.From("deliverable_files").
		Insert(fileRecord, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil || len(created) == 0 {
		h.Logger.Errorf("Error creating file record for deliverable %s: %v", deliverable.ID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not create file record")
	}

	signedUploadURLResponse, err := h.DB.Storage.CreateSignedUploadUrl(config.StorageBucket, storagePath)
	if err != nil {
		h.Logger.Errorf("Error generating signed upload URL for path '%s': %v", storagePath, err)
		// The orphaned record would otherwise block retries of the same file.
		if deleteErr := h.deleteFileRecord(fileID); deleteErr != nil {
			h.Logger.Errorf("Additionally, failed to delete file record %s after signed URL error: %v", fileID, deleteErr)
		}
		return utils.RespondWithError(c, fiber.StatusInternalServerError, fmt.Sprintf("Could not generate upload URL: %v", err))
	}

	uploadURL := absoluteStorageURL(signedUploadURLResponse.Url)

	h.Logger.WithFields(logrus.Fields{
		"deliverable_id": deliverable.ID,
		"file_id":        fileID,
		"category":       payload.Category,
		"storage_path":   storagePath,
	}).Info("Upload initiated")

	return utils.RespondWithJSON(c, fiber.StatusCreated, fiber.Map{
		"file":       created[0],
		"upload_url": uploadURL,
		"method":     "PUT",
		"headers": fiber.Map{
			"Content-Type": payload.ContentType,
		},
	})
}

// CompleteDeliverableUpload is called after the file has been PUT to the
// presigned URL. Beta uploads attach the preview to the deliverable and move
// it to beta_ready; final uploads attach the master and release it right
// away when payment has already cleared.
func (h *ApplicationHandler) CompleteDeliverableUpload(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}
	fileID, err := uuid.Parse(c.Params("fileId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid file ID format")
	}

	file, err := h.getFileRecord(deliverable.ID, fileID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "File record not found")
	}

	switch file.FileCategory {
	case models.FileCategoryBeta:
		newStatus, err := workflow.Transition(workflow.Status(deliverable.Status), workflow.TriggerUploadBeta)
		if err != nil {
			return utils.RespondWithWorkflowError(c, err)
		}
		updated, err := h.applyStatus(deliverable.ID, newStatus, map[string]interface{}{
			"beta_file_key": file.FileKey,
		})
		if err != nil {
			h.Logger.Errorf("Error attaching beta file to deliverable %s: %v", deliverable.ID, err)
			return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not attach the uploaded file")
		}
		if deliverable.Type == models.DeliverableTypeVideo {
			if err := h.Processor.RequestThumbnail(context.Background(), file.FileKey); err != nil {
				h.Logger.Warnf("Thumbnail request for %s failed: %v", file.FileKey, err)
			}
		}
		h.Logger.Infof("Beta file %s attached to deliverable %s", fileID, deliverable.ID)
		return utils.RespondWithJSON(c, fiber.StatusOK, viewOf(*updated))

	case models.FileCategoryFinal:
		updated, err := h.applyStatus(deliverable.ID, workflow.Status(deliverable.Status), map[string]interface{}{
			"final_file_key": file.FileKey,
		})
		if err != nil {
			h.Logger.Errorf("Error attaching final file to deliverable %s: %v", deliverable.ID, err)
			return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not attach the uploaded file")
		}
		if workflow.Status(updated.Status) == workflow.StatusPaymentPending {
			updated, err = h.deliverFinal(updated)
			if err != nil {
				h.Logger.Errorf("Error releasing final files for deliverable %s: %v", deliverable.ID, err)
				return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not release final files")
			}
			deliverableID := updated.ID
			h.notifyPrimaryContact(projectID, &deliverableID, models.NotificationFinalDelivered,
				"Your final files are ready",
				fmt.Sprintf("The final files for %q are now available for download.", updated.Title))
		}
		h.Logger.Infof("Final file %s attached to deliverable %s", fileID, deliverable.ID)
		return utils.RespondWithJSON(c, fiber.StatusOK, viewOf(*updated))
	}

	// Attachments and thumbnails need no lifecycle change.
	return utils.RespondWithJSON(c, fiber.StatusOK, file)
}

// GetDownloadURL returns a short-lived signed URL for a stored file. Final
// files are gated on delivery, payment and terms; everything else only needs
// project membership.
func (h *ApplicationHandler) GetDownloadURL(c *fiber.Ctx) error {
	projectID, deliverable, errResp := h.loadDeliverable(c)
	if errResp != nil {
		return errResp
	}

	fileID, err := uuid.Parse(c.Query("file_id"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "A valid file_id query parameter is required")
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

	file, err := h.getFileRecord(deliverable.ID, fileID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusNotFound, "File record not found")
	}

	if file.IsFinal {
		caps := capabilitiesFor(member, project, deliverable)
		if err := caps.Require(workflow.ActionAccessFinal); err != nil {
			return utils.RespondWithWorkflowError(c, err)
		}
	}

	const expiresInSeconds = 3600
	signed, err := h.DB.Storage.CreateSignedUrl(config.StorageBucket, file.FileKey, expiresInSeconds)
	if err != nil {
		h.Logger.Errorf("Error signing download URL for '%s': %v", file.FileKey, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not generate download URL")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"file_id":      file.ID,
		"file_name":    file.FileName,
		"download_url": absoluteStorageURL(signed.SignedURL),
		"expires_in":   expiresInSeconds,
	})
}

func (h *ApplicationHandler) getFileRecord(deliverableID, fileID uuid.UUID) (*models.DeliverableFile, error) {
	var file models.DeliverableFile
	_, err := h.DB.From("deliverable_files").
		Select("*", "exact", false).
		Eq("id", fileID.String()).
		Eq("deliverable_id", deliverableID.String()).
		Single().
		ExecuteTo(&file)
	if err != nil {
		return nil, ErrRecordNotFound
	}
	return &file, nil
}

func (h *ApplicationHandler) deleteFileRecord(fileID uuid.UUID) error {
	_, _, err := h.DB.From("deliverable_files").
		Delete("minimal", "exact").
		Eq("id", fileID.String()).
		Execute()
	return err
}

// absoluteStorageURL makes a storage URL absolute. The storage API sometimes
// returns paths relative to the Supabase host.
func absoluteStorageURL(url string) string {
	if strings.HasPrefix(url, "http") {
		return url
	}
	base := config.GetSupabaseURL()
	if strings.HasPrefix(url, "/") {
		return base + url
	}
	return base + "/" + url
}
