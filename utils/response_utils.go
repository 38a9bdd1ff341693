package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"motionify/portal-api/internal/workflow"
)

// RespondWithError sends a JSON error response.
func RespondWithError(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}

// RespondWithJSON sends a JSON success response.
func RespondWithJSON(c *fiber.Ctx, statusCode int, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

// RespondWithWorkflowError maps the workflow error taxonomy onto HTTP
// statuses: invalid transitions and duplicate pending requests are conflicts,
// permission failures are 403 with the denial reason, validation failures are
// 400, exhausted quota is 409 so the client can offer the additional-revision
// escape hatch.
func RespondWithWorkflowError(c *fiber.Ctx, err error) error {
	switch {
	case workflow.IsValidation(err):
		return RespondWithError(c, fiber.StatusBadRequest, err.Error())
	case workflow.IsForbidden(err):
		var fe *workflow.ForbiddenError
		errors.As(err, &fe)
		return RespondWithError(c, fiber.StatusForbidden, fe.Reason)
	case workflow.IsInvalidTransition(err):
		return RespondWithError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrQuotaExhausted):
		return RespondWithError(c, fiber.StatusConflict, "no revisions remaining for this project")
	case errors.Is(err, workflow.ErrQuotaConflict):
		return RespondWithError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrDuplicatePendingRequest):
		return RespondWithError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrCommentNotFound):
		return RespondWithError(c, fiber.StatusNotFound, "Comment not found")
	}
	return RespondWithError(c, fiber.StatusInternalServerError, err.Error())
}

// FormatValidationErrors formats validation errors from validator/v10.
func FormatValidationErrors(err error) []string {
	var errs []string
	if err != nil {
		for _, err := range err.(validator.ValidationErrors) {
			element := fmt.Sprintf("Field '%s' failed on the '%s' tag", err.Field(), err.Tag())
			if err.Param() != "" {
				element = fmt.Sprintf("%s (value: %s)", element, err.Param())
			}
			errs = append(errs, element)
		}
	}
	return errs
}

// SanitizeInput trims surrounding whitespace from user-supplied text fields.
func SanitizeInput(input string) string {
	return strings.TrimSpace(input)
}
