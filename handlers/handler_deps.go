package handlers

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	supa "github.com/supabase-community/supabase-go"

	"motionify/portal-api/internal/notifier"
	"motionify/portal-api/internal/workflow"
	"motionify/portal-api/models"
)

// ErrRecordNotFound is returned when a database record is not found.
var ErrRecordNotFound = errors.New("record not found")

var validate = validator.New()

// ProcessorClientInterface defines the operations handlers expect from the
// video-processor client. This allows for decoupling and easier testing.
type ProcessorClientInterface interface {
	RequestThumbnail(ctx context.Context, storagePath string) error
}

// NotifierInterface is the handlers' view of the notification dispatcher.
type NotifierInterface interface {
	Enqueue(notification notifier.Notification) error
}

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Logger    *logrus.Logger
	DB        *supa.Client
	Processor ProcessorClientInterface
	Notifier  NotifierInterface
}

// NewApplicationHandler creates a new ApplicationHandler with the given dependencies.
func NewApplicationHandler(logger *logrus.Logger, dbClient *supa.Client, processor ProcessorClientInterface, dispatcher NotifierInterface) *ApplicationHandler {
	return &ApplicationHandler{
		Logger:    logger,
		DB:        dbClient,
		Processor: processor,
		Notifier:  dispatcher,
	}
}

// getProjectByID fetches a project row.
func (h *ApplicationHandler) getProjectByID(projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	_, err := h.DB.From("projects").
		Select("*", "exact", false).
		Eq("id", projectID.String()).
		Single().
		ExecuteTo(&project)
	if err != nil {
		return nil, ErrRecordNotFound
	}
	return &project, nil
}

// getProjectMember resolves a user's membership in a project. Users outside
// the project get ErrRecordNotFound, which handlers surface as 403.
func (h *ApplicationHandler) getProjectMember(projectID, userID uuid.UUID) (*models.ProjectMember, error) {
	var member models.ProjectMember
	_, err := h.DB.From("project_members").
		Select("*", "exact", false).
		Eq("project_id", projectID.String()).
		Eq("user_id", userID.String()).
		Single().
		ExecuteTo(&member)
	if err != nil {
		return nil, ErrRecordNotFound
	}
	return &member, nil
}

// getDeliverableByID fetches a deliverable scoped to its project.
func (h *ApplicationHandler) getDeliverableByID(projectID, deliverableID uuid.UUID) (*models.Deliverable, error) {
	var deliverable models.Deliverable
	_, err := h.DB.From("deliverables").
		Select("*", "exact", false).
		Eq("id", deliverableID.String()).
		Eq("project_id", projectID.String()).
		Single().
		ExecuteTo(&deliverable)
	if err != nil {
		return nil, ErrRecordNotFound
	}
	return &deliverable, nil
}

// actorFor converts a project membership into a workflow actor.
func actorFor(member *models.ProjectMember) workflow.Actor {
	return workflow.Actor{
		ID:    member.UserID,
		Name:  member.UserName,
		Email: member.UserEmail,
		Role:  member.Role,
	}
}

// projectContextFor assembles the evaluator's project-level inputs.
func projectContextFor(project *models.Project) workflow.ProjectContext {
	return workflow.ProjectContext{
		TermsAccepted:   project.TermsAccepted,
		PaymentComplete: project.PaymentComplete,
		Quota:           workflow.NewRevisionQuota(project.RevisionsTotal, project.RevisionsUsed),
	}
}

// deliverableContextFor assembles the evaluator's deliverable-level inputs.
func deliverableContextFor(deliverable *models.Deliverable) workflow.DeliverableContext {
	return workflow.DeliverableContext{
		Status:   workflow.Status(deliverable.Status),
		HasVideo: deliverable.HasVideo(),
	}
}

// capabilitiesFor runs the permission evaluator for a member against a
// deliverable.
func capabilitiesFor(member *models.ProjectMember, project *models.Project, deliverable *models.Deliverable) workflow.Capabilities {
	return workflow.Evaluate(actorFor(member), projectContextFor(project), deliverableContextFor(deliverable))
}

// staffMembers lists the internal team members of a project, used for
// notification fan-out.
func (h *ApplicationHandler) staffMembers(projectID uuid.UUID) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	_, err := h.DB.From("project_members").
		Select("*", "", false).
		Eq("project_id", projectID.String()).
		In("role", []string{models.RoleMotionifyMember, models.RoleProjectManager, models.RoleAdmin}).
		ExecuteTo(&members)
	if err != nil {
		return nil, err
	}
	return members, nil
}

// primaryContact returns the client's primary contact for a project.
func (h *ApplicationHandler) primaryContact(projectID uuid.UUID) (*models.ProjectMember, error) {
	var member models.ProjectMember
	_, err := h.DB.From("project_members").
		Select("*", "exact", false).
		Eq("project_id", projectID.String()).
		Eq("role", models.RoleClientPrimaryContact).
		Single().
		ExecuteTo(&member)
	if err != nil {
		return nil, ErrRecordNotFound
	}
	return &member, nil
}

// notifyStaff fans a notification out to every internal team member on the
// project. Delivery failures are logged, never surfaced to the client.
func (h *ApplicationHandler) notifyStaff(projectID uuid.UUID, deliverableID *uuid.UUID, notificationType, title, message string) {
	members, err := h.staffMembers(projectID)
	if err != nil {
		h.Logger.Errorf("Could not list staff members for project %s: %v", projectID, err)
		return
	}
	pid := projectID
	for _, member := range members {
		if err := h.Notifier.Enqueue(notifier.Notification{
			UserID:        member.UserID,
			Type:          notificationType,
			Title:         title,
			Message:       message,
			ProjectID:     &pid,
			DeliverableID: deliverableID,
		}); err != nil {
			h.Logger.Errorf("Could not enqueue %s notification for user %s: %v", notificationType, member.UserID, err)
		}
	}
}

// notifyPrimaryContact sends a notification to the client's primary contact.
func (h *ApplicationHandler) notifyPrimaryContact(projectID uuid.UUID, deliverableID *uuid.UUID, notificationType, title, message string) {
	contact, err := h.primaryContact(projectID)
	if err != nil {
		h.Logger.Warnf("Project %s has no primary contact to notify", projectID)
		return
	}
	pid := projectID
	if err := h.Notifier.Enqueue(notifier.Notification{
		UserID:        contact.UserID,
		Type:          notificationType,
		Title:         title,
		Message:       message,
		ProjectID:     &pid,
		DeliverableID: deliverableID,
	}); err != nil {
		h.Logger.Errorf("Could not enqueue %s notification for primary contact: %v", notificationType, err)
	}
}
