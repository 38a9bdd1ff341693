package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	supa "github.com/supabase-community/supabase-go"

	"motionify/portal-api/internal/notifier"
	"motionify/portal-api/models"
)

type stubProcessor struct{}

func (stubProcessor) RequestThumbnail(ctx context.Context, storagePath string) error { return nil }

type capturingNotifier struct {
	sent []notifier.Notification
}

func (c *capturingNotifier) Enqueue(n notifier.Notification) error {
	c.sent = append(c.sent, n)
	return nil
}

// approvalFixture is the shared cast for the submission tests: one project
// with revisions to spare, one video deliverable awaiting approval, and the
// client's primary contact submitting the review.
type approvalFixture struct {
	project     models.Project
	deliverable models.Deliverable
	member      models.ProjectMember
	staff       models.ProjectMember
}

func newApprovalFixture() approvalFixture {
	projectID := uuid.New()
	deliverableID := uuid.New()
	betaKey := fmt.Sprintf("%s/%s/beta.mp4", projectID, deliverableID)
	duration := 90.0

	return approvalFixture{
		project: models.Project{
			ID:             projectID,
			Name:           "Brand Film",
			TermsAccepted:  true,
			RevisionsTotal: 3,
			RevisionsUsed:  0,
		},
		deliverable: models.Deliverable{
			ID:            deliverableID,
			ProjectID:     projectID,
			Title:         "Launch Cut",
			Type:          models.DeliverableTypeVideo,
			Status:        "awaiting_approval",
			Progress:      60,
			BetaFileKey:   &betaKey,
			VideoDuration: &duration,
		},
		member: models.ProjectMember{
			ID:        uuid.New(),
			ProjectID: projectID,
			UserID:    uuid.New(),
			UserName:  "Dana Whitfield",
			UserEmail: "dana@client.example",
			Role:      models.RoleClientPrimaryContact,
		},
		staff: models.ProjectMember{
			ID:        uuid.New(),
			ProjectID: projectID,
			UserID:    uuid.New(),
			UserName:  "Riley Okafor",
			UserEmail: "riley@motionify.example",
			Role:      models.RoleProjectManager,
		},
	}
}

func newApprovalTestApp(t *testing.T, serverURL string) (*fiber.App, *capturingNotifier) {
	t.Helper()

	db, err := supa.NewClient(serverURL, "service-key", nil)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	captured := &capturingNotifier{}
	h := NewApplicationHandler(logger, db, stubProcessor{}, captured)

	app := fiber.New()
	app.Post("/api/v1/projects/:projectId/deliverables/:deliverableId/approval", h.SubmitApproval)
	return app, captured
}

func postApproval(t *testing.T, app *fiber.App, fx approvalFixture, payload fiber.Map) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	target := fmt.Sprintf("/api/v1/projects/%s/deliverables/%s/approval", fx.project.ID, fx.deliverable.ID)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	return resp
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// A submission whose deliverable was reviewed by a concurrent submission
// between read and write must not overwrite the concurrent record: the
// status-conditional update matches zero rows, the consumed revision is
// refunded, and the caller gets a conflict instead of a silently merged
// history.
func TestSubmitApprovalLostRaceRefundsAndConflicts(t *testing.T) {
	fx := newApprovalFixture()

	deliverableReads := 0
	var deliverablePatch url.Values
	var projectPatches []url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		q := r.URL.Query()

		switch {
		case table == "deliverables" && r.Method == http.MethodGet:
			deliverableReads++
			d := fx.deliverable
			if deliverableReads > 1 {
				// The concurrent submission already moved the deliverable on.
				d.Status = "revision_requested"
				d.Progress = 40
			}
			respondJSON(w, d)
		case table == "projects" && r.Method == http.MethodGet:
			respondJSON(w, fx.project)
		case table == "project_members" && r.Method == http.MethodGet:
			respondJSON(w, fx.member)
		case table == "deliverable_comments" && r.Method == http.MethodGet:
			respondJSON(w, []models.TimestampedComment{})
		case table == "projects" && r.Method == http.MethodPatch:
			projectPatches = append(projectPatches, q)
			w.Header().Set("Content-Range", "0-0/1")
			respondJSON(w, []models.Project{})
		case table == "deliverables" && r.Method == http.MethodPatch:
			deliverablePatch = q
			// Zero rows: the status filter no longer matches.
			w.Header().Set("Content-Range", "*/0")
			respondJSON(w, []models.Deliverable{})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusInternalServerError)
			respondJSON(w, map[string]string{"code": "500", "message": "unexpected request"})
		}
	}))
	defer srv.Close()

	app, captured := newApprovalTestApp(t, srv.URL)

	resp := postApproval(t, app, fx, fiber.Map{
		"user_id":  fx.member.UserID,
		"action":   models.ApprovalActionRejected,
		"feedback": "The color grade is too warm across the second half.",
	})

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "not allowed from status")

	// The write was conditional on the status this request validated against.
	require.NotNil(t, deliverablePatch)
	assert.Equal(t, "eq.awaiting_approval", deliverablePatch.Get("status"))

	// One consumption, one refund, both CAS-guarded on the counter.
	require.Len(t, projectPatches, 2)
	assert.Equal(t, "eq.0", projectPatches[0].Get("revisions_used"))
	assert.Equal(t, "eq.1", projectPatches[1].Get("revisions_used"))

	assert.Empty(t, captured.sent, "a lost submission must not notify anyone")
}

// When the quota CAS keeps losing while revisions remain, the caller gets a
// retryable conflict, not the quota-exhausted message.
func TestSubmitApprovalQuotaContentionIsRetryable(t *testing.T) {
	fx := newApprovalFixture()

	projectPatchCount := 0
	deliverablePatched := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")

		switch {
		case table == "deliverables" && r.Method == http.MethodGet:
			respondJSON(w, fx.deliverable)
		case table == "projects" && r.Method == http.MethodGet:
			respondJSON(w, fx.project)
		case table == "project_members" && r.Method == http.MethodGet:
			respondJSON(w, fx.member)
		case table == "deliverable_comments" && r.Method == http.MethodGet:
			respondJSON(w, []models.TimestampedComment{})
		case table == "projects" && r.Method == http.MethodPatch:
			projectPatchCount++
			// The counter never matches, yet re-reads keep showing quota.
			w.Header().Set("Content-Range", "*/0")
			respondJSON(w, []models.Project{})
		case table == "deliverables" && r.Method == http.MethodPatch:
			deliverablePatched = true
			respondJSON(w, []models.Deliverable{})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusInternalServerError)
			respondJSON(w, map[string]string{"code": "500", "message": "unexpected request"})
		}
	}))
	defer srv.Close()

	app, _ := newApprovalTestApp(t, srv.URL)

	resp := postApproval(t, app, fx, fiber.Map{
		"user_id":  fx.member.UserID,
		"action":   models.ApprovalActionRejected,
		"feedback": "The intro animation stutters on the logo reveal.",
	})

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "changed while submitting")
	assert.NotContains(t, string(body), "no revisions remaining")

	assert.Equal(t, 2, projectPatchCount, "the CAS retries once and then gives up")
	assert.False(t, deliverablePatched, "no status claim without a consumed revision")
}

// The winner of the race claims the review in one conditional write and the
// usual side effects follow: drafts cleared, staff notified.
func TestSubmitApprovalClaimWins(t *testing.T) {
	fx := newApprovalFixture()

	draftsCleared := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		q := r.URL.Query()

		switch {
		case table == "deliverables" && r.Method == http.MethodGet:
			respondJSON(w, fx.deliverable)
		case table == "projects" && r.Method == http.MethodGet:
			respondJSON(w, fx.project)
		case table == "project_members" && r.Method == http.MethodGet && q.Get("user_id") != "":
			respondJSON(w, fx.member)
		case table == "project_members" && r.Method == http.MethodGet:
			respondJSON(w, []models.ProjectMember{fx.staff})
		case table == "deliverable_comments" && r.Method == http.MethodGet:
			respondJSON(w, []models.TimestampedComment{})
		case table == "deliverable_comments" && r.Method == http.MethodDelete:
			draftsCleared = true
			w.Header().Set("Content-Range", "*/0")
			respondJSON(w, []models.TimestampedComment{})
		case table == "projects" && r.Method == http.MethodPatch:
			w.Header().Set("Content-Range", "0-0/1")
			respondJSON(w, []models.Project{})
		case table == "deliverables" && r.Method == http.MethodPatch:
			assert.Equal(t, "eq.awaiting_approval", q.Get("status"))
			updated := fx.deliverable
			updated.Status = "revision_requested"
			updated.Progress = 40
			w.Header().Set("Content-Range", "0-0/1")
			respondJSON(w, []models.Deliverable{updated})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusInternalServerError)
			respondJSON(w, map[string]string{"code": "500", "message": "unexpected request"})
		}
	}))
	defer srv.Close()

	app, captured := newApprovalTestApp(t, srv.URL)

	resp := postApproval(t, app, fx, fiber.Map{
		"user_id":  fx.member.UserID,
		"action":   models.ApprovalActionRejected,
		"feedback": "Please tighten the pacing of the interview section.",
	})

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, draftsCleared)

	require.Len(t, captured.sent, 1)
	assert.Equal(t, models.NotificationRevisionRequested, captured.sent[0].Type)
	assert.Equal(t, fx.staff.UserID, captured.sent[0].UserID)
}
