package workflow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motionify/portal-api/models"
)

func actorWithRole(role string) Actor {
	return Actor{ID: uuid.New(), Name: "Test User", Email: "test@example.com", Role: role}
}

func openProject() ProjectContext {
	return ProjectContext{
		TermsAccepted:   true,
		PaymentComplete: true,
		Quota:           NewRevisionQuota(3, 0),
	}
}

func TestPrimaryContactCanApproveWhileAwaitingApproval(t *testing.T) {
	caps := Evaluate(actorWithRole(models.RoleClientPrimaryContact), openProject(),
		DeliverableContext{Status: StatusAwaitingApproval, HasVideo: true})

	assert.True(t, caps.CanApprove)
	assert.True(t, caps.CanReject)
	assert.True(t, caps.CanComment)
	assert.True(t, caps.IsClientPM)
	assert.Empty(t, caps.DeniedReason(ActionApprove))
}

func TestNonPrimaryClientNeverApproves(t *testing.T) {
	statuses := []Status{
		StatusPending, StatusInProgress, StatusBetaReady, StatusAwaitingApproval,
		StatusApproved, StatusRevisionRequested, StatusPaymentPending, StatusFinalDelivered,
	}

	for _, status := range statuses {
		caps := Evaluate(actorWithRole(models.RoleClientTeamMember), openProject(),
			DeliverableContext{Status: status, HasVideo: true})

		assert.False(t, caps.CanApprove, "status %s", status)
		assert.False(t, caps.CanReject, "status %s", status)
		assert.NotEmpty(t, caps.DeniedReason(ActionApprove), "status %s", status)
		assert.NotEmpty(t, caps.DeniedReason(ActionReject), "status %s", status)

		// Team members can still leave timeline comments once a video exists.
		if status != StatusPending {
			assert.True(t, caps.CanComment, "status %s", status)
		}
	}
}

func TestApproveDeniedOutsideAwaitingApproval(t *testing.T) {
	caps := Evaluate(actorWithRole(models.RoleClientPrimaryContact), openProject(),
		DeliverableContext{Status: StatusBetaReady, HasVideo: true})

	assert.False(t, caps.CanApprove)
	assert.Equal(t, "this deliverable is not awaiting your approval", caps.DeniedReason(ActionApprove))
}

func TestRejectDeniedWhenQuotaExhausted(t *testing.T) {
	project := openProject()
	project.Quota = NewRevisionQuota(3, 3)

	caps := Evaluate(actorWithRole(models.RoleClientPrimaryContact), project,
		DeliverableContext{Status: StatusAwaitingApproval, HasVideo: true})

	assert.True(t, caps.CanApprove, "approval stays open with an exhausted quota")
	assert.False(t, caps.CanReject)
	assert.Contains(t, caps.DeniedReason(ActionReject), "no revisions remaining")
}

func TestRejectBlockedByQuotaSurfacesQuotaError(t *testing.T) {
	project := openProject()
	project.Quota = NewRevisionQuota(3, 3)

	caps := Evaluate(actorWithRole(models.RoleClientPrimaryContact), project,
		DeliverableContext{Status: StatusAwaitingApproval, HasVideo: true})

	err := caps.Require(ActionReject)
	require.ErrorIs(t, err, ErrQuotaExhausted)

	// Denials rooted in role or status stay permission errors.
	teamMember := Evaluate(actorWithRole(models.RoleClientTeamMember), project,
		DeliverableContext{Status: StatusAwaitingApproval, HasVideo: true})
	assert.True(t, IsForbidden(teamMember.Require(ActionReject)))
}

func TestFinalAccessGates(t *testing.T) {
	cases := []struct {
		name       string
		status     Status
		payment    bool
		terms      bool
		want       bool
		wantReason string
	}{
		{"released and paid", StatusFinalDelivered, true, true, true, ""},
		{"not yet delivered", StatusApproved, true, true, false, "final files have not been released yet"},
		{"payment outstanding", StatusFinalDelivered, false, true, false, "payment not completed"},
		{"terms not accepted", StatusFinalDelivered, true, false, false, "terms not accepted"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			project := ProjectContext{TermsAccepted: tc.terms, PaymentComplete: tc.payment, Quota: NewRevisionQuota(3, 0)}
			caps := Evaluate(actorWithRole(models.RoleClientPrimaryContact), project,
				DeliverableContext{Status: tc.status, HasVideo: true})

			assert.Equal(t, tc.want, caps.CanAccessFinal)
			assert.Equal(t, tc.wantReason, caps.DeniedReason(ActionAccessFinal))
		})
	}
}

func TestStaffUploadWindows(t *testing.T) {
	staff := actorWithRole(models.RoleMotionifyMember)

	betaOK := map[Status]bool{
		StatusPending: true, StatusInProgress: true, StatusRevisionRequested: true,
	}
	finalOK := map[Status]bool{
		StatusApproved: true, StatusPaymentPending: true,
	}

	statuses := []Status{
		StatusPending, StatusInProgress, StatusBetaReady, StatusAwaitingApproval,
		StatusApproved, StatusRevisionRequested, StatusPaymentPending, StatusFinalDelivered,
	}
	for _, status := range statuses {
		caps := Evaluate(staff, openProject(), DeliverableContext{Status: status, HasVideo: true})

		assert.Equal(t, betaOK[status], caps.CanUploadBeta, "beta upload at %s", status)
		assert.Equal(t, finalOK[status], caps.CanUploadFinal, "final upload at %s", status)
		assert.Equal(t, status == StatusBetaReady, caps.CanSendForReview, "send for review at %s", status)
		assert.True(t, caps.CanCreateDeliverable)
		assert.False(t, caps.CanApprove, "staff never approve on the client's behalf")
	}
}

func TestClientCannotUploadOrSendForReview(t *testing.T) {
	caps := Evaluate(actorWithRole(models.RoleClientPrimaryContact), openProject(),
		DeliverableContext{Status: StatusBetaReady, HasVideo: true})

	assert.False(t, caps.CanUploadBeta)
	assert.False(t, caps.CanUploadFinal)
	assert.False(t, caps.CanSendForReview)
	assert.False(t, caps.CanCreateDeliverable)
	assert.NotEmpty(t, caps.DeniedReason(ActionUploadBeta))
	assert.NotEmpty(t, caps.DeniedReason(ActionSendForReview))
}

func TestCommentGating(t *testing.T) {
	t.Run("no video yet", func(t *testing.T) {
		caps := Evaluate(actorWithRole(models.RoleClientTeamMember), openProject(),
			DeliverableContext{Status: StatusInProgress, HasVideo: false})
		assert.False(t, caps.CanComment)
		assert.NotEmpty(t, caps.DeniedReason(ActionComment))
	})

	t.Run("client before terms acceptance", func(t *testing.T) {
		project := openProject()
		project.TermsAccepted = false
		caps := Evaluate(actorWithRole(models.RoleClientTeamMember), project,
			DeliverableContext{Status: StatusAwaitingApproval, HasVideo: true})
		assert.False(t, caps.CanComment)
		assert.Equal(t, "terms not accepted", caps.DeniedReason(ActionComment))
	})

	t.Run("staff unaffected by terms gate", func(t *testing.T) {
		project := openProject()
		project.TermsAccepted = false
		caps := Evaluate(actorWithRole(models.RoleProjectManager), project,
			DeliverableContext{Status: StatusAwaitingApproval, HasVideo: true})
		assert.True(t, caps.CanComment)
	})
}

func TestDeniedReasonNeverEmptyForDeniedAction(t *testing.T) {
	actors := []Actor{
		actorWithRole(models.RoleClientPrimaryContact),
		actorWithRole(models.RoleClientTeamMember),
		actorWithRole(models.RoleMotionifyMember),
		actorWithRole(models.RoleProjectManager),
		actorWithRole(models.RoleAdmin),
	}
	actions := []Action{
		ActionApprove, ActionReject, ActionComment, ActionUploadBeta,
		ActionUploadFinal, ActionAccessFinal, ActionSendForReview, ActionCreateDeliverable,
	}
	statuses := []Status{
		StatusPending, StatusInProgress, StatusBetaReady, StatusAwaitingApproval,
		StatusApproved, StatusRevisionRequested, StatusPaymentPending, StatusFinalDelivered,
	}

	for _, actor := range actors {
		for _, status := range statuses {
			caps := Evaluate(actor, openProject(), DeliverableContext{Status: status, HasVideo: true})
			for _, action := range actions {
				if caps.Allows(action) {
					assert.Empty(t, caps.DeniedReason(action))
					assert.NoError(t, caps.Require(action))
				} else {
					assert.NotEmpty(t, caps.DeniedReason(action),
						"role %s, status %s, action %s", actor.Role, status, action)
					err := caps.Require(action)
					require.Error(t, err)
					assert.True(t, IsForbidden(err))
				}
			}
		}
	}
}
