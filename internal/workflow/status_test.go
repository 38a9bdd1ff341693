package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		trigger Trigger
		want    Status
	}{
		{"first beta upload", StatusPending, TriggerUploadBeta, StatusBetaReady},
		{"work started", StatusPending, TriggerStartWork, StatusInProgress},
		{"beta from in progress", StatusInProgress, TriggerUploadBeta, StatusBetaReady},
		{"send for review", StatusBetaReady, TriggerSendForReview, StatusAwaitingApproval},
		{"client approves", StatusAwaitingApproval, TriggerApprove, StatusApproved},
		{"client rejects", StatusAwaitingApproval, TriggerRequestRevision, StatusRevisionRequested},
		{"beta reupload loops back", StatusRevisionRequested, TriggerUploadBeta, StatusBetaReady},
		{"balance payment confirmed", StatusApproved, TriggerConfirmPayment, StatusPaymentPending},
		{"final release", StatusPaymentPending, TriggerDeliverFinal, StatusFinalDelivered},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transition(tc.from, tc.trigger)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTransitionRejectsEverythingOutsideTheTable(t *testing.T) {
	statuses := []Status{
		StatusPending, StatusInProgress, StatusBetaReady, StatusAwaitingApproval,
		StatusApproved, StatusRevisionRequested, StatusPaymentPending, StatusFinalDelivered,
	}
	triggers := []Trigger{
		TriggerStartWork, TriggerUploadBeta, TriggerSendForReview, TriggerApprove,
		TriggerRequestRevision, TriggerConfirmPayment, TriggerDeliverFinal,
	}

	for _, from := range statuses {
		for _, trigger := range triggers {
			if _, legal := transitions[from][trigger]; legal {
				continue
			}
			got, err := Transition(from, trigger)
			require.Error(t, err, "status %s, trigger %s", from, trigger)
			assert.True(t, IsInvalidTransition(err))
			assert.Equal(t, from, got, "status must be unchanged on an invalid trigger")
		}
	}
}

func TestApprovePendingDeliverableIsRejected(t *testing.T) {
	got, err := Transition(StatusPending, TriggerApprove)

	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, StatusPending, got)
	assert.Contains(t, err.Error(), "invalid transition")
}

func TestProgressForIsAPureLookup(t *testing.T) {
	expected := map[Status]int{
		StatusPending:           0,
		StatusInProgress:        25,
		StatusBetaReady:         50,
		StatusAwaitingApproval:  60,
		StatusRevisionRequested: 40,
		StatusApproved:          75,
		StatusPaymentPending:    85,
		StatusFinalDelivered:    100,
	}

	for status, percent := range expected {
		assert.Equal(t, percent, ProgressFor(status))
		// Same input, same output: the derivation depends on nothing else.
		assert.Equal(t, ProgressFor(status), ProgressFor(status))
	}

	assert.Equal(t, 0, ProgressFor(Status("bogus")))
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(StatusFinalDelivered))
	assert.False(t, Terminal(StatusApproved))
	assert.False(t, Terminal(StatusPending))
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusPending))
	assert.True(t, ValidStatus(StatusPaymentPending))
	assert.False(t, ValidStatus(Status("archived")))
	assert.False(t, ValidStatus(Status("")))
}
