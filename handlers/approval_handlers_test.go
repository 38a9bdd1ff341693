package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motionify/portal-api/models"
)

func TestAppendApprovalHistoryStartsEmpty(t *testing.T) {
	record := models.DeliverableApproval{
		ID:            uuid.New(),
		DeliverableID: uuid.New(),
		Action:        models.ApprovalActionApproved,
		Timestamp:     time.Now(),
		UserName:      "Dana",
	}

	encoded, err := appendApprovalHistory(nil, record)
	require.NoError(t, err)

	var history []models.DeliverableApproval
	require.NoError(t, json.Unmarshal(encoded, &history))
	require.Len(t, history, 1)
	assert.Equal(t, record.ID, history[0].ID)
	assert.Equal(t, models.ApprovalActionApproved, history[0].Action)
}

func TestAppendApprovalHistoryPreservesExistingEntries(t *testing.T) {
	deliverableID := uuid.New()
	first := models.DeliverableApproval{
		ID:            uuid.New(),
		DeliverableID: deliverableID,
		Action:        models.ApprovalActionRejected,
		Feedback:      "The color grade is too warm in the second half.",
	}
	stored, err := json.Marshal([]models.DeliverableApproval{first})
	require.NoError(t, err)

	second := models.DeliverableApproval{
		ID:            uuid.New(),
		DeliverableID: deliverableID,
		Action:        models.ApprovalActionApproved,
	}

	encoded, err := appendApprovalHistory(stored, second)
	require.NoError(t, err)

	var history []models.DeliverableApproval
	require.NoError(t, json.Unmarshal(encoded, &history))
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, first.Feedback, history[0].Feedback)
	assert.Equal(t, second.ID, history[1].ID)
}

func TestAppendApprovalHistoryRejectsCorruptColumn(t *testing.T) {
	_, err := appendApprovalHistory(json.RawMessage(`{"not":"a list"}`), models.DeliverableApproval{})
	assert.Error(t, err)
}

func TestDeliverableViewWatermarkFlag(t *testing.T) {
	beta := "projects/a/b/beta.mp4"
	final := "projects/a/b/final.mp4"

	d := models.Deliverable{Type: models.DeliverableTypeVideo, BetaFileKey: &beta}
	assert.True(t, viewOf(d).Watermarked)

	d.FinalFileKey = &final
	assert.False(t, viewOf(d).Watermarked)
}
