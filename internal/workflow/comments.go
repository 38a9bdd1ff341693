package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"motionify/portal-api/models"
)

// NearbyCommentWindow is the UI heuristic window (seconds) for treating a new
// comment as an edit of an existing marker. It is not an identity rule: the
// ledger happily holds multiple comments at nearby timestamps.
const NearbyCommentWindow = 0.5

// CommentLedger is the mutable draft list of timestamped comments for one
// deliverable. It enforces timestamp bounds and the author-or-primary-contact
// editing rule; it knows nothing about video playback.
type CommentLedger struct {
	deliverableID uuid.UUID
	videoDuration *float64
	comments      []models.TimestampedComment
}

// NewCommentLedger builds a ledger over the existing draft comments of a
// deliverable. videoDuration may be nil when the duration is not yet known,
// in which case only the lower timestamp bound is enforced.
func NewCommentLedger(deliverableID uuid.UUID, videoDuration *float64, existing []models.TimestampedComment) *CommentLedger {
	ledger := &CommentLedger{
		deliverableID: deliverableID,
		videoDuration: videoDuration,
		comments:      make([]models.TimestampedComment, len(existing)),
	}
	copy(ledger.comments, existing)
	return ledger
}

// Len returns the number of draft comments.
func (l *CommentLedger) Len() int {
	return len(l.comments)
}

// Comments returns a copy of the current draft list.
func (l *CommentLedger) Comments() []models.TimestampedComment {
	return l.Snapshot()
}

// Get returns the comment with the given id.
func (l *CommentLedger) Get(id uuid.UUID) (models.TimestampedComment, error) {
	for _, c := range l.comments {
		if c.ID == id {
			return c, nil
		}
	}
	return models.TimestampedComment{}, ErrCommentNotFound
}

// NearestTo returns the draft comment closest to the given timestamp within
// NearbyCommentWindow, for the edit-vs-add UI heuristic. The boolean result
// is false when no comment is that close.
func (l *CommentLedger) NearestTo(timestamp float64) (models.TimestampedComment, bool) {
	best := models.TimestampedComment{}
	bestDelta := NearbyCommentWindow
	found := false
	for _, c := range l.comments {
		delta := c.Timestamp - timestamp
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			best, bestDelta, found = c, delta, true
		}
	}
	return best, found
}

// Add appends a new draft comment by the author. Each comment gets its own
// id even when its timestamp is close to an existing marker.
func (l *CommentLedger) Add(timestamp float64, text string, author Actor) (models.TimestampedComment, error) {
	if err := l.validateTimestamp(timestamp); err != nil {
		return models.TimestampedComment{}, err
	}
	if strings.TrimSpace(text) == "" {
		return models.TimestampedComment{}, &ValidationError{Field: "comment", Message: "comment text cannot be empty"}
	}

	now := time.Now()
	comment := models.TimestampedComment{
		ID:            uuid.New(),
		DeliverableID: l.deliverableID,
		Timestamp:     timestamp,
		Comment:       text,
		UserID:        author.ID,
		UserName:      author.Name,
		Resolved:      false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	l.comments = append(l.comments, comment)
	return comment, nil
}

// Update replaces the text of an existing draft comment. Only the comment's
// author or the client's primary contact may edit it.
func (l *CommentLedger) Update(id uuid.UUID, text string, requester Actor) (models.TimestampedComment, error) {
	if strings.TrimSpace(text) == "" {
		return models.TimestampedComment{}, &ValidationError{Field: "comment", Message: "comment text cannot be empty"}
	}
	for i, c := range l.comments {
		if c.ID != id {
			continue
		}
		if err := authorizeCommentEdit(c, requester); err != nil {
			return models.TimestampedComment{}, err
		}
		l.comments[i].Comment = text
		l.comments[i].UpdatedAt = time.Now()
		return l.comments[i], nil
	}
	return models.TimestampedComment{}, ErrCommentNotFound
}

// Remove deletes a draft comment under the same authorization rule as Update.
func (l *CommentLedger) Remove(id uuid.UUID, requester Actor) error {
	for i, c := range l.comments {
		if c.ID != id {
			continue
		}
		if err := authorizeCommentEdit(c, requester); err != nil {
			return err
		}
		l.comments = append(l.comments[:i], l.comments[i+1:]...)
		return nil
	}
	return ErrCommentNotFound
}

// SetResolved marks a draft comment resolved or unresolved. Staff may resolve
// any comment; clients are bound by the editing rule.
func (l *CommentLedger) SetResolved(id uuid.UUID, resolved bool, requester Actor) (models.TimestampedComment, error) {
	for i, c := range l.comments {
		if c.ID != id {
			continue
		}
		if !requester.IsStaff() {
			if err := authorizeCommentEdit(c, requester); err != nil {
				return models.TimestampedComment{}, err
			}
		}
		l.comments[i].Resolved = resolved
		l.comments[i].UpdatedAt = time.Now()
		return l.comments[i], nil
	}
	return models.TimestampedComment{}, ErrCommentNotFound
}

// Snapshot deep-copies the current draft list for embedding into a submitted
// approval record. Later mutation of the ledger never alters a snapshot.
func (l *CommentLedger) Snapshot() []models.TimestampedComment {
	snapshot := make([]models.TimestampedComment, len(l.comments))
	for i, c := range l.comments {
		out := c
		if c.UserAvatar != nil {
			avatar := *c.UserAvatar
			out.UserAvatar = &avatar
		}
		snapshot[i] = out
	}
	return snapshot
}

func (l *CommentLedger) validateTimestamp(timestamp float64) error {
	if timestamp < 0 {
		return &ValidationError{Field: "timestamp", Message: "timestamp cannot be negative"}
	}
	if l.videoDuration != nil && timestamp > *l.videoDuration {
		return &ValidationError{Field: "timestamp", Message: "timestamp is beyond the end of the video"}
	}
	return nil
}

func authorizeCommentEdit(comment models.TimestampedComment, requester Actor) error {
	if comment.UserID == requester.ID || requester.Role == models.RoleClientPrimaryContact {
		return nil
	}
	return &ForbiddenError{
		Action: ActionComment,
		Reason: "only the comment's author or the client's primary contact can change this comment",
	}
}
