package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership roles as stored in the project_members table.
const (
	RoleClientPrimaryContact = "client_primary_contact"
	RoleClientTeamMember     = "client_team_member"
	RoleMotionifyMember      = "motionify_member"
	RoleProjectManager       = "project_manager"
	RoleAdmin                = "admin"
)

// Project represents the structure of a project in the database.
// The revision quota lives on the project row so quota consumption can be
// done as a single conditional update against revisions_used.
type Project struct {
	ID              uuid.UUID `json:"id,omitempty"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"` // Use a pointer for nullable TEXT fields
	ClientOrgName   *string   `json:"client_org_name,omitempty"`
	TermsAccepted   bool      `json:"terms_accepted"`
	PaymentComplete bool      `json:"payment_complete"`
	RevisionsTotal  int       `json:"revisions_total"`
	RevisionsUsed   int       `json:"revisions_used"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProjectMember represents a user's membership in a project. Both the client
// team and the Motionify team are rows in the same table, distinguished by role.
type ProjectMember struct {
	ID         uuid.UUID `json:"id,omitempty"`
	ProjectID  uuid.UUID `json:"project_id"`
	UserID     uuid.UUID `json:"user_id"`
	UserName   string    `json:"user_name"`
	UserEmail  string    `json:"user_email"`
	UserAvatar *string   `json:"user_avatar,omitempty"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}
