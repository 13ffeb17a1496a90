package models

import (
	"encoding/json"
	"time"
)

const MembershipRoleGuest = "guest"

// TeamMembership is an invitation-based relation between an email address
// and a team. At most one unconfirmed invite exists per (team, email) pair;
// a re-invite deletes the prior unconfirmed membership first.
type TeamMembership struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TeamID      uint       `gorm:"not null;index:idx_team_memberships_team_email,priority:1" json:"team_id"`
	UserEmail   string     `gorm:"type:varchar(200);not null;index:idx_team_memberships_team_email,priority:2" json:"user_email"`
	RolesJSON   string     `gorm:"type:text;not null" json:"-"`
	Confirmed   bool       `gorm:"default:false;index" json:"confirmed"`
	InviteToken string     `gorm:"type:varchar(64);index" json:"-"`
	InvitedAt   time.Time  `gorm:"autoCreateTime" json:"invited_at"`
	ConfirmedAt *time.Time `gorm:"type:timestamp;default:null" json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Roles decodes the membership roles, defaulting to guest when unset.
func (m *TeamMembership) Roles() []string {
	if m.RolesJSON == "" {
		return []string{MembershipRoleGuest}
	}
	var roles []string
	if err := json.Unmarshal([]byte(m.RolesJSON), &roles); err != nil || len(roles) == 0 {
		return []string{MembershipRoleGuest}
	}
	return roles
}

// SetRoles encodes the roles list, defaulting to guest when empty.
func (m *TeamMembership) SetRoles(roles []string) error {
	if len(roles) == 0 {
		roles = []string{MembershipRoleGuest}
	}
	b, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	m.RolesJSON = string(b)
	return nil
}
