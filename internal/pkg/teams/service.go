package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/notifyhub/notifyhub/app/models"
	"github.com/notifyhub/notifyhub/internal/pkg/mail"
)

var (
	ErrTeamNotFound   = errors.New("team not found")
	ErrInviteNotFound = errors.New("invite not found")
)

// InviteInput carries a team invitation request.
type InviteInput struct {
	Email  string   `json:"email" validate:"required,email"`
	TeamID uint     `json:"teamId" validate:"required"`
	Roles  []string `json:"roles"`
}

// InviteMailer delivers the invitation; swapped out in tests.
type InviteMailer func(to, teamName, confirmURL string) error

// Service manages team memberships and the invitation flow.
type Service struct {
	repo       Repository
	sendInvite InviteMailer
	confirmURL string
}

// NewService creates a teams service from an injected repository.
// confirmBaseURL is the public URL invite confirmation links point at.
func NewService(repo Repository, confirmBaseURL string) *Service {
	return &Service{
		repo:       repo,
		sendInvite: mail.SendTeamInviteMail,
		confirmURL: strings.TrimRight(confirmBaseURL, "/"),
	}
}

// NewServiceFromDB creates a teams service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, confirmBaseURL string) *Service {
	return NewService(NewRepository(db), confirmBaseURL)
}

// SetInviteMailer overrides invite delivery; used by tests.
func (s *Service) SetInviteMailer(m InviteMailer) {
	s.sendInvite = m
}

// Invite creates a membership invitation for an email address. Latest invite
// wins: an outstanding unconfirmed invite for the same (team, email) pair is
// deleted before the new one is created, so at most one is ever pending.
func (s *Service) Invite(ctx context.Context, in InviteInput) (*models.TeamMembership, error) {
	_ = ctx
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.TeamID == 0 {
		return nil, errors.New("email and team_id are required")
	}

	team, err := s.repo.GetTeamByID(in.TeamID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindUnconfirmedMembership(team.ID, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		if err := s.repo.DeleteMembership(existing.ID); err != nil {
			return nil, err
		}
	}

	membership := &models.TeamMembership{
		TeamID:      team.ID,
		UserEmail:   email,
		Confirmed:   false,
		InviteToken: uuid.NewString(),
		InvitedAt:   time.Now(),
	}
	if err := membership.SetRoles(in.Roles); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMembership(membership); err != nil {
		return nil, err
	}

	confirmLink := fmt.Sprintf("%s/api/invite/confirm?token=%s", s.confirmURL, membership.InviteToken)
	if err := s.sendInvite(email, team.Name, confirmLink); err != nil {
		// The membership exists either way; delivery problems are retried by
		// re-inviting, which replaces this invite.
		return membership, fmt.Errorf("invite created but mail delivery failed: %w", err)
	}
	return membership, nil
}

// Confirm accepts an invitation by its token.
func (s *Service) Confirm(ctx context.Context, token string) (*models.TeamMembership, error) {
	_ = ctx
	if strings.TrimSpace(token) == "" {
		return nil, ErrInviteNotFound
	}

	membership, err := s.repo.GetMembershipByInviteToken(strings.TrimSpace(token))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}
	if membership.Confirmed {
		return membership, nil
	}

	now := time.Now()
	membership.Confirmed = true
	membership.ConfirmedAt = &now
	membership.InviteToken = ""
	if err := s.repo.SaveMembership(membership); err != nil {
		return nil, err
	}
	return membership, nil
}

// ListMemberships returns all memberships of a team.
func (s *Service) ListMemberships(ctx context.Context, teamID uint) ([]models.TeamMembership, error) {
	_ = ctx
	if teamID == 0 {
		return nil, errors.New("team_id is required")
	}
	return s.repo.ListMemberships(teamID)
}
