package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/notifyhub/notifyhub/app/models"
	"github.com/notifyhub/notifyhub/internal/pkg/teams"
)

type stubTeamsRepo struct {
	team        *models.Team
	memberships []*models.TeamMembership
	nextID      uint
}

func newStubTeamsRepo() *stubTeamsRepo {
	return &stubTeamsRepo{
		team:   &models.Team{ID: 1, Name: "Operations", OwnerUserID: 1},
		nextID: 1,
	}
}

func (r *stubTeamsRepo) GetTeamByID(teamID uint) (*models.Team, error) {
	if r.team != nil && r.team.ID == teamID {
		return r.team, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubTeamsRepo) FindUnconfirmedMembership(teamID uint, email string) (*models.TeamMembership, error) {
	for _, m := range r.memberships {
		if m.TeamID == teamID && m.UserEmail == email && !m.Confirmed {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubTeamsRepo) DeleteMembership(id uint) error {
	for i, m := range r.memberships {
		if m.ID == id {
			r.memberships = append(r.memberships[:i], r.memberships[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubTeamsRepo) CreateMembership(m *models.TeamMembership) error {
	m.ID = r.nextID
	r.nextID++
	stored := *m
	r.memberships = append(r.memberships, &stored)
	return nil
}

func (r *stubTeamsRepo) GetMembershipByInviteToken(token string) (*models.TeamMembership, error) {
	for _, m := range r.memberships {
		if token != "" && m.InviteToken == token {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubTeamsRepo) SaveMembership(m *models.TeamMembership) error {
	for i, existing := range r.memberships {
		if existing.ID == m.ID {
			stored := *m
			r.memberships[i] = &stored
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubTeamsRepo) ListMemberships(teamID uint) ([]models.TeamMembership, error) {
	var out []models.TeamMembership
	for _, m := range r.memberships {
		if m.TeamID == teamID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func newInviteTestApp(repo teams.Repository) *fiber.App {
	svc := teams.NewService(repo, "https://portal.example.test")
	svc.SetInviteMailer(func(to, teamName, confirmURL string) error { return nil })

	ic := NewInviteController(svc)
	app := fiber.New()
	app.Post("/api/invite", ic.HandleInvite)
	app.Get("/api/invite/confirm", ic.HandleInviteConfirm)
	return app
}

func inviteRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/invite", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandleInvite(t *testing.T) {
	repo := newStubTeamsRepo()
	app := newInviteTestApp(repo)

	resp, err := app.Test(inviteRequest(`{"email":"user@example.com","teamId":1,"roles":["member"]}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "user@example.com", body["email"])
	assert.Equal(t, float64(1), body["teamId"])
	assert.Equal(t, false, body["confirmed"])
	require.Len(t, repo.memberships, 1)
}

func TestHandleInviteMissingFields(t *testing.T) {
	app := newInviteTestApp(newStubTeamsRepo())

	cases := []struct {
		name string
		body string
	}{
		{"missing email", `{"teamId":1}`},
		{"missing team", `{"email":"user@example.com"}`},
		{"invalid email", `{"email":"not-an-email","teamId":1}`},
		{"empty body", `{}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(inviteRequest(tc.body), -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			raw, readErr := io.ReadAll(resp.Body)
			require.NoError(t, readErr)
			assert.Contains(t, string(raw), "Missing required fields")
		})
	}
}

func TestHandleInviteUnknownTeam(t *testing.T) {
	app := newInviteTestApp(newStubTeamsRepo())

	resp, err := app.Test(inviteRequest(`{"email":"user@example.com","teamId":99}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Error creating invite", body["error"])
}

func TestHandleInviteLatestWins(t *testing.T) {
	repo := newStubTeamsRepo()
	app := newInviteTestApp(repo)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(inviteRequest(`{"email":"user@example.com","teamId":1}`), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	require.Len(t, repo.memberships, 1)
	assert.False(t, repo.memberships[0].Confirmed)
}

func TestHandleInviteConfirm(t *testing.T) {
	repo := newStubTeamsRepo()
	app := newInviteTestApp(repo)

	resp, err := app.Test(inviteRequest(`{"email":"user@example.com","teamId":1}`), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	token := repo.memberships[0].InviteToken

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/invite/confirm?token="+token, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	assert.True(t, repo.memberships[0].Confirmed)
}

func TestHandleInviteConfirmUnknownToken(t *testing.T) {
	app := newInviteTestApp(newStubTeamsRepo())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/invite/confirm?token=nope", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/invite/confirm", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
