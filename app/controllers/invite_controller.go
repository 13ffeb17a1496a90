package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/notifyhub/notifyhub/internal/pkg/teams"
)

// InviteController exposes the team invitation API.
type InviteController struct {
	svc      *teams.Service
	validate *validator.Validate
}

func NewInviteController(svc *teams.Service) *InviteController {
	return &InviteController{
		svc:      svc,
		validate: validator.New(),
	}
}

// HandleInvite accepts a JSON body with email, teamId and optional roles and
// creates a pending membership. A newer invite replaces any outstanding
// unconfirmed one for the same team and address.
func (ic *InviteController) HandleInvite(c *fiber.Ctx) error {
	var in teams.InviteInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing required fields"})
	}
	if err := ic.validate.Struct(in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing required fields"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	membership, err := ic.svc.Invite(ctx, in)
	if err != nil && membership == nil {
		log.Printf("creating invite for %s: %v", in.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error creating invite"})
	}
	if err != nil {
		// Membership exists but the mail did not go out; the invite is
		// still valid and can be re-sent.
		log.Printf("sending invite mail for %s: %v", in.Email, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":        membership.ID,
		"teamId":    membership.TeamID,
		"email":     membership.UserEmail,
		"roles":     membership.Roles(),
		"confirmed": membership.Confirmed,
	})
}

// HandleInviteConfirm resolves an invite token from the confirmation link
// and marks the membership confirmed.
func (ic *InviteController) HandleInviteConfirm(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Invite not found"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := ic.svc.Confirm(ctx, token); err != nil {
		if errors.Is(err, teams.ErrInviteNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Invite not found"})
		}
		log.Printf("confirming invite: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error confirming invite"})
	}

	return c.Redirect("/dashboard", fiber.StatusSeeOther)
}
