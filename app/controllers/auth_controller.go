package controllers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/notifyhub/notifyhub/app/models"
	"github.com/notifyhub/notifyhub/app/repository"
	"github.com/notifyhub/notifyhub/internal/pkg/env"
	"github.com/notifyhub/notifyhub/internal/pkg/mail"
	"github.com/notifyhub/notifyhub/internal/pkg/recovery"
	"github.com/notifyhub/notifyhub/internal/pkg/session"
	"github.com/notifyhub/notifyhub/internal/pkg/token"
)

// AuthController converts credential checks into the JWT session cookie and
// back. All dependencies are injected at construction.
type AuthController struct {
	users     repository.UserRepository
	sessions  session.Store
	recovery  recovery.Store
	jwtSecret []byte
}

func NewAuthController(users repository.UserRepository, sessions session.Store, recoveryStore recovery.Store, jwtSecret []byte) *AuthController {
	return &AuthController{
		users:     users,
		sessions:  sessions,
		recovery:  recoveryStore,
		jwtSecret: jwtSecret,
	}
}

func (ac *AuthController) HandleLoginPage(c *fiber.Ctx) error {
	return c.Render("auth/login", fiber.Map{
		"Title": "Login",
		"Flash": flash.Get(c),
	}, "layouts/main")
}

func (ac *AuthController) HandleLoginPost(c *fiber.Ctx) error {
	fm := fiber.Map{"type": "error"}

	// notice: credential failures share one message so the form does not
	// leak which half was wrong
	user, err := ac.users.GetByEmail(c.FormValue("email"))
	if err != nil {
		fm["message"] = "Invalid email or password"
		return flash.WithError(c, fm).Redirect("/auth/login")
	}

	if !user.CheckPassword(c.FormValue("password")) {
		fm["message"] = "Invalid email or password"
		return flash.WithError(c, fm).Redirect("/auth/login")
	}

	if !user.IsActive() {
		fm["message"] = "This account is disabled"
		return flash.WithError(c, fm).Redirect("/auth/login")
	}

	if err := ac.issueSession(c, user); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)
		return flash.WithError(c, fm).Redirect("/auth/login")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := ac.users.Update(user); err != nil {
		log.Printf("updating last login for user %d: %v", user.ID, err)
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Welcome back!",
	}
	return flash.WithSuccess(c, fm).Redirect("/dashboard")
}

func (ac *AuthController) HandleRegisterPage(c *fiber.Ctx) error {
	return c.Render("auth/register", fiber.Map{
		"Title": "Register",
		"Flash": flash.Get(c),
	}, "layouts/main")
}

func (ac *AuthController) HandleRegisterPost(c *fiber.Ctx) error {
	user, err := models.CreateUser(c.FormValue("name"), c.FormValue("email"), c.FormValue("password"))
	if err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": err.Error(),
		}
		return flash.WithError(c, fm).Redirect("/auth/register")
	}

	if err := ac.users.Create(user); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("something went wrong: %s", err),
		}
		return flash.WithError(c, fm).Redirect("/auth/register")
	}

	// Registration establishes a session right away, same as login.
	if err := ac.issueSession(c, user); err != nil {
		fm := fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("something went wrong: %s", err),
		}
		return flash.WithError(c, fm).Redirect("/auth/login")
	}

	fm := fiber.Map{
		"type":    "success",
		"message": "Your account has been created!",
	}
	return flash.WithSuccess(c, fm).Redirect("/dashboard")
}

// HandleLogout invalidates the server-side session and deletes the cookie.
// Both steps are attempted even if one fails, so a failed session delete
// never leaves a live cookie behind and vice versa.
func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	var sessionErr error
	if cookie := c.Cookies(token.CookieName); cookie != "" {
		if claims, err := token.Parse(cookie, ac.jwtSecret); err == nil {
			sessionErr = ac.sessions.Invalidate(c.Context(), claims.ID)
		}
	}
	token.ClearCookie(c)

	if sessionErr != nil {
		log.Printf("session invalidation on logout: %v", sessionErr)
	}

	fm := fiber.Map{
		"type":    "success",
		"message": "You have been logged out.",
	}
	return flash.WithSuccess(c, fm).Redirect("/auth/login")
}

func (ac *AuthController) HandleForgotPasswordPage(c *fiber.Ctx) error {
	return c.Render("auth/forgot_password", fiber.Map{
		"Title": "Forgot password",
		"Flash": flash.Get(c),
	}, "layouts/main")
}

func (ac *AuthController) HandleForgotPasswordPost(c *fiber.Ctx) error {
	email := c.FormValue("email")

	// The response is identical whether or not the account exists.
	user, err := ac.users.GetByEmail(email)
	if err == nil {
		tokenValue, issueErr := ac.recovery.Issue(c.Context(), user.ID)
		if issueErr != nil {
			log.Printf("issuing recovery token for user %d: %v", user.ID, issueErr)
		} else {
			resetURL := fmt.Sprintf("%s/auth/password-recovery/reset?token=%s",
				env.GetEnv("APP_PUBLIC_URL", "http://localhost:3000"), tokenValue)
			if mailErr := mail.SendPasswordRecoveryMail(user.Email, resetURL); mailErr != nil {
				log.Printf("sending recovery mail to user %d: %v", user.ID, mailErr)
			}
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("looking up account for recovery: %v", err)
	}

	fm := fiber.Map{
		"type":    "success",
		"message": "If that address has an account, a recovery link is on its way.",
	}
	return flash.WithSuccess(c, fm).Redirect("/auth/login")
}

func (ac *AuthController) HandleResetPasswordPage(c *fiber.Ctx) error {
	return c.Render("auth/reset_password", fiber.Map{
		"Title": "Reset password",
		"Flash": flash.Get(c),
		"Token": c.Query("token"),
	}, "layouts/main")
}

func (ac *AuthController) HandleResetPasswordPost(c *fiber.Ctx) error {
	fm := fiber.Map{"type": "error"}
	tokenValue := c.FormValue("token")
	password := c.FormValue("password")

	// The policy check runs before the token is consumed: a rejected
	// password leaves the single-use token intact so the mailed link
	// still works on the next attempt.
	if err := models.ValidatePasswordPolicy(password); err != nil {
		fm["message"] = err.Error()
		return flash.WithError(c, fm).Redirect(fmt.Sprintf("/auth/password-recovery/reset?token=%s", tokenValue))
	}

	userID, err := ac.recovery.Consume(c.Context(), tokenValue)
	if err != nil {
		fm["message"] = "This recovery link is invalid or has expired"
		return flash.WithError(c, fm).Redirect("/auth/password-recovery")
	}

	user, err := ac.users.GetByID(userID)
	if err != nil {
		fm["message"] = "This recovery link is invalid or has expired"
		return flash.WithError(c, fm).Redirect("/auth/password-recovery")
	}

	if err := user.SetPassword(password); err != nil {
		fm["message"] = err.Error()
		return flash.WithError(c, fm).Redirect("/auth/password-recovery")
	}

	if err := ac.users.Update(user); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)
		return flash.WithError(c, fm).Redirect("/auth/password-recovery")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Your password has been reset. Please log in.",
	}
	return flash.WithSuccess(c, fm).Redirect("/auth/login")
}

// issueSession mints the bearer token, registers its server-side session and
// sets the cookie.
func (ac *AuthController) issueSession(c *fiber.Ctx, user *models.User) error {
	tokenString, sessionID, err := token.Generate(user.ID, user.Name, user.Role == models.ROLE_ADMIN, ac.jwtSecret)
	if err != nil {
		return err
	}
	if err := ac.sessions.Create(c.Context(), sessionID, user.ID, token.Lifetime); err != nil {
		return err
	}
	token.SetCookie(c, tokenString)
	return nil
}
