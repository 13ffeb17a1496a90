package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/notifyhub/notifyhub/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendPasswordRecoveryMail delivers the reset link for a recovery token.
func SendPasswordRecoveryMail(to string, resetURL string) error {
	body := fmt.Sprintf(
		"<p>A password reset was requested for your NotifyHub account.</p>"+
			"<p><a href=\"%s\">Reset your password</a></p>"+
			"<p>The link expires in one hour. If you did not request this, ignore this email.</p>",
		resetURL,
	)
	return SendMail(to, "NotifyHub password recovery", body)
}

// SendTeamInviteMail delivers a team invitation with its confirmation link.
func SendTeamInviteMail(to string, teamName string, confirmURL string) error {
	body := fmt.Sprintf(
		"<p>You have been invited to the team <strong>%s</strong> on NotifyHub.</p>"+
			"<p><a href=\"%s\">Accept the invitation</a></p>",
		teamName, confirmURL,
	)
	return SendMail(to, "NotifyHub team invitation", body)
}
