package token

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the session cookie carrying the bearer token.
const CookieName = "jwt"

// Lifetime bounds the blast radius of a leaked cookie without forcing
// daily re-login.
const Lifetime = 7 * 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the authenticated identity inside the bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"uid"`
	Username string `json:"name"`
	IsAdmin  bool   `json:"adm"`
}

// Generate mints a signed bearer token for the user. The returned session ID
// (the token's jti) is registered server-side so logout can invalidate it.
func Generate(userID uint, username string, isAdmin bool, secretKey []byte) (tokenString string, sessionID string, err error) {
	sessionID = uuid.NewString()
	now := time.Now()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(Lifetime)),
		},
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
	})

	tokenString, err = t.SignedString(secretKey)
	if err != nil {
		return "", "", err
	}
	return tokenString, sessionID, nil
}

// Parse verifies signature and expiry and returns the claims.
func Parse(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SetCookie stores the token in the session cookie. HTTP-only blocks script
// exfiltration, secure blocks plaintext transport.
func SetCookie(c *fiber.Ctx, tokenString string) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    tokenString,
		Path:     "/",
		MaxAge:   int(Lifetime.Seconds()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie immediately.
func ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
