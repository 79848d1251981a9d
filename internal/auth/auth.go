// Package auth guards the mutating admin surface (the backfill trigger).
// Two credentials are accepted: the shared X-Admin-Secret header, or a
// short-lived bearer token issued against the admin password hash.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCreds = errors.New("invalid credentials")

var (
	jwtSecretOnce    sync.Once
	jwtSecretRuntime []byte
	jwtSecretErr     error

	adminSecretOnce    sync.Once
	adminSecretRuntime string
)

func jwtSecretFromEnv() ([]byte, error) {
	jwtSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
		if secret != "" {
			jwtSecretRuntime = []byte(secret)
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			jwtSecretErr = fmt.Errorf("failed to generate JWT fallback secret: %w", err)
			return
		}

		jwtSecretRuntime = []byte(base64.RawURLEncoding.EncodeToString(buf))
		log.Warn().Msg("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if jwtSecretErr != nil {
		return nil, jwtSecretErr
	}
	if len(jwtSecretRuntime) == 0 {
		return nil, errors.New("JWT secret unavailable")
	}

	return jwtSecretRuntime, nil
}

func adminSecretFromEnv() string {
	adminSecretOnce.Do(func() {
		adminSecretRuntime = strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if adminSecretRuntime == "" {
			buf := make([]byte, 32)
			if _, err := rand.Read(buf); err == nil {
				adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
			}
			log.Warn().Msg("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
		}
	})
	return adminSecretRuntime
}

// IssueToken exchanges the admin password for a short-lived JWT. The
// password is checked against the bcrypt hash in ADMIN_PASSWORD_HASH.
func IssueToken(password string) (string, error) {
	hash := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH"))
	if hash == "" {
		return "", ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCreds
	}

	secret, err := jwtSecretFromEnv()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(2 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func validToken(raw string) bool {
	secret, err := jwtSecretFromEnv()
	if err != nil {
		return false
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	return err == nil && token.Valid
}

// AdminMiddleware accepts either the shared admin secret header or a valid
// bearer token issued by IssueToken.
func AdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if secret := c.Request().Header.Get("X-Admin-Secret"); secret != "" {
			expected := adminSecretFromEnv()
			if expected != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) == 1 {
				return next(c)
			}
		}

		if header := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
			if validToken(strings.TrimPrefix(header, "Bearer ")) {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
}
