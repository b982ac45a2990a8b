// Package auth - jwt.go issues and verifies the HS256 session tokens the API
// hands to the booking web app after OIDC login. The signing secret comes
// from AROHA_JWT_SECRET and is resolved once at startup.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "aroha-bookings"
	defaultTokenTTL = time.Hour
)

var (
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// Claims represents the JWT claims carried by a session token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func isDevMode() bool {
	dev := os.Getenv("DEV_MODE")
	return dev == "true" || dev == "1" || os.Getenv("GIN_MODE") == "debug"
}

// ValidateJWTSecret resolves the signing secret. Production refuses to start
// without AROHA_JWT_SECRET; dev mode mints a throwaway secret, so sessions
// there die with the process. Call this once at startup.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("AROHA_JWT_SECRET")

		switch {
		case secret == "" && isDevMode():
			jwtSecret = randomSecret()
			slog.Warn("AROHA_JWT_SECRET not set; generated a dev-only secret, sessions will not survive a restart")
		case secret == "":
			jwtSecretErr = errors.New("AROHA_JWT_SECRET is required in production; generate one with: openssl rand -hex 32")
		default:
			if len(secret) < 32 {
				slog.Warn("AROHA_JWT_SECRET is shorter than the recommended 32 characters")
			}
			jwtSecret = secret
		}
	})

	return jwtSecretErr
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// GetJWTSecret returns the resolved secret, panicking if ValidateJWTSecret
// was skipped or failed. Handlers never reach this path in a healthy boot.
func GetJWTSecret() string {
	if jwtSecret == "" {
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

// GenerateJWT creates a session token for an authenticated user.
func GenerateJWT(userID, email string, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = defaultTokenTTL
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(GetJWTSecret()))
}

// ValidateJWT parses and verifies a session token, rejecting any signing
// method other than the HS256 we issue.
func ValidateJWT(tokenString string) (*Claims, error) {
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(GetJWTSecret()), nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
