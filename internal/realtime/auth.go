package realtime

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/hirelocal/dispatch/internal/pkg/models"
)

// Identity is fixed for the lifetime of a connection. Switching identities
// requires an explicit disconnect and a fresh Connect.
type Identity struct {
	UserID   string
	UserType string // models.UserTypeProvider or models.UserTypeRequester
}

// GenerateToken signs a short-lived channel token for the given identity.
func GenerateToken(cfg models.JWTConfig, identity Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":   identity.UserID,
		"user_type": identity.UserType,
		"iss":       cfg.Issuer,
		"iat":       now.Unix(),
		"exp":       now.Add(time.Duration(cfg.Expiration) * time.Minute).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign channel token: %w", err)
	}
	return signed, nil
}
