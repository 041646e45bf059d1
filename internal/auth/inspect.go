package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminAuthLevel is the minimum auth level granting access to the admin endpoints.
const AdminAuthLevel = 9

// AccessClaims are the claims the API embeds in access tokens.
type AccessClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Nickname  string `json:"nickname"`
	AuthLevel int    `json:"auth_level"`
	jwt.RegisteredClaims
}

// TokenInfo summarizes an access token for display.
type TokenInfo struct {
	UserID    string
	Email     string
	Nickname  string
	AuthLevel int
	ExpiresAt time.Time
}

// Expired reports whether the token expiry has passed at now. Tokens without expiry never expire.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Inspect decodes the access token claims WITHOUT verifying the signature.
// The result is for display only and must not be used for authorization decisions.
func Inspect(token string) (TokenInfo, error) {
	var claims AccessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenInfo{}, fmt.Errorf("decoding access token: %w", err)
	}

	info := TokenInfo{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Nickname:  claims.Nickname,
		AuthLevel: claims.AuthLevel,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
