// Package middleware provides authentication, logging and rate limiting middleware for the application.
package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenIssuer is the iss claim on every session token.
	TokenIssuer = "monolith-api"
	// TokenAudience is the aud claim on every session token.
	TokenAudience = "monolith-client"
)

var (
	ErrMissingToken  = errors.New("authorization required")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrInvalidIssuer = errors.New("invalid token issuer")
)

// SessionClaims are the parsed claims of a session token.
type SessionClaims struct {
	UserID    uint
	JTI       string
	ExpiresAt time.Time
}

// IssueToken signs a session token for userID valid for ttl.
func IssueToken(secret string, userID uint, ttl time.Duration) (string, *SessionClaims, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID:    userID,
		JTI:       uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": TokenIssuer,
		"aud": TokenAudience,
		"exp": claims.ExpiresAt.Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": claims.JTI,
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// ParseToken validates a signed session token and extracts its claims.
func ParseToken(secret, tokenString string) (*SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenInvalidIssuer) || errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return nil, ErrInvalidIssuer
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	// Extract user ID from "sub" claim (subject claim per RFC 7519)
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, ErrInvalidToken
	}

	out := &SessionClaims{UserID: uint(userID)}
	out.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the session cookie.
func TokenFromRequest(c *fiber.Ctx, cookieName string) (string, error) {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", ErrInvalidToken
		}
		return parts[1], nil
	}
	if cookieName != "" {
		if v := c.Cookies(cookieName); v != "" {
			return v, nil
		}
	}
	return "", ErrMissingToken
}

// UserID returns the authenticated user id set by the auth middleware.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok
}
