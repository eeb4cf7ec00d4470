package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/bidforge/readiness/internal/errors"
	"github.com/bidforge/readiness/internal/monitoring"
)

const roleReviewer = "reviewer"

// ReviewerAuth issues and validates the JWT tokens gating scoring-config
// mutation. Applying a config change is a human decision, so the apply
// endpoint never accepts anonymous callers.
type ReviewerAuth struct {
	secret []byte
	ttl    time.Duration
}

// NewReviewerAuth creates a token authority with the given HS256 secret.
func NewReviewerAuth(secret string, ttl time.Duration) *ReviewerAuth {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ReviewerAuth{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// GenerateToken mints a reviewer token for the given subject.
func (a *ReviewerAuth) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": roleReviewer,
		"exp":  now.Add(a.ttl).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken checks signature, expiry and the reviewer role, and returns
// the token subject.
func (a *ReviewerAuth) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	if role, _ := claims["role"].(string); role != roleReviewer {
		return "", fmt.Errorf("token lacks reviewer role")
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return "", fmt.Errorf("subject not found in token")
	}
	return subject, nil
}

// Middleware rejects requests without a valid reviewer bearer token and
// stores the subject under "reviewer" for downstream handlers. Rejections
// are reported as security events when a logger is provided.
func (a *ReviewerAuth) Middleware(logger *monitoring.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			abortUnauthorized(c, logger, "missing bearer token", "reviewer token required")
			return
		}

		subject, err := a.ValidateToken(tokenString)
		if err != nil {
			abortUnauthorized(c, logger, err.Error(), "invalid reviewer token")
			return
		}

		c.Set("reviewer", subject)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, logger *monitoring.Logger, reason, message string) {
	if logger != nil {
		logger.SecurityLogger("reviewer_auth_rejected", c.ClientIP(), c.GetHeader("User-Agent"), map[string]interface{}{
			"reason": reason,
			"path":   c.Request.URL.Path,
		})
	}
	appErr := apperrors.NewAuthorizationError(message)
	apperrors.LogError(c, appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
}
