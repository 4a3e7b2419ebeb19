package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-console/internal/domain"
	apperrors "github.com/spec-kit/support-console/pkg/util"
)

const identityKey = "session_identity"

// Identity is the caller resolved from the session boundary: who is acting
// and how to display them. Role and permission storage live outside this
// service.
type Identity struct {
	SenderType  domain.SenderType
	ID          string
	DisplayName string
}

// IsAdmin reports whether the caller is an administrator session.
func (i *Identity) IsAdmin() bool {
	return i.SenderType == domain.SenderTypeAdmin
}

// SessionMiddleware resolves bearer tokens into an Identity.
type SessionMiddleware struct {
	tokens *TokenManager
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(tokens *TokenManager) *SessionMiddleware {
	return &SessionMiddleware{tokens: tokens}
}

// Handle enforces a valid session for protected routes.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	switch claims.SenderType {
	case domain.SenderTypeAdmin, domain.SenderTypeRequester:
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(identityKey, &Identity{
		SenderType:  claims.SenderType,
		ID:          claims.SubjectID,
		DisplayName: claims.DisplayName,
	})
	return c.Next()
}

// RequireAdmin rejects non-administrator sessions.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok || !identity.IsAdmin() {
			return apperrors.NewUnauthorized("administrator session required")
		}
		return c.Next()
	}
}

// IdentityFromContext retrieves the resolved caller.
func IdentityFromContext(c *fiber.Ctx) (*Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*Identity)
	return identity, ok
}
