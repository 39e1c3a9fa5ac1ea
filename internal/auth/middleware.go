package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/team-hierarchy-service/pkg/util"
)

const (
	principalKey = "auth_principal"

	// HeaderAPIToken carries the shared API token.
	HeaderAPIToken = "X-API-TOKEN"
	// RoleAPI is granted to every authenticated API client.
	RoleAPI = "ROLE_API"
	// APIUser is the subject of every authenticated API client.
	APIUser = "api-user"
)

// Principal represents the authenticated caller.
type Principal struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the principal was granted role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthMiddleware authenticates API callers by shared token or bearer JWT.
type AuthMiddleware struct {
	apiToken []byte
	tokens   *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(apiToken string, tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{apiToken: []byte(apiToken), tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if provided := c.Get(HeaderAPIToken); provided != "" {
		if !m.ValidAPIToken(provided) {
			return apperrors.NewUnauthorized("Invalid API token")
		}
		c.Locals(principalKey, &Principal{Subject: APIUser, Roles: []string{RoleAPI}})
		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("No API token provided")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || m.tokens == nil {
		return apperrors.NewUnauthorized("Invalid API token")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("Invalid API token")
	}

	c.Locals(principalKey, &Principal{Subject: claims.Subject, Roles: claims.Roles})
	return c.Next()
}

// ValidAPIToken compares provided against the configured token in constant time.
func (m *AuthMiddleware) ValidAPIToken(provided string) bool {
	if len(m.apiToken) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), m.apiToken) == 1
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
