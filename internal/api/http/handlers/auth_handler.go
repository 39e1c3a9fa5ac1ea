package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/team-hierarchy-service/internal/api/dto"
	"github.com/spec-kit/team-hierarchy-service/internal/auth"
	apperrors "github.com/spec-kit/team-hierarchy-service/pkg/util"
)

// AuthHandler exchanges the shared API token for a short-lived JWT.
type AuthHandler struct {
	middleware *auth.AuthMiddleware
	tokens     *auth.TokenManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(middleware *auth.AuthMiddleware, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{middleware: middleware, tokens: tokens}
}

// IssueToken handles POST /auth/token.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	provided := c.Get(auth.HeaderAPIToken)
	if provided == "" {
		return apperrors.NewUnauthorized("No API token provided")
	}
	if !h.middleware.ValidAPIToken(provided) {
		return apperrors.NewUnauthorized("Invalid API token")
	}

	token, exp, err := h.tokens.GenerateToken(auth.APIUser, []string{auth.RoleAPI})
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": dto.AuthResponse{Token: token, TokenType: "Bearer", ExpiresAt: exp},
	})
}
