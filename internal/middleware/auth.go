package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/pec-cloud/server/internal/apperrors"
	"github.com/pec-cloud/server/internal/models"
	"github.com/pec-cloud/server/internal/services"
	"github.com/pec-cloud/server/pkg/logger"
	"github.com/pec-cloud/server/pkg/utils"
)

const (
	currentUserKey    = "currentUser"
	currentSessionKey = "currentSession"
)

type AuthMiddleware struct {
	Sessions *services.SessionService
}

func NewAuthMiddleware(sessions *services.SessionService) *AuthMiddleware {
	return &AuthMiddleware{Sessions: sessions}
}

func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "http://localhost:3001,http://127.0.0.1:3001",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

// RequireAuth resolves the bearer token to a live session and its
// user, extends the session, and stores both in request locals.
func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("auth_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Failure(c, fiber.StatusUnauthorized, string(apperrors.CodeNoAuthToken), "missing authorization header")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if token == authHeader || token == "" {
		logger.Warn("auth_invalid_format", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Failure(c, fiber.StatusUnauthorized, string(apperrors.CodeNoAuthToken), "invalid authorization format")
	}

	user, session, err := a.Sessions.Authenticate(c.Context(), token)
	if err != nil {
		logger.Warn("auth_session_rejected", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return utils.Failure(c, fiber.StatusUnauthorized, string(apperrors.CodeInvalidSession), "invalid or expired session")
	}

	if user.UserStatus != models.UserStatusOK {
		return utils.Failure(c, fiber.StatusForbidden, string(apperrors.CodeInvalidUserStatus), "account is not active")
	}

	// Sliding expiry: any authenticated request keeps the session warm.
	_ = a.Sessions.Extend(c.Context(), session.ID)

	c.Locals(currentUserKey, user)
	c.Locals(currentSessionKey, session)
	return c.Next()
}

func AdminOnly(c *fiber.Ctx) error {
	user := GetCurrentUser(c)
	if user == nil {
		return utils.Failure(c, fiber.StatusUnauthorized, string(apperrors.CodeNoAuthToken), "unauthorized")
	}
	if !user.IsAdministrator() {
		return utils.Failure(c, fiber.StatusForbidden, string(apperrors.CodeInvalidAccessLevel), "administrator access required")
	}
	return c.Next()
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

func GetCurrentSession(c *fiber.Ctx) *models.Session {
	value := c.Locals(currentSessionKey)
	if value == nil {
		return nil
	}
	session, ok := value.(*models.Session)
	if !ok {
		return nil
	}
	return session
}
