package server

import (
	"log/slog"
	"strings"

	"blogapi/internal/models"
	"blogapi/internal/observability"

	"github.com/gofiber/fiber/v2"
)

const localUser = "user"

// SessionMiddleware loads the session user and exposes it as Locals("user"),
// Locals("userID") and the user id in the request context. A session whose
// user no longer exists is destroyed.
func (s *Server) SessionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipSession(c.Path()) {
			return c.Next()
		}

		userID, ok, err := s.sessions.CurrentUserID(c)
		if err != nil {
			s.logger.WarnContext(c.UserContext(), "session lookup failed", slog.String("error", err.Error()))
			return c.Next()
		}
		if !ok {
			return c.Next()
		}

		user, err := s.authService.LoadUser(c.UserContext(), userID)
		if err != nil {
			return s.respondError(c, err)
		}
		if user == nil {
			if err := s.sessions.Logout(c); err != nil {
				s.logger.WarnContext(c.UserContext(), "failed to drop orphaned session", slog.String("error", err.Error()))
			}
			return c.Next()
		}

		c.Locals(localUser, user)
		c.Locals("userID", user.ID)
		c.SetUserContext(observability.WithUserID(c.UserContext(), user.ID))
		return c.Next()
	}
}

// LoginRequired rejects anonymous requests: JSON 401 under /api, a redirect to
// the login page elsewhere.
func (s *Server) LoginRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) != nil {
			return c.Next()
		}
		if isAPIRequest(c) {
			return s.respondError(c, models.NewAuthenticationRequiredError())
		}
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
}

// currentUser returns the session user or nil.
func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localUser).(*models.User)
	return user
}

func skipSession(path string) bool {
	return strings.HasPrefix(path, "/health/") ||
		path == "/metrics" ||
		strings.HasPrefix(path, "/api/swagger/")
}
