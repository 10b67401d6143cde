package middleware

import (
	"fmt"

	"ineed/internal/apperrors"
	. "ineed/internal/models"
	"ineed/internal/services"

	"github.com/gofiber/fiber/v2"
)

const SessionLocalKey = "session"

// RequireSession resolves the :role route parameter to the role's open session.
func (m *Middleware) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, err := ParseRole(c.Params("role"))
		if err != nil {
			return ErrorResponse(c, apperrors.Validation(
				fmt.Sprintf("Unknown role %q", c.Params("role")),
				map[string]string{"role": "Unknown role"},
			))
		}
		return m.attachSession(c, role)
	}
}

// RequireRoleSession is RequireSession for routes bound to one role.
func (m *Middleware) RequireRoleSession(role Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return m.attachSession(c, role)
	}
}

func (m *Middleware) attachSession(c *fiber.Ctx, role Role) error {
	session, ok := m.Sessions.Get(role)
	if !ok || session.Disposed() {
		m.log.TraceFromContext(c.UserContext()).Function("attachSession").Debug("No open session", "role", role)
		return ErrorResponse(c, apperrors.New(
			apperrors.KindAuth,
			apperrors.CodeNoSession,
			fmt.Sprintf("No %s session, sign in first", role),
		))
	}

	c.Locals(SessionLocalKey, session)
	return c.Next()
}

// GetSession extracts the session stored by RequireSession.
func GetSession(c *fiber.Ctx) *services.Session {
	session, ok := c.Locals(SessionLocalKey).(*services.Session)
	if !ok {
		return nil
	}
	return session
}
