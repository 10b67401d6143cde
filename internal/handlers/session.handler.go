package handlers

import (
	"fmt"

	"ineed/internal/app"
	"ineed/internal/apperrors"
	"ineed/internal/handlers/middleware"
	. "ineed/internal/models"
	"ineed/internal/services"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type SessionHandler struct {
	Handler
	sessions middleware.SessionStore
}

func NewSessionHandler(app app.App, router fiber.Router) *SessionHandler {
	log := logger.New("handlers").File("session_handler")
	return &SessionHandler{
		sessions: app.Middleware.Sessions,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *SessionHandler) Register() {
	sessions := h.router.Group("/sessions")
	sessions.Post("/:role", h.openSession)
	sessions.Get("/:role", h.middleware.RequireSession(), h.getSession)
	sessions.Delete("/:role", h.signOut)
}

func sessionView(session *services.Session) fiber.Map {
	return fiber.Map{
		"identity": session.Identity,
		"openedAt": session.OpenedAt,
	}
}

func parseRoleParam(c *fiber.Ctx) (Role, error) {
	role, err := ParseRole(c.Params("role"))
	if err != nil {
		return "", apperrors.Validation(
			fmt.Sprintf("Unknown role %q", c.Params("role")),
			map[string]string{"role": "Unknown role"},
		)
	}
	return role, nil
}

// openSession signs the role in with the posted tokens, or re-verifies the stored
// ones when the body is empty.
func (h *SessionHandler) openSession(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("openSession")

	role, err := parseRoleParam(c)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	var credentials Credentials
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&credentials); err != nil {
			return middleware.ErrorResponse(c, apperrors.Validation("Invalid request body", nil))
		}
	}

	session, err := h.sessions.Open(c.UserContext(), role, credentials)
	if err != nil {
		log.Info("session not opened", "role", role, "error", err.Error())
		return middleware.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(sessionView(session))
}

func (h *SessionHandler) getSession(c *fiber.Ctx) error {
	return c.JSON(sessionView(middleware.GetSession(c)))
}

func (h *SessionHandler) signOut(c *fiber.Ctx) error {
	role, err := parseRoleParam(c)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	if err := h.sessions.SignOut(c.UserContext(), role); err != nil {
		return middleware.ErrorResponse(c, h.log.Function("signOut").Err("failed to sign out", err, "role", role))
	}

	return c.Status(fiber.StatusNoContent).Send(nil)
}
