package handlers

import (
	"ineed/internal/app"
	notificationController "ineed/internal/controllers/notifications"
	"ineed/internal/handlers/middleware"
	. "ineed/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type NotificationHandler struct {
	Handler
	notificationController notificationController.NotificationControllerInterface
}

func NewNotificationHandler(app app.App, router fiber.Router) *NotificationHandler {
	log := logger.New("handlers").File("notification_handler")
	return &NotificationHandler{
		notificationController: app.Controllers.Notification,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *NotificationHandler) Register() {
	notifications := h.router.Group("/:role/notifications", h.middleware.RequireSession())
	notifications.Get("", h.list)
	notifications.Post("/refresh", h.refresh)
	notifications.Post("/read", h.markSelectedRead)
	notifications.Post("/delete", h.deleteSelected)
	notifications.Put("/:id/read", h.markRead)
	notifications.Post("/:id/click", h.click)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	return c.JSON(h.notificationController.List(c.UserContext(), session))
}

func (h *NotificationHandler) refresh(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	return c.JSON(h.notificationController.Refresh(c.UserContext(), session))
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	return c.JSON(h.notificationController.MarkRead(c.UserContext(), session, ID(c.Params("id"))))
}

func (h *NotificationHandler) markSelectedRead(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	var input NotificationIDs
	if err := parseBody(c, &input); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	list, err := h.notificationController.MarkSelectedRead(c.UserContext(), session, input)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(list)
}

// click marks the notification read and hands back its action for navigation.
func (h *NotificationHandler) click(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	notification, err := h.notificationController.Click(c.UserContext(), session, ID(c.Params("id")))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"notification": notification,
		"action":       notification.Action,
	})
}

func (h *NotificationHandler) deleteSelected(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	var input NotificationIDs
	if err := parseBody(c, &input); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	list, err := h.notificationController.DeleteSelected(c.UserContext(), session, input)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(list)
}
