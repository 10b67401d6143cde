package handlers

import (
	"ineed/internal/app"
	"ineed/internal/apperrors"
	requestController "ineed/internal/controllers/requests"
	"ineed/internal/handlers/middleware"
	. "ineed/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type RequestHandler struct {
	Handler
	requestController requestController.RequestControllerInterface
}

func NewRequestHandler(app app.App, router fiber.Router) *RequestHandler {
	log := logger.New("handlers").File("request_handler")
	return &RequestHandler{
		requestController: app.Controllers.Request,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *RequestHandler) Register() {
	client := h.router.Group("/client/requests", h.middleware.RequireRoleSession(RoleClient))
	client.Put("/:id/professional", h.selectProfessional)
	client.Post("/:id/cancel", h.cancelAsClient)
	client.Post("/:id/rating", h.rateProfessional)

	professional := h.router.Group("/professional/requests", h.middleware.RequireRoleSession(RoleProfessional))
	professional.Post("/:id/cancel", h.cancelAsProfessional)
	professional.Post("/:id/finish", h.finishRequest)
	professional.Post("/:id/quotation", h.submitQuotation)

	requests := h.router.Group("/:role/requests", h.middleware.RequireSession())
	requests.Get("", h.listRequests)
	requests.Get("/:id", h.getRequest)
	requests.Post("/:id/chat-opened", h.chatOpened)
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.Validation("Invalid request body", nil)
	}
	return nil
}

func requestID(c *fiber.Ctx) ID {
	return ID(c.Params("id"))
}

func (h *RequestHandler) listRequests(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	scope := RequestScope(c.Query("scope"))

	requests, err := h.requestController.ListRequests(c.UserContext(), session, scope)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"requests": requests,
	})
}

func (h *RequestHandler) getRequest(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	request, err := h.requestController.GetRequest(c.UserContext(), session, requestID(c))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"request": request,
	})
}

func (h *RequestHandler) selectProfessional(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	var input SelectionInput
	if err := parseBody(c, &input); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	request, err := h.requestController.SelectProfessional(c.UserContext(), session, requestID(c), input)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"request": request,
	})
}

func (h *RequestHandler) cancelAsClient(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	var input ClientCancellation
	if err := parseBody(c, &input); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	request, err := h.requestController.CancelAsClient(c.UserContext(), session, requestID(c), input)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"request": request,
	})
}

func (h *RequestHandler) cancelAsProfessional(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	var input ProfessionalCancellation
	if err := parseBody(c, &input); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	request, err := h.requestController.CancelAsProfessional(c.UserContext(), session, requestID(c), input)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"request": request,
	})
}

func (h *RequestHandler) finishRequest(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	var report FinishReport
	if err := parseBody(c, &report); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	request, err := h.requestController.FinishRequest(c.UserContext(), session, requestID(c), report)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"request": request,
	})
}

func (h *RequestHandler) submitQuotation(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	var input QuotationInput
	if err := parseBody(c, &input); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	request, err := h.requestController.SubmitQuotation(c.UserContext(), session, requestID(c), input)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"request": request,
	})
}

func (h *RequestHandler) rateProfessional(c *fiber.Ctx) error {
	session := middleware.GetSession(c)

	rating := DefaultRating()
	if err := parseBody(c, &rating); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	if err := h.requestController.RateProfessional(c.UserContext(), session, requestID(c), rating); err != nil {
		return middleware.ErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
	})
}

func (h *RequestHandler) chatOpened(c *fiber.Ctx) error {
	session := middleware.GetSession(c)
	h.requestController.ChatOpened(c.UserContext(), session, requestID(c))
	return c.Status(fiber.StatusNoContent).Send(nil)
}
