// FILE: internal/controller/dialog_controller.go
// Controller for conversational QnA endpoints
package controller

import (
	"errors"

	"qna-dialog-be/internal/dto"
	"qna-dialog-be/internal/pkg/serverutils"
	"qna-dialog-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IDialogController interface {
	RegisterRoutes(api fiber.Router)
}

type dialogController struct {
	dialogService service.IDialogService
}

func NewDialogController(dialogService service.IDialogService) IDialogController {
	return &dialogController{
		dialogService: dialogService,
	}
}

func (c *dialogController) RegisterRoutes(api fiber.Router) {
	dialog := api.Group("/dialog/v1", serverutils.JwtMiddleware)

	dialog.Post("/conversations", c.CreateConversation)
	dialog.Get("/conversations", c.GetAllConversations)
	dialog.Post("/message", c.SendMessage)
	dialog.Get("/history/:id", c.GetHistory)
	dialog.Delete("/conversations", c.DeleteConversation)
}

func (c *dialogController) authUserId(ctx *fiber.Ctx) (uuid.UUID, error) {
	userIdStr := ctx.Locals("user_id")
	if userIdStr == nil {
		return uuid.Nil, errors.New("unauthorized")
	}
	return uuid.Parse(userIdStr.(string))
}

// CreateConversation opens a new conversation in the welcome state
// @Summary Create conversation
// @Tags Dialog
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.CreateConversationResponse
// @Router /api/dialog/v1/conversations [post]
func (c *dialogController) CreateConversation(ctx *fiber.Ctx) error {
	userId, err := c.authUserId(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	req := new(dto.CreateConversationRequest)
	if err := ctx.BodyParser(req); err != nil && err != fiber.ErrUnprocessableEntity {
		// An empty body is allowed; the title defaults server side
		req = &dto.CreateConversationRequest{}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.dialogService.CreateConversation(ctx.Context(), userId, req)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Conversation created", res))
}

// GetAllConversations lists the user's conversations, newest first
// @Summary List conversations
// @Tags Dialog
// @Security BearerAuth
// @Produce json
// @Success 200 {object} []dto.GetAllConversationsResponse
// @Router /api/dialog/v1/conversations [get]
func (c *dialogController) GetAllConversations(ctx *fiber.Ctx) error {
	userId, err := c.authUserId(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	res, err := c.dialogService.GetAllConversations(ctx.Context(), userId)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Conversations retrieved", res))
}

// SendMessage handles one conversational turn
// @Summary Send a message
// @Tags Dialog
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.SendMessageRequest true "Message"
// @Success 200 {object} dto.SendMessageResponse
// @Router /api/dialog/v1/message [post]
func (c *dialogController) SendMessage(ctx *fiber.Ctx) error {
	userId, err := c.authUserId(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	req := new(dto.SendMessageRequest)
	if err := ctx.BodyParser(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.dialogService.SendMessage(ctx.Context(), userId, req)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Conversation not found"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Turn handled", res))
}

// GetHistory returns the persisted transcript of a conversation
// @Summary Get conversation history
// @Tags Dialog
// @Security BearerAuth
// @Produce json
// @Success 200 {object} []dto.GetHistoryResponse
// @Router /api/dialog/v1/history/{id} [get]
func (c *dialogController) GetHistory(ctx *fiber.Ctx) error {
	userId, err := c.authUserId(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	conversationId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid conversation ID"))
	}

	res, err := c.dialogService.GetHistory(ctx.Context(), userId, conversationId)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Conversation not found"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("History retrieved", res))
}

// DeleteConversation removes a conversation with its transcript
// @Summary Delete conversation
// @Tags Dialog
// @Security BearerAuth
// @Accept json
// @Success 200
// @Router /api/dialog/v1/conversations [delete]
func (c *dialogController) DeleteConversation(ctx *fiber.Ctx) error {
	userId, err := c.authUserId(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	req := new(dto.DeleteConversationRequest)
	if err := ctx.BodyParser(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	if err := c.dialogService.DeleteConversation(ctx.Context(), userId, req); err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Conversation not found"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Conversation deleted", nil))
}
