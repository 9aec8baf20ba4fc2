package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/wapanel/internal/domain"
)

type InboxService interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	SendText(ctx context.Context, waID string, text string, phoneNumberID string) (*domain.Message, error)
}

type ConversationHandler struct {
	service InboxService
}

func NewConversationHandler(service InboxService) (*ConversationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("inbox service is required")
	}
	return &ConversationHandler{service: service}, nil
}

func RegisterConversationRoutes(router fiber.Router, service InboxService) error {
	h, err := NewConversationHandler(service)
	if err != nil {
		return err
	}

	router.Get("/conversations", h.ListConversations)
	router.Get("/conversations/:id/messages", h.ListMessages)
	router.Post("/messages/text", h.SendText)

	return nil
}

type conversationResponse struct {
	ID              string     `json:"id"`
	WaID            string     `json:"waId"`
	Name            string     `json:"name"`
	LastMessageText *string    `json:"lastMessageText,omitempty"`
	LastMessageAt   *time.Time `json:"lastMessageAt,omitempty"`
	UnreadCount     int        `json:"unreadCount"`
}

type messageResponse struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversationId"`
	Direction         string    `json:"direction"`
	Type              string    `json:"type"`
	Text              string    `json:"text"`
	Status            string    `json:"status"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

type sendTextRequest struct {
	To            string `json:"to"`
	Text          string `json:"text"`
	PhoneNumberID string `json:"phoneNumberId"`
}

func (h *ConversationHandler) ListConversations(c *fiber.Ctx) error {
	conversations, err := h.service.ListConversations(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]conversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		responses = append(responses, conversationResponse{
			ID:              conversation.ID,
			WaID:            conversation.WaID,
			Name:            conversation.Name,
			LastMessageText: conversation.LastMessageText,
			LastMessageAt:   conversation.LastMessageAt,
			UnreadCount:     conversation.UnreadCount,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *ConversationHandler) ListMessages(c *fiber.Ctx) error {
	conversationID := strings.TrimSpace(c.Params("id"))
	messages, err := h.service.ListMessages(c.Context(), conversationID)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]messageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, toMessageResponse(&messages[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *ConversationHandler) SendText(c *fiber.Ctx) error {
	var req sendTextRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.SendText(c.Context(), req.To, req.Text, req.PhoneNumberID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toMessageResponse(message))
}

func toMessageResponse(m *domain.Message) messageResponse {
	if m == nil {
		return messageResponse{}
	}

	return messageResponse{
		ID:                m.ID,
		ConversationID:    m.ConversationID,
		Direction:         m.Direction.String(),
		Type:              m.Type,
		Text:              m.Text,
		Status:            m.Status.String(),
		ProviderMessageID: m.ProviderMessageID,
		Timestamp:         m.Timestamp,
	}
}
