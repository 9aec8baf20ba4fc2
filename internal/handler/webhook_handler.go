package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/wapanel/internal/service"
	"go.uber.org/zap"
)

type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, payload service.WebhookPayload) error
}

// WebhookHandler implements the Cloud API webhook contract: a GET
// subscription-verification handshake and a POST delivery endpoint.
type WebhookHandler struct {
	processor   WebhookProcessor
	verifyToken string
	logger      *zap.Logger
}

func NewWebhookHandler(processor WebhookProcessor, verifyToken string, logger *zap.Logger) (*WebhookHandler, error) {
	if processor == nil {
		return nil, fmt.Errorf("webhook processor is required")
	}
	if strings.TrimSpace(verifyToken) == "" {
		return nil, fmt.Errorf("webhook verify token is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WebhookHandler{
		processor:   processor,
		verifyToken: verifyToken,
		logger:      logger,
	}, nil
}

func RegisterWebhookRoutes(router fiber.Router, processor WebhookProcessor, verifyToken string, logger *zap.Logger) error {
	h, err := NewWebhookHandler(processor, verifyToken, logger)
	if err != nil {
		return err
	}

	router.Get("/webhook", h.Verify)
	router.Post("/webhook", h.Receive)

	return nil
}

// Verify answers the hub.challenge handshake Meta performs when the webhook
// URL is registered.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		return c.Status(fiber.StatusOK).SendString(challenge)
	}

	h.logger.Warn("webhook verification rejected", zap.String("mode", mode))
	return fiber.NewError(fiber.StatusForbidden, "verification failed")
}

func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var payload service.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		// Meta retries on non-2xx; an unparsable body will never improve.
		h.logger.Warn("discarding unparsable webhook payload", zap.Error(err))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	}

	if err := h.processor.ProcessWebhook(c.Context(), payload); err != nil {
		h.logger.Error("webhook processing failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "processing failed")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}
