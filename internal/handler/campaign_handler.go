package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/wapanel/internal/auth"
	"github.com/kursadbilgin/wapanel/internal/domain"
	"github.com/kursadbilgin/wapanel/internal/service"
)

type CampaignService interface {
	Create(ctx context.Context, ownerID string, input service.CreateCampaignInput) (*domain.Campaign, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Campaign, error)
	ListItems(ctx context.Context, ownerID string, campaignID string) ([]domain.CampaignItem, error)
}

type CampaignHandler struct {
	service CampaignService
}

func NewCampaignHandler(service CampaignService) (*CampaignHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("campaign service is required")
	}
	return &CampaignHandler{service: service}, nil
}

func RegisterCampaignRoutes(router fiber.Router, service CampaignService) error {
	h, err := NewCampaignHandler(service)
	if err != nil {
		return err
	}

	router.Post("/campaigns", h.CreateCampaign)
	router.Get("/campaigns", h.ListCampaigns)
	router.Get("/campaigns/:id/items", h.ListCampaignItems)

	return nil
}

type createCampaignRequest struct {
	Name                 string   `json:"name"`
	PhoneNumberID        string   `json:"phoneNumberId"`
	TemplateName         *string  `json:"templateName,omitempty"`
	TemplateLanguageCode *string  `json:"templateLanguageCode,omitempty"`
	TemplateBodyParams   []string `json:"templateBodyParams,omitempty"`
	MessageText          *string  `json:"messageText,omitempty"`
	Recipients           []string `json:"recipients"`
}

type campaignResponse struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	PhoneNumberID        string    `json:"phoneNumberId"`
	TemplateName         *string   `json:"templateName,omitempty"`
	TemplateLanguageCode *string   `json:"templateLanguageCode,omitempty"`
	TemplateBodyParams   []string  `json:"templateBodyParams,omitempty"`
	MessageText          *string   `json:"messageText,omitempty"`
	Total                int       `json:"total"`
	Sent                 int       `json:"sent"`
	Failed               int       `json:"failed"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

type campaignItemResponse struct {
	ID                string    `json:"id"`
	Recipient         string    `json:"recipient"`
	Status            string    `json:"status"`
	ErrorMessage      *string   `json:"errorMessage,omitempty"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req createCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	campaign, err := h.service.Create(c.Context(), auth.UserID(c), service.CreateCampaignInput{
		Name:                 req.Name,
		PhoneNumberID:        req.PhoneNumberID,
		TemplateName:         req.TemplateName,
		TemplateLanguageCode: req.TemplateLanguageCode,
		TemplateBodyParams:   req.TemplateBodyParams,
		MessageText:          req.MessageText,
		Recipients:           req.Recipients,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toCampaignResponse(campaign))
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	campaigns, err := h.service.ListByOwner(c.Context(), auth.UserID(c))
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]campaignResponse, 0, len(campaigns))
	for i := range campaigns {
		responses = append(responses, toCampaignResponse(&campaigns[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *CampaignHandler) ListCampaignItems(c *fiber.Ctx) error {
	campaignID := strings.TrimSpace(c.Params("id"))
	items, err := h.service.ListItems(c.Context(), auth.UserID(c), campaignID)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]campaignItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, campaignItemResponse{
			ID:                item.ID,
			Recipient:         item.Recipient,
			Status:            item.Status.String(),
			ErrorMessage:      item.ErrorMessage,
			ProviderMessageID: item.ProviderMessageID,
			CreatedAt:         item.CreatedAt,
			UpdatedAt:         item.UpdatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func toCampaignResponse(campaign *domain.Campaign) campaignResponse {
	if campaign == nil {
		return campaignResponse{}
	}

	return campaignResponse{
		ID:                   campaign.ID,
		Name:                 campaign.Name,
		PhoneNumberID:        campaign.PhoneNumberID,
		TemplateName:         campaign.TemplateName,
		TemplateLanguageCode: campaign.TemplateLanguageCode,
		TemplateBodyParams:   campaign.TemplateBodyParams,
		MessageText:          campaign.MessageText,
		Total:                campaign.Total,
		Sent:                 campaign.Sent,
		Failed:               campaign.Failed,
		Status:               campaign.Status.String(),
		CreatedAt:            campaign.CreatedAt,
		UpdatedAt:            campaign.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
