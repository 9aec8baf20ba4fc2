package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/wapanel/internal/domain"
	"github.com/kursadbilgin/wapanel/internal/queue"
	"github.com/kursadbilgin/wapanel/internal/repository"
	"go.uber.org/zap"
)

// CreateCampaignInput is the creation request after transport decoding.
type CreateCampaignInput struct {
	Name                 string
	PhoneNumberID        string
	TemplateName         *string
	TemplateLanguageCode *string
	TemplateBodyParams   []string
	MessageText          *string
	Recipients           []string
}

// CampaignService validates and creates campaigns plus their items, then
// hands the campaign to the dispatch queue without blocking the caller on
// dispatch completion.
type CampaignService struct {
	campaigns repository.CampaignRepository
	publisher queue.Publisher
	logger    *zap.Logger
}

func NewCampaignService(
	campaigns repository.CampaignRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*CampaignService, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignService{
		campaigns: campaigns,
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (s *CampaignService) Create(ctx context.Context, ownerID string, input CreateCampaignInput) (*domain.Campaign, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	if len(input.Recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrValidation)
	}

	campaign := &domain.Campaign{
		ID:                   uuid.NewString(),
		OwnerID:              ownerID,
		Name:                 strings.TrimSpace(input.Name),
		PhoneNumberID:        strings.TrimSpace(input.PhoneNumberID),
		TemplateName:         normalizeOptionalString(input.TemplateName),
		TemplateLanguageCode: normalizeOptionalString(input.TemplateLanguageCode),
		TemplateBodyParams:   input.TemplateBodyParams,
		MessageText:          normalizeOptionalString(input.MessageText),
		// Total reflects the raw recipient count; empty recipients are
		// dropped below without shrinking it. Observed panel behavior,
		// kept as-is.
		Total:  len(input.Recipients),
		Status: domain.CampaignStatusPending,
	}

	if err := campaign.Validate(); err != nil {
		return nil, err
	}

	items := make([]*domain.CampaignItem, 0, len(input.Recipients))
	for _, recipient := range input.Recipients {
		trimmed := strings.TrimSpace(recipient)
		if trimmed == "" {
			continue
		}
		items = append(items, &domain.CampaignItem{
			ID:         uuid.NewString(),
			CampaignID: campaign.ID,
			Recipient:  trimmed,
			Status:     domain.ItemStatusPending,
		})
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	if err := s.campaigns.CreateItems(ctx, items); err != nil {
		return nil, fmt.Errorf("failed to create campaign items: %w", err)
	}

	msg := queue.CampaignMessage{
		CampaignID: campaign.ID,
		OwnerID:    campaign.OwnerID,
	}
	if err := s.publisher.Publish(ctx, queue.DispatchQueue, msg); err != nil {
		// Campaign and items stay pending; a re-publish dispatches them.
		s.logger.Error("failed to enqueue campaign dispatch",
			zap.String("campaignId", campaign.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to enqueue campaign dispatch: %w", err)
	}

	s.logger.Info("campaign created",
		zap.String("campaignId", campaign.ID),
		zap.String("ownerId", campaign.OwnerID),
		zap.Int("total", campaign.Total),
		zap.Int("items", len(items)),
	)

	return campaign, nil
}

func (s *CampaignService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Campaign, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrValidation)
	}
	return s.campaigns.ListByOwner(ctx, ownerID)
}

// ListItems returns a campaign's items in creation order, scoped to the
// owner so one user cannot read another's campaign.
func (s *CampaignService) ListItems(ctx context.Context, ownerID string, campaignID string) ([]domain.CampaignItem, error) {
	if strings.TrimSpace(campaignID) == "" {
		return nil, fmt.Errorf("%w: campaign id is required", domain.ErrValidation)
	}

	campaign, err := s.campaigns.GetByID(ctx, strings.TrimSpace(campaignID))
	if err != nil {
		return nil, err
	}
	if campaign.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}

	return s.campaigns.ListItems(ctx, campaign.ID)
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
