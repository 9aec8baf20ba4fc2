package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/wapanel/internal/domain"
	"gorm.io/gorm"
)

// CampaignRepository is the delivery ledger the dispatcher and lifecycle
// manager depend on. Writes are atomic at the single-record level; the
// dispatcher commits each item outcome and the counter update before moving
// to the next item.
type CampaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	CreateItems(ctx context.Context, items []*domain.CampaignItem) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Campaign, error)
	SetStatus(ctx context.Context, id string, status domain.CampaignStatus) error
	ListPendingItems(ctx context.Context, campaignID string) ([]domain.CampaignItem, error)
	ListItems(ctx context.Context, campaignID string) ([]domain.CampaignItem, error)
	UpdateItemOutcome(ctx context.Context, itemID string, status domain.ItemStatus, errorMessage *string, providerMessageID *string) error
	IncrementCounters(ctx context.Context, id string, sentDelta int, failedDelta int) error
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

func (r *GormCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	model := campaignModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if c != nil {
		*c = *campaignModelToDomain(model)
	}
	return nil
}

func (r *GormCampaignRepo) CreateItems(ctx context.Context, items []*domain.CampaignItem) error {
	models := make([]CampaignItemModel, 0, len(items))
	modelIndexes := make([]int, 0, len(items))
	for i, item := range items {
		model := itemModelFromDomain(item)
		if model != nil {
			models = append(models, *model)
			modelIndexes = append(modelIndexes, i)
		}
	}

	if len(models) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).CreateInBatches(&models, 100).Error; err != nil {
		return err
	}

	for i := range models {
		idx := modelIndexes[i]
		if idx < len(items) && items[idx] != nil {
			*items[idx] = *itemModelToDomain(&models[i])
		}
	}

	return nil
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

func (r *GormCampaignRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Campaign, error) {
	var models []CampaignModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}

	return campaigns, nil
}

func (r *GormCampaignRepo) SetStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid campaign status %q", domain.ErrValidation, status)
	}

	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListPendingItems returns pending items in creation order. The ordering is
// stable so a re-invoked dispatch run resumes at the oldest unprocessed item.
func (r *GormCampaignRepo) ListPendingItems(ctx context.Context, campaignID string) ([]domain.CampaignItem, error) {
	var models []CampaignItemModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, domain.ItemStatusPending).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.CampaignItem, 0, len(models))
	for i := range models {
		items = append(items, *itemModelToDomain(&models[i]))
	}

	return items, nil
}

func (r *GormCampaignRepo) ListItems(ctx context.Context, campaignID string) ([]domain.CampaignItem, error) {
	var models []CampaignItemModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.CampaignItem, 0, len(models))
	for i := range models {
		items = append(items, *itemModelToDomain(&models[i]))
	}

	return items, nil
}

func (r *GormCampaignRepo) UpdateItemOutcome(ctx context.Context, itemID string, status domain.ItemStatus, errorMessage *string, providerMessageID *string) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid item status %q", domain.ErrValidation, status)
	}

	updates := map[string]any{
		"status":              status,
		"error_message":       errorMessage,
		"provider_message_id": providerMessageID,
	}

	result := r.db.WithContext(ctx).
		Model(&CampaignItemModel{}).
		Where("id = ?", itemID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormCampaignRepo) IncrementCounters(ctx context.Context, id string, sentDelta int, failedDelta int) error {
	if sentDelta == 0 && failedDelta == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sent":   gorm.Expr("sent + ?", sentDelta),
			"failed": gorm.Expr("failed + ?", failedDelta),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
