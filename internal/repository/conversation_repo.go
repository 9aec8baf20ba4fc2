package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/wapanel/internal/domain"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	GetByWaID(ctx context.Context, waID string) (*domain.Conversation, error)
	Create(ctx context.Context, c *domain.Conversation) error
	List(ctx context.Context) ([]domain.Conversation, error)
	UpdatePreview(ctx context.Context, id string, lastMessageText string, lastMessageAt time.Time, unreadCount int) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
}

type GormConversationRepo struct {
	db *gorm.DB
}

func NewGormConversationRepo(db *gorm.DB) *GormConversationRepo {
	return &GormConversationRepo{db: db}
}

func (r *GormConversationRepo) GetByWaID(ctx context.Context, waID string) (*domain.Conversation, error) {
	var model ConversationModel
	err := r.db.WithContext(ctx).First(&model, "wa_id = ?", waID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conversationModelToDomain(&model), nil
}

func (r *GormConversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	model := conversationModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if c != nil {
		*c = *conversationModelToDomain(model)
	}
	return nil
}

func (r *GormConversationRepo) List(ctx context.Context) ([]domain.Conversation, error) {
	var models []ConversationModel
	err := r.db.WithContext(ctx).
		Order("last_message_at DESC NULLS LAST").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, 0, len(models))
	for i := range models {
		conversations = append(conversations, *conversationModelToDomain(&models[i]))
	}

	return conversations, nil
}

func (r *GormConversationRepo) UpdatePreview(ctx context.Context, id string, lastMessageText string, lastMessageAt time.Time, unreadCount int) error {
	result := r.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_message_text": lastMessageText,
			"last_message_at":   lastMessageAt,
			"unread_count":      unreadCount,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type GormMessageRepo struct {
	db *gorm.DB
}

func NewGormMessageRepo(db *gorm.DB) *GormMessageRepo {
	return &GormMessageRepo{db: db}
}

func (r *GormMessageRepo) Create(ctx context.Context, m *domain.Message) error {
	model := messageModelFromDomain(m)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if m != nil {
		*m = *messageModelToDomain(model)
	}
	return nil
}

func (r *GormMessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, *messageModelToDomain(&models[i]))
	}

	return messages, nil
}
