package repository

import (
	"encoding/json"
	"time"

	"github.com/kursadbilgin/wapanel/internal/domain"
)

// CampaignModel is the persistence model for the campaigns table.
type CampaignModel struct {
	ID                   string                `gorm:"type:uuid;primaryKey"`
	OwnerID              string                `gorm:"type:uuid;not null;index"`
	Name                 string                `gorm:"type:varchar(255);not null"`
	PhoneNumberID        string                `gorm:"type:varchar(64);not null"`
	TemplateName         *string               `gorm:"type:varchar(255)"`
	TemplateLanguageCode *string               `gorm:"type:varchar(16)"`
	TemplateBodyParams   *string               `gorm:"type:jsonb"`
	MessageText          *string               `gorm:"type:text"`
	Total                int                   `gorm:"not null;default:0"`
	Sent                 int                   `gorm:"not null;default:0"`
	Failed               int                   `gorm:"not null;default:0"`
	Status               domain.CampaignStatus `gorm:"type:varchar(20);not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// CampaignItemModel is the persistence model for campaign_items.
type CampaignItemModel struct {
	ID                string            `gorm:"type:uuid;primaryKey"`
	CampaignID        string            `gorm:"type:uuid;not null;index"`
	Recipient         string            `gorm:"type:varchar(32);not null"`
	Status            domain.ItemStatus `gorm:"type:varchar(20);not null"`
	ErrorMessage      *string           `gorm:"type:text"`
	ProviderMessageID *string           `gorm:"type:varchar(255)"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (CampaignItemModel) TableName() string {
	return "campaign_items"
}

// ConversationModel is the persistence model for conversations.
type ConversationModel struct {
	ID              string  `gorm:"type:uuid;primaryKey"`
	WaID            string  `gorm:"type:varchar(32);not null;uniqueIndex"`
	Name            string  `gorm:"type:varchar(255)"`
	LastMessageText *string `gorm:"type:text"`
	LastMessageAt   *time.Time
	UnreadCount     int `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ConversationModel) TableName() string {
	return "conversations"
}

// MessageModel is the persistence model for messages.
type MessageModel struct {
	ID                string                  `gorm:"type:uuid;primaryKey"`
	ConversationID    string                  `gorm:"type:uuid;not null;index"`
	Direction         domain.MessageDirection `gorm:"type:varchar(10);not null"`
	Type              string                  `gorm:"type:varchar(20);not null"`
	Text              string                  `gorm:"type:text"`
	WaID              *string                 `gorm:"type:varchar(32)"`
	Status            domain.MessageStatus    `gorm:"type:varchar(20);not null"`
	ProviderMessageID *string                 `gorm:"type:varchar(255)"`
	Timestamp         time.Time               `gorm:"not null"`
	CreatedAt         time.Time
}

func (MessageModel) TableName() string {
	return "messages"
}

// UserModel is the persistence model for users.
type UserModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Name         string `gorm:"type:varchar(255);not null"`
	Email        string `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	Role         string `gorm:"type:varchar(32);not null;default:'agent'"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}

	return &CampaignModel{
		ID:                   c.ID,
		OwnerID:              c.OwnerID,
		Name:                 c.Name,
		PhoneNumberID:        c.PhoneNumberID,
		TemplateName:         c.TemplateName,
		TemplateLanguageCode: c.TemplateLanguageCode,
		TemplateBodyParams:   encodeBodyParams(c.TemplateBodyParams),
		MessageText:          c.MessageText,
		Total:                c.Total,
		Sent:                 c.Sent,
		Failed:               c.Failed,
		Status:               c.Status,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	return &domain.Campaign{
		ID:                   m.ID,
		OwnerID:              m.OwnerID,
		Name:                 m.Name,
		PhoneNumberID:        m.PhoneNumberID,
		TemplateName:         m.TemplateName,
		TemplateLanguageCode: m.TemplateLanguageCode,
		TemplateBodyParams:   decodeBodyParams(m.TemplateBodyParams),
		MessageText:          m.MessageText,
		Total:                m.Total,
		Sent:                 m.Sent,
		Failed:               m.Failed,
		Status:               m.Status,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func itemModelFromDomain(i *domain.CampaignItem) *CampaignItemModel {
	if i == nil {
		return nil
	}

	return &CampaignItemModel{
		ID:                i.ID,
		CampaignID:        i.CampaignID,
		Recipient:         i.Recipient,
		Status:            i.Status,
		ErrorMessage:      i.ErrorMessage,
		ProviderMessageID: i.ProviderMessageID,
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
}

func itemModelToDomain(m *CampaignItemModel) *domain.CampaignItem {
	if m == nil {
		return nil
	}

	return &domain.CampaignItem{
		ID:                m.ID,
		CampaignID:        m.CampaignID,
		Recipient:         m.Recipient,
		Status:            m.Status,
		ErrorMessage:      m.ErrorMessage,
		ProviderMessageID: m.ProviderMessageID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func conversationModelFromDomain(c *domain.Conversation) *ConversationModel {
	if c == nil {
		return nil
	}

	return &ConversationModel{
		ID:              c.ID,
		WaID:            c.WaID,
		Name:            c.Name,
		LastMessageText: c.LastMessageText,
		LastMessageAt:   c.LastMessageAt,
		UnreadCount:     c.UnreadCount,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func conversationModelToDomain(m *ConversationModel) *domain.Conversation {
	if m == nil {
		return nil
	}

	return &domain.Conversation{
		ID:              m.ID,
		WaID:            m.WaID,
		Name:            m.Name,
		LastMessageText: m.LastMessageText,
		LastMessageAt:   m.LastMessageAt,
		UnreadCount:     m.UnreadCount,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func messageModelFromDomain(msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}

	return &MessageModel{
		ID:                msg.ID,
		ConversationID:    msg.ConversationID,
		Direction:         msg.Direction,
		Type:              msg.Type,
		Text:              msg.Text,
		WaID:              msg.WaID,
		Status:            msg.Status,
		ProviderMessageID: msg.ProviderMessageID,
		Timestamp:         msg.Timestamp,
		CreatedAt:         msg.CreatedAt,
	}
}

func messageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}

	return &domain.Message{
		ID:                m.ID,
		ConversationID:    m.ConversationID,
		Direction:         m.Direction,
		Type:              m.Type,
		Text:              m.Text,
		WaID:              m.WaID,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		Timestamp:         m.Timestamp,
		CreatedAt:         m.CreatedAt,
	}
}

func userModelToDomain(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}

	return &domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
	}
}

func encodeBodyParams(params []string) *string {
	if len(params) == 0 {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	encoded := string(raw)
	return &encoded
}

func decodeBodyParams(raw *string) []string {
	if raw == nil || *raw == "" {
		return nil
	}
	var params []string
	if err := json.Unmarshal([]byte(*raw), &params); err != nil {
		return nil
	}
	return params
}
