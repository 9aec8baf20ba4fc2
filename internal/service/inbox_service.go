package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/wapanel/internal/domain"
	"github.com/kursadbilgin/wapanel/internal/observability"
	"github.com/kursadbilgin/wapanel/internal/provider"
	"github.com/kursadbilgin/wapanel/internal/repository"
	"go.uber.org/zap"
)

// WebhookPayload mirrors the Cloud API webhook envelope. Only the fields the
// inbox cares about are decoded; everything else passes through untouched.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []WebhookContact `json:"contacts"`
	Messages         []WebhookMessage `json:"messages"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
}

// InboxService maintains conversations: it ingests inbound webhook messages
// and sends direct replies outside of any campaign.
type InboxService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	sender        provider.Sender
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

func NewInboxService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	sender provider.Sender,
	logger *zap.Logger,
) (*InboxService, error) {
	if conversations == nil {
		return nil, fmt.Errorf("conversation repository is required")
	}
	if messages == nil {
		return nil, fmt.Errorf("message repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InboxService{
		conversations: conversations,
		messages:      messages,
		sender:        sender,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *InboxService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// ProcessWebhook stores every inbound text message in the payload. Malformed
// or non-text entries are counted and skipped; the webhook caller always gets
// a success so Meta does not retry the whole batch.
func (s *InboxService) ProcessWebhook(ctx context.Context, payload WebhookPayload) error {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := contactNames(change.Value.Contacts)

			for _, msg := range change.Value.Messages {
				if err := s.ingestMessage(ctx, msg, names); err != nil {
					// Persistence failures are real errors; surface them so
					// the provider retries the delivery.
					return err
				}
			}
		}
	}
	return nil
}

func (s *InboxService) ingestMessage(ctx context.Context, msg WebhookMessage, names map[string]string) error {
	waID := strings.TrimSpace(msg.From)
	if waID == "" {
		s.metrics.IncWebhookEvent("ignored")
		return nil
	}
	if msg.Type != "" && msg.Type != "text" {
		s.logger.Debug("ignoring non-text webhook message",
			zap.String("waId", waID),
			zap.String("type", msg.Type),
		)
		s.metrics.IncWebhookEvent("ignored")
		return nil
	}

	body := msg.Text.Body
	receivedAt := parseWebhookTimestamp(msg.Timestamp, s.now)

	conversation, err := s.upsertConversation(ctx, waID, names[waID])
	if err != nil {
		s.metrics.IncWebhookEvent("error")
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	var providerID *string
	if trimmed := strings.TrimSpace(msg.ID); trimmed != "" {
		providerID = &trimmed
	}

	record := &domain.Message{
		ID:                uuid.NewString(),
		ConversationID:    conversation.ID,
		Direction:         domain.DirectionIncoming,
		Type:              "text",
		Text:              body,
		WaID:              &waID,
		Status:            domain.MessageStatusReceived,
		ProviderMessageID: providerID,
		Timestamp:         receivedAt,
	}
	if err := s.messages.Create(ctx, record); err != nil {
		s.metrics.IncWebhookEvent("error")
		return fmt.Errorf("failed to store incoming message: %w", err)
	}

	if err := s.conversations.UpdatePreview(ctx, conversation.ID, body, receivedAt, conversation.UnreadCount+1); err != nil {
		s.metrics.IncWebhookEvent("error")
		return fmt.Errorf("failed to update conversation preview: %w", err)
	}

	s.metrics.IncWebhookEvent("message")
	s.logger.Info("incoming message stored",
		zap.String("waId", waID),
		zap.String("conversationId", conversation.ID),
	)
	return nil
}

// SendText sends a free-form text to one WhatsApp account and records it in
// the conversation history. Replying marks the conversation as read.
func (s *InboxService) SendText(ctx context.Context, waID string, text string, phoneNumberID string) (*domain.Message, error) {
	waID = strings.TrimSpace(waID)
	if waID == "" {
		return nil, fmt.Errorf("%w: recipient wa id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text is required", domain.ErrValidation)
	}
	if strings.TrimSpace(phoneNumberID) == "" {
		return nil, fmt.Errorf("%w: phone number id is required", domain.ErrValidation)
	}

	messageID, err := s.sender.SendText(ctx, waID, text, phoneNumberID)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	conversation, err := s.upsertConversation(ctx, waID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to upsert conversation: %w", err)
	}

	sentAt := s.now()
	var providerID *string
	if trimmed := strings.TrimSpace(messageID); trimmed != "" {
		providerID = &trimmed
	}

	record := &domain.Message{
		ID:                uuid.NewString(),
		ConversationID:    conversation.ID,
		Direction:         domain.DirectionOutgoing,
		Type:              "text",
		Text:              text,
		WaID:              &waID,
		Status:            domain.MessageStatusSent,
		ProviderMessageID: providerID,
		Timestamp:         sentAt,
	}
	if err := s.messages.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store outgoing message: %w", err)
	}

	if err := s.conversations.UpdatePreview(ctx, conversation.ID, text, sentAt, 0); err != nil {
		return nil, fmt.Errorf("failed to update conversation preview: %w", err)
	}

	return record, nil
}

func (s *InboxService) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	return s.conversations.List(ctx)
}

func (s *InboxService) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("%w: conversation id is required", domain.ErrValidation)
	}
	return s.messages.ListByConversation(ctx, strings.TrimSpace(conversationID))
}

func (s *InboxService) upsertConversation(ctx context.Context, waID string, name string) (*domain.Conversation, error) {
	conversation, err := s.conversations.GetByWaID(ctx, waID)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		name = waID
	}
	conversation = &domain.Conversation{
		ID:   uuid.NewString(),
		WaID: waID,
		Name: name,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func contactNames(contacts []WebhookContact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, contact := range contacts {
		if contact.WaID != "" {
			names[contact.WaID] = contact.Profile.Name
		}
	}
	return names
}

// parseWebhookTimestamp decodes Cloud API epoch-second strings, falling back
// to the current time for anything unparsable.
func parseWebhookTimestamp(raw string, now func() time.Time) time.Time {
	seconds, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || seconds <= 0 {
		return now()
	}
	return time.Unix(seconds, 0).UTC()
}
