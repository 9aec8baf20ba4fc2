package service

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/wapanel/internal/domain"
	"github.com/kursadbilgin/wapanel/internal/queue"
)

// fakeCampaignRepo is an in-memory ledger with per-method hooks so tests can
// inject failures at specific points.
type fakeCampaignRepo struct {
	mu sync.Mutex

	campaigns map[string]*domain.Campaign
	items     []domain.CampaignItem

	statusTransitions []domain.CampaignStatus

	createFn             func(ctx context.Context, c *domain.Campaign) error
	createItemsFn        func(ctx context.Context, items []*domain.CampaignItem) error
	setStatusFn          func(ctx context.Context, id string, status domain.CampaignStatus) error
	listPendingFn        func(ctx context.Context, campaignID string) ([]domain.CampaignItem, error)
	updateItemOutcomeFn  func(ctx context.Context, itemID string, status domain.ItemStatus, errorMessage *string, providerMessageID *string) error
	incrementCountersFn  func(ctx context.Context, id string, sentDelta int, failedDelta int) error
	getByIDFn            func(ctx context.Context, id string) (*domain.Campaign, error)
	listByOwnerFn        func(ctx context.Context, ownerID string) ([]domain.Campaign, error)
	listItemsFn          func(ctx context.Context, campaignID string) ([]domain.CampaignItem, error)
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[string]*domain.Campaign)}
}

func (f *fakeCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if f.createFn != nil {
		return f.createFn(ctx, c)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *c
	f.campaigns[c.ID] = &copied
	return nil
}

func (f *fakeCampaignRepo) CreateItems(ctx context.Context, items []*domain.CampaignItem) error {
	if f.createItemsFn != nil {
		return f.createItemsFn(ctx, items)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		f.items = append(f.items, *item)
	}
	return nil
}

func (f *fakeCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *campaign
	return &copied, nil
}

func (f *fakeCampaignRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Campaign, error) {
	if f.listByOwnerFn != nil {
		return f.listByOwnerFn(ctx, ownerID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Campaign
	for _, campaign := range f.campaigns {
		if campaign.OwnerID == ownerID {
			out = append(out, *campaign)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) SetStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	if f.setStatusFn != nil {
		return f.setStatusFn(ctx, id, status)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[id]
	if !ok {
		return domain.ErrNotFound
	}
	campaign.Status = status
	f.statusTransitions = append(f.statusTransitions, status)
	return nil
}

func (f *fakeCampaignRepo) ListPendingItems(ctx context.Context, campaignID string) ([]domain.CampaignItem, error) {
	if f.listPendingFn != nil {
		return f.listPendingFn(ctx, campaignID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CampaignItem
	for _, item := range f.items {
		if item.CampaignID == campaignID && item.Status == domain.ItemStatusPending {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) ListItems(ctx context.Context, campaignID string) ([]domain.CampaignItem, error) {
	if f.listItemsFn != nil {
		return f.listItemsFn(ctx, campaignID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CampaignItem
	for _, item := range f.items {
		if item.CampaignID == campaignID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) UpdateItemOutcome(ctx context.Context, itemID string, status domain.ItemStatus, errorMessage *string, providerMessageID *string) error {
	if f.updateItemOutcomeFn != nil {
		return f.updateItemOutcomeFn(ctx, itemID, status, errorMessage, providerMessageID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items[i].Status = status
			f.items[i].ErrorMessage = errorMessage
			f.items[i].ProviderMessageID = providerMessageID
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeCampaignRepo) IncrementCounters(ctx context.Context, id string, sentDelta int, failedDelta int) error {
	if f.incrementCountersFn != nil {
		return f.incrementCountersFn(ctx, id, sentDelta, failedDelta)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[id]
	if !ok {
		return domain.ErrNotFound
	}
	campaign.Sent += sentDelta
	campaign.Failed += failedDelta
	return nil
}

func (f *fakeCampaignRepo) itemByRecipient(recipient string) (domain.CampaignItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.Recipient == recipient {
			return item, true
		}
	}
	return domain.CampaignItem{}, false
}

type sentCall struct {
	recipient     string
	phoneNumberID string
	body          string
	templateName  string
	languageCode  string
	bodyParams    []string
	kind          string
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sentCall

	sendTextFn     func(ctx context.Context, to string, body string, phoneNumberID string) (string, error)
	sendTemplateFn func(ctx context.Context, to string, phoneNumberID string, templateName string, languageCode string, bodyParams []string) (string, error)
}

func (f *fakeSender) SendText(ctx context.Context, to string, body string, phoneNumberID string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sentCall{recipient: to, phoneNumberID: phoneNumberID, body: body, kind: "text"})
	f.mu.Unlock()
	if f.sendTextFn != nil {
		return f.sendTextFn(ctx, to, body, phoneNumberID)
	}
	return "wamid.fake", nil
}

func (f *fakeSender) SendTemplate(ctx context.Context, to string, phoneNumberID string, templateName string, languageCode string, bodyParams []string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sentCall{
		recipient:     to,
		phoneNumberID: phoneNumberID,
		templateName:  templateName,
		languageCode:  languageCode,
		bodyParams:    bodyParams,
		kind:          "template",
	})
	f.mu.Unlock()
	if f.sendTemplateFn != nil {
		return f.sendTemplateFn(ctx, to, phoneNumberID, templateName, languageCode, bodyParams)
	}
	return "wamid.fake", nil
}

func (f *fakeSender) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		out = append(out, call.recipient)
	}
	return out
}

type fakeRateLimiter struct {
	mu       sync.Mutex
	waits    []string
	waitFn   func(ctx context.Context, channel string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel string) error {
	f.mu.Lock()
	f.waits = append(f.waits, channel)
	f.mu.Unlock()
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

type fakeLocker struct {
	mu        sync.Mutex
	acquired  []string
	released  []string
	acquireFn func(ctx context.Context, key string) (bool, error)
	releaseFn func(ctx context.Context, key string) error
}

func (f *fakeLocker) Acquire(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	f.acquired = append(f.acquired, key)
	f.mu.Unlock()
	if f.acquireFn != nil {
		return f.acquireFn(ctx, key)
	}
	return true, nil
}

func (f *fakeLocker) Release(ctx context.Context, key string) error {
	f.mu.Lock()
	f.released = append(f.released, key)
	f.mu.Unlock()
	if f.releaseFn != nil {
		return f.releaseFn(ctx, key)
	}
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.CampaignMessage
	publishFn func(ctx context.Context, queueName string, msg queue.CampaignMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.CampaignMessage) error {
	f.mu.Lock()
	f.published = append(f.published, msg)
	f.mu.Unlock()
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func instantSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func strPtr(s string) *string { return &s }
