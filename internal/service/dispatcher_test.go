package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/wapanel/internal/domain"
	"github.com/kursadbilgin/wapanel/internal/provider"
	"go.uber.org/zap"
)

func newTestDispatcher(t *testing.T, repo *fakeCampaignRepo, sender *fakeSender, limiter *fakeRateLimiter, locker *fakeLocker) *Dispatcher {
	t.Helper()

	d, err := NewDispatcher(repo, sender, limiter, locker, time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	d.sleep = instantSleep
	return d
}

func seedCampaign(repo *fakeCampaignRepo, campaign *domain.Campaign, recipients ...string) {
	repo.campaigns[campaign.ID] = campaign
	for i, recipient := range recipients {
		repo.items = append(repo.items, domain.CampaignItem{
			ID:         campaign.ID + "-item-" + string(rune('a'+i)),
			CampaignID: campaign.ID,
			Recipient:  recipient,
			Status:     domain.ItemStatusPending,
		})
	}
}

func TestDispatcherRun_MixedOutcomes(t *testing.T) {
	t.Parallel()

	repo := newFakeCampaignRepo()
	seedCampaign(repo, &domain.Campaign{
		ID:            "camp-1",
		OwnerID:       "owner-1",
		Name:          "promo",
		PhoneNumberID: "555000111",
		MessageText:   strPtr("hello"),
		Total:         2,
		Status:        domain.CampaignStatusPending,
	}, "5511111111111", "5522222222222")

	sender := &fakeSender{
		sendTextFn: func(ctx context.Context, to string, body string, phoneNumberID string) (string, error) {
			if to == "5522222222222" {
				return "", &provider.ProviderError{StatusCode: 400, Message: "invalid recipient"}
			}
			return "wamid.ok-1", nil
		},
	}
	limiter := &fakeRateLimiter{}
	locker := &fakeLocker{}

	d := newTestDispatcher(t, repo, sender, limiter, locker)
	if err := d.Run(context.Background(), "camp-1"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	campaign := repo.campaigns["camp-1"]
	if campaign.Sent != 1 || campaign.Failed != 1 {
		t.Fatalf("counters sent=%d failed=%d, want 1/1", campaign.Sent, campaign.Failed)
	}
	if campaign.Status != domain.CampaignStatusFinished {
		t.Fatalf("status = %s, want FINISHED", campaign.Status)
	}

	sentItem, ok := repo.itemByRecipient("5511111111111")
	if !ok || sentItem.Status != domain.ItemStatusSent {
		t.Fatalf("first item status = %v, want SENT", sentItem.Status)
	}
	if sentItem.ProviderMessageID == nil || *sentItem.ProviderMessageID != "wamid.ok-1" {
		t.Fatalf("provider message id = %v, want wamid.ok-1", sentItem.ProviderMessageID)
	}

	failedItem, ok := repo.itemByRecipient("5522222222222")
	if !ok || failedItem.Status != domain.ItemStatusFailed {
		t.Fatalf("second item status = %v, want FAILED", failedItem.Status)
	}
	if failedItem.ErrorMessage == nil || *failedItem.ErrorMessage == "" {
		t.Fatal("failed item should record the provider error detail")
	}

	wantTransitions := []domain.CampaignStatus{domain.CampaignStatusRunning, domain.CampaignStatusFinished}
	if len(repo.statusTransitions) != len(wantTransitions) {
		t.Fatalf("status transitions = %v, want %v", repo.statusTransitions, wantTransitions)
	}
	for i := range wantTransitions {
		if repo.statusTransitions[i] != wantTransitions[i] {
			t.Fatalf("status transitions = %v, want %v", repo.statusTransitions, wantTransitions)
		}
	}
}

func TestDispatcherRun_ResumesWithoutResendingTerminalItems(t *testing.T) {
	t.Parallel()

	repo := newFakeCampaignRepo()
	seedCampaign(repo, &domain.Campaign{
		ID:            "camp-2",
		OwnerID:       "owner-1",
		Name:          "promo",
		PhoneNumberID: "555000111",
		MessageText:   strPtr("hello"),
		Total:         2,
		Status:        domain.CampaignStatusPending,
	}, "5511111111111", "5522222222222")
	// First recipient already processed by an earlier, interrupted run.
	repo.items[0].Status = domain.ItemStatusSent

	sender := &fakeSender{}
	d := newTestDispatcher(t, repo, sender, &fakeRateLimiter{}, &fakeLocker{})

	if err := d.Run(context.Background(), "camp-2"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := sender.recipients()
	if len(got) != 1 || got[0] != "5522222222222" {
		t.Fatalf("sent recipients = %v, want only the pending one", got)
	}
}

func TestDispatcherRun_SecondRunIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newFakeCampaignRepo()
	seedCampaign(repo, &domain.Campaign{
		ID:            "camp-3",
		OwnerID:       "owner-1",
		Name:          "promo",
		PhoneNumberID: "555000111",
		MessageText:   strPtr("hello"),
		Total:         1,
		Status:        domain.CampaignStatusPending,
	}, "5511111111111")

	sender := &fakeSender{}
	d := newTestDispatcher(t, repo, sender, &fakeRateLimiter{}, &fakeLocker{})

	if err := d.Run(context.Background(), "camp-3"); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := d.Run(context.Background(), "camp-3"); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if len(sender.calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(sender.calls))
	}
	campaign := repo.campaigns["camp-3"]
	if campaign.Sent != 1 || campaign.Failed != 0 {
		t.Fatalf("counters sent=%d failed=%d, want 1/0", campaign.Sent, campaign.Failed)
	}
	if campaign.Status != domain.CampaignStatusFinished {
		t.Fatalf("status = %s, want FINISHED", campaign.Status)
	}
}

func TestDispatcherRun_TemplatePath(t *testing.T) {
	t.Parallel()

	repo := newFakeCampaignRepo()
	seedCampaign(repo, &domain.Campaign{
		ID:                 "camp-4",
		OwnerID:            "owner-1",
		Name:               "launch",
		PhoneNumberID:      "555000111",
		TemplateName:       strPtr("order_update"),
		TemplateBodyParams: []string{"Maria", "1234"},
		Total:              1,
		Status:             domain.CampaignStatusPending,
	}, "5511111111111")

	sender := &fakeSender{}
	d := newTestDispatcher(t, repo, sender, &fakeRateLimiter{}, &fakeLocker{})

	if err := d.Run(context.Background(), "camp-4"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sender.calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(sender.calls))
	}
	call := sender.calls[0]
	if call.kind != "template" {
		t.Fatalf("call kind = %s, want template", call.kind)
	}
	if call.templateName != "order_update" {
		t.Fatalf("template name = %s, want order_update", call.templateName)
	}
	if call.languageCode != domain.DefaultTemplateLanguage {
		t.Fatalf("language code = %s, want default %s", call.languageCode, domain.DefaultTemplateLanguage)
	}
	if len(call.bodyParams) != 2 || call.bodyParams[0] != "Maria" {
		t.Fatalf("body params = %v", call.bodyParams)
	}
}

func TestDispatcherRun_SkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	repo := newFakeCampaignRepo()
	seedCampaign(repo, &domain.Campaign{
		ID:            "camp-5",
		OwnerID:       "owner-1",
		Name:          "promo",
		PhoneNumberID: "555000111",
		MessageText:   strPtr("hello"),
		Total:         1,
		Status:        domain.CampaignStatusPending,
	}, "5511111111111")

	sender := &fakeSender{}
	locker := &fakeLocker{
		acquireFn: func(ctx context.Context, key string) (bool, error) {
			return false, nil
		},
	}
	d := newTestDispatcher(t, repo, sender, &fakeRateLimiter{}, locker)

	if err := d.Run(context.Background(), "camp-5"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sender.calls) != 0 {
		t.Fatal("contended run must not send anything")
	}
	if len(locker.released) != 0 {
		t.Fatal("contended run must not release a lock it does not hold")
	}
	if repo.campaigns["camp-5"].Status != domain.CampaignStatusPending {
		t.Fatal("contended run must not change the campaign status")
	}
}

func TestDispatcherRun_MissingCampaignIsTolerated(t *testing.T) {
	t.Parallel()

	repo := newFakeCampaignRepo()
	locker := &fakeLocker{}
	d := newTestDispatcher(t, repo, &fakeSender{}, &fakeRateLimiter{}, locker)

	if err := d.Run(context.Background(), "gone"); err != nil {
		t.Fatalf("Run() error = %v, want nil for a deleted campaign", err)
	}
	if len(locker.released) != 1 {
		t.Fatal("lock must be released even when the campaign is gone")
	}
}

func TestDispatcherRun_LedgerWriteFailureAborts(t *testing.T) {
	t.Parallel()

	repo := newFakeCampaignRepo()
	seedCampaign(repo, &domain.Campaign{
		ID:            "camp-6",
		OwnerID:       "owner-1",
		Name:          "promo",
		PhoneNumberID: "555000111",
		MessageText:   strPtr("hello"),
		Total:         1,
		Status:        domain.CampaignStatusPending,
	}, "5511111111111")

	ledgerErr := errors.New("connection reset")
	repo.updateItemOutcomeFn = func(ctx context.Context, itemID string, status domain.ItemStatus, errorMessage *string, providerMessageID *string) error {
		return ledgerErr
	}

	d := newTestDispatcher(t, repo, &fakeSender{}, &fakeRateLimiter{}, &fakeLocker{})

	err := d.Run(context.Background(), "camp-6")
	if !errors.Is(err, ledgerErr) {
		t.Fatalf("Run() error = %v, want wrapped ledger error", err)
	}
}

func TestDispatcherRun_RateLimiterKeyedByPhoneNumberID(t *testing.T) {
	t.Parallel()

	repo := newFakeCampaignRepo()
	seedCampaign(repo, &domain.Campaign{
		ID:            "camp-7",
		OwnerID:       "owner-1",
		Name:          "promo",
		PhoneNumberID: "555000111",
		MessageText:   strPtr("hello"),
		Total:         2,
		Status:        domain.CampaignStatusPending,
	}, "5511111111111", "5522222222222")

	limiter := &fakeRateLimiter{}
	d := newTestDispatcher(t, repo, &fakeSender{}, limiter, &fakeLocker{})

	if err := d.Run(context.Background(), "camp-7"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(limiter.waits) != 2 {
		t.Fatalf("limiter waits = %d, want one per item", len(limiter.waits))
	}
	for _, channel := range limiter.waits {
		if channel != "555000111" {
			t.Fatalf("limiter channel = %s, want the campaign phone number id", channel)
		}
	}
}

func TestDispatcherRun_CancellationLeavesRemainderPending(t *testing.T) {
	t.Parallel()

	repo := newFakeCampaignRepo()
	seedCampaign(repo, &domain.Campaign{
		ID:            "camp-8",
		OwnerID:       "owner-1",
		Name:          "promo",
		PhoneNumberID: "555000111",
		MessageText:   strPtr("hello"),
		Total:         3,
		Status:        domain.CampaignStatusPending,
	}, "551", "552", "553")

	ctx, cancel := context.WithCancel(context.Background())
	sender := &fakeSender{
		sendTextFn: func(ctx context.Context, to string, body string, phoneNumberID string) (string, error) {
			if to == "551" {
				cancel()
			}
			return "wamid.ok", nil
		},
	}

	d := newTestDispatcher(t, repo, sender, &fakeRateLimiter{}, &fakeLocker{})
	d.sleep = sleepWithContext

	err := d.Run(ctx, "camp-8")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if repo.campaigns["camp-8"].Status == domain.CampaignStatusFinished {
		t.Fatal("interrupted campaign must not be marked finished")
	}

	pending, _ := repo.ListPendingItems(context.Background(), "camp-8")
	if len(pending) == 0 {
		t.Fatal("interrupted campaign should keep unprocessed items pending")
	}
}
