package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/wapanel/internal/domain"
	"github.com/kursadbilgin/wapanel/internal/lock"
	"github.com/kursadbilgin/wapanel/internal/observability"
	"github.com/kursadbilgin/wapanel/internal/provider"
	"github.com/kursadbilgin/wapanel/internal/ratelimit"
	"github.com/kursadbilgin/wapanel/internal/repository"
	"go.uber.org/zap"
)

const defaultSendDelay = 200 * time.Millisecond

const (
	messageKindText     = "text"
	messageKindTemplate = "template"
)

// sendFunc is the per-item send path, chosen once per campaign.
type sendFunc func(ctx context.Context, recipient string) (string, error)

// Dispatcher processes every pending item of one campaign in creation order,
// exactly once each, and finalizes the campaign status. Items already in a
// terminal state are never revisited, so re-running a campaign resumes
// instead of duplicating sends.
type Dispatcher struct {
	campaigns   repository.CampaignRepository
	sender      provider.Sender
	rateLimiter ratelimit.RateLimiter
	locker      lock.Locker
	logger      *zap.Logger
	metrics     *observability.Metrics
	sendDelay   time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(
	campaigns repository.CampaignRepository,
	sender provider.Sender,
	rateLimiter ratelimit.RateLimiter,
	locker lock.Locker,
	sendDelay time.Duration,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	if sendDelay <= 0 {
		sendDelay = defaultSendDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		campaigns:   campaigns,
		sender:      sender,
		rateLimiter: rateLimiter,
		locker:      locker,
		logger:      logger,
		sendDelay:   sendDelay,
		now:         time.Now,
		sleep:       sleepWithContext,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Run dispatches one campaign. Returning an error signals the caller to
// requeue; per-item provider failures are contained inside the loop and are
// never an error here.
func (d *Dispatcher) Run(ctx context.Context, campaignID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := d.logger.With(zap.String("campaignId", campaignID))

	acquired, err := d.locker.Acquire(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to acquire dispatch lock: %w", err)
	}
	if !acquired {
		logger.Info("campaign dispatch already in progress elsewhere, skipping")
		return nil
	}
	defer func() {
		if releaseErr := d.locker.Release(context.WithoutCancel(ctx), campaignID); releaseErr != nil {
			logger.Warn("failed to release dispatch lock", zap.Error(releaseErr))
		}
	}()

	campaign, err := d.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted between scheduling and dispatch; tolerated.
			logger.Warn("campaign not found during dispatch, skipping")
			return nil
		}
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	if d.metrics != nil {
		d.metrics.IncDispatchInFlight()
		defer d.metrics.DecDispatchInFlight()
	}

	if err := d.campaigns.SetStatus(ctx, campaign.ID, domain.CampaignStatusRunning); err != nil {
		return fmt.Errorf("failed to mark campaign running: %w", err)
	}

	items, err := d.campaigns.ListPendingItems(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("failed to list pending items: %w", err)
	}

	send, kind := d.sendPath(campaign)

	logger.Info("campaign dispatch started",
		zap.String("kind", kind),
		zap.Int("pendingItems", len(items)),
	)

	for i := range items {
		item := items[i]

		if err := d.rateLimiter.Wait(ctx, campaign.PhoneNumberID); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}

		sendStart := d.now()
		messageID, sendErr := send(ctx, item.Recipient)
		if d.metrics != nil {
			d.metrics.ObserveItemSendDuration(kind, d.now().Sub(sendStart))
		}

		if err := d.recordOutcome(ctx, campaign.ID, item, messageID, sendErr, kind, logger); err != nil {
			return err
		}

		// Fixed pacing between sends; a canceled context aborts the run
		// and the pending remainder is picked up on the next invocation.
		if err := d.sleep(ctx, d.sendDelay); err != nil {
			return fmt.Errorf("dispatch pacing interrupted: %w", err)
		}
	}

	if err := d.campaigns.SetStatus(ctx, campaign.ID, domain.CampaignStatusFinished); err != nil {
		return fmt.Errorf("failed to mark campaign finished: %w", err)
	}
	if d.metrics != nil {
		d.metrics.IncCampaignFinished()
	}

	logger.Info("campaign dispatch finished")
	return nil
}

// sendPath picks the template or text path once for the whole campaign.
func (d *Dispatcher) sendPath(campaign *domain.Campaign) (sendFunc, string) {
	if campaign.IsTemplate() {
		templateName := strings.TrimSpace(*campaign.TemplateName)
		languageCode := campaign.TemplateLanguage()
		bodyParams := campaign.TemplateBodyParams

		return func(ctx context.Context, recipient string) (string, error) {
			return d.sender.SendTemplate(ctx, recipient, campaign.PhoneNumberID, templateName, languageCode, bodyParams)
		}, messageKindTemplate
	}

	var body string
	if campaign.MessageText != nil {
		body = *campaign.MessageText
	}

	return func(ctx context.Context, recipient string) (string, error) {
		return d.sender.SendText(ctx, recipient, body, campaign.PhoneNumberID)
	}, messageKindText
}

// recordOutcome commits the item's terminal state and the aggregate counter
// delta before the loop advances, keeping counters consistent with item
// statuses if the process dies mid-campaign.
func (d *Dispatcher) recordOutcome(
	ctx context.Context,
	campaignID string,
	item domain.CampaignItem,
	messageID string,
	sendErr error,
	kind string,
	logger *zap.Logger,
) error {
	if sendErr == nil {
		var providerMessageID *string
		if trimmed := strings.TrimSpace(messageID); trimmed != "" {
			providerMessageID = &trimmed
		}

		if err := d.campaigns.UpdateItemOutcome(ctx, item.ID, domain.ItemStatusSent, nil, providerMessageID); err != nil {
			return fmt.Errorf("failed to mark item sent: %w", err)
		}
		if err := d.campaigns.IncrementCounters(ctx, campaignID, 1, 0); err != nil {
			return fmt.Errorf("failed to increment sent counter: %w", err)
		}
		if d.metrics != nil {
			d.metrics.IncItemSent(kind)
		}
		return nil
	}

	// One recipient's failure never aborts the campaign.
	detail := sendErr.Error()
	if err := d.campaigns.UpdateItemOutcome(ctx, item.ID, domain.ItemStatusFailed, &detail, nil); err != nil {
		return fmt.Errorf("failed to mark item failed: %w", err)
	}
	if err := d.campaigns.IncrementCounters(ctx, campaignID, 0, 1); err != nil {
		return fmt.Errorf("failed to increment failed counter: %w", err)
	}

	reason := "provider_error"
	if provider.IsNotConfigured(sendErr) {
		reason = "not_configured"
	}
	if d.metrics != nil {
		d.metrics.IncItemFailed(kind, reason)
	}

	logger.Warn("campaign item failed",
		zap.String("itemId", item.ID),
		zap.String("recipient", item.Recipient),
		zap.String("reason", reason),
		zap.Error(sendErr),
	)

	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
