package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/wapanel/internal/observability"
	"github.com/kursadbilgin/wapanel/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultDispatchConcurrency = 4

// DispatchWorker consumes campaign dispatch messages and runs the dispatcher
// for each. Concurrency bounds how many campaigns are dispatched in parallel;
// a single campaign is still strictly sequential inside the dispatcher.
type DispatchWorker struct {
	consumer    queue.Consumer
	dispatcher  *Dispatcher
	logger      *zap.Logger
	concurrency int
}

func NewDispatchWorker(
	consumer queue.Consumer,
	dispatcher *Dispatcher,
	concurrency int,
	logger *zap.Logger,
) (*DispatchWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchWorker{
		consumer:    consumer,
		dispatcher:  dispatcher,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Start blocks until the context is canceled or a consumer loop fails.
func (w *DispatchWorker) Start(ctx context.Context) error {
	w.logger.Info("dispatch worker starting",
		zap.Int("concurrency", w.concurrency),
		zap.String("queue", queue.DispatchQueue),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		group.Go(func() error {
			return w.consumer.Consume(groupCtx, queue.DispatchQueue, w.handle)
		})
	}

	err := group.Wait()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("dispatch worker stopped: %w", err)
	}
	return nil
}

func (w *DispatchWorker) handle(ctx context.Context, msg queue.CampaignMessage) error {
	ctx = observability.WithCampaignID(ctx, msg.CampaignID)
	logger := observability.WithContextLogger(w.logger, ctx)

	logger.Info("dispatch message received", zap.String("ownerId", msg.OwnerID))

	if err := w.dispatcher.Run(ctx, msg.CampaignID); err != nil {
		logger.Error("campaign dispatch failed", zap.Error(err))
		return err
	}
	return nil
}
