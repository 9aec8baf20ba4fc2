package queue

import "context"

const (
	// DispatchQueue carries one message per campaign to dispatch.
	DispatchQueue = "campaign.dispatch"
	// DispatchDLQ receives dispatch messages rejected as unprocessable.
	DispatchDLQ = "dlq.campaign.dispatch"
)

// Publisher publishes campaign dispatch messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg CampaignMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg CampaignMessage) error

// Consumer consumes campaign dispatch messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
