package ratelimit

import "context"

// RateLimiter caps outbound send throughput per channel, where a channel is
// the WhatsApp phone-number id messages go out on.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}
