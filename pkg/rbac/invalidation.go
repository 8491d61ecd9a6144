package rbac

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/careledger/careledger/pkg/observability"
)

// InvalidationChannel is the Redis pub/sub channel carrying rule-change
// notifications. The permission table is owned by the role-management
// subsystem; this hook is how its writes reach our process-wide cache.
const InvalidationChannel = "careledger.rbac.invalidate"

// Invalidator broadcasts and receives permission-rule invalidations over
// Redis so every process drops its memoized decisions together.
type Invalidator struct {
	rdb    *redis.Client
	logger *observability.Logger
}

// NewInvalidator creates an invalidator over an existing Redis client.
func NewInvalidator(rdb *redis.Client, logger *observability.Logger) *Invalidator {
	return &Invalidator{rdb: rdb, logger: logger}
}

// Publish notifies all subscribers that the rule table changed. reason is
// informational only.
func (i *Invalidator) Publish(ctx context.Context, reason string) error {
	return i.rdb.Publish(ctx, InvalidationChannel, reason).Err()
}

// Subscribe purges the decider's cache on every invalidation message until
// ctx is cancelled. Run it in its own goroutine; it returns when the
// subscription closes.
func (i *Invalidator) Subscribe(ctx context.Context, decider *Decider) {
	sub := i.rdb.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			decider.Invalidate()
			i.logger.WithField("reason", msg.Payload).Info("permission decision cache invalidated")
		}
	}
}
