package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/pkg/errors"
)

// ErrGuardHeld is returned when another holder owns the guard.
var ErrGuardHeld = errors.New(errors.ErrCodeConflict, "guard held by another owner")

// releaseScript deletes the key only while it still carries our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Guard is a short-lived, non-reentrant mutual exclusion keyed by name.
// Replicas use it so that only one of them asks the backend to create a
// given technology.
type Guard struct {
	client *Client
	logger logging.Logger
	prefix string
	ttl    time.Duration
}

func NewGuard(client *Client, log logging.Logger, prefix string, ttl time.Duration) *Guard {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Guard{client: client, logger: log.Named("guard"), prefix: prefix + "guard:", ttl: ttl}
}

// Acquire takes the guard for name.  The returned release func is safe to
// call more than once.  ErrGuardHeld means someone else holds it.
func (g *Guard) Acquire(ctx context.Context, name string) (func(), error) {
	key := g.prefix + name
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to acquire guard")
	}
	if !ok {
		return nil, ErrGuardHeld
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Outlives a cancelled caller context so the key is not left to expire.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.client.Eval(rctx, releaseScript, []string{key}, token).Err(); err != nil {
			g.logger.Warn("failed to release guard", logging.String("key", key), logging.Err(err))
		}
	}, nil
}
