package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed window counter. The first hit in a window sets its expiry.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// Limiter admits at most limit submissions per subject per window
type Limiter struct {
	client redis.UniversalClient
	prefix string
	scope  string
	limit  int
	window time.Duration
}

// NewLimiter creates a Limiter. A limit of zero or less admits everything.
func NewLimiter(client redis.UniversalClient, prefix, scope string, limit int, window time.Duration) *Limiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "genesis"
	}
	if window < time.Second {
		window = time.Second
	}

	return &Limiter{
		client: client,
		prefix: prefix,
		scope:  scope,
		limit:  limit,
		window: window,
	}
}

// Allow counts one hit for subject and reports whether it is within the limit
func (l *Limiter) Allow(ctx context.Context, subject string) (bool, error) {
	subject = strings.TrimSpace(subject)
	if l == nil || l.client == nil || l.limit <= 0 || subject == "" {
		return true, nil
	}

	key := fmt.Sprintf("%s:rate_limit:%s:%s", l.prefix, l.scope, subject)
	current, err := fixedWindowScript.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return current <= int64(l.limit), nil
}
