package insights

import (
	"context"
	"time"

	"github.com/powerpulse/backend/internal/models"
)

// Limiter parameters: a fixed 60s window of 4 requests, plus a 15s minimum
// spacing between accepted requests.
const (
	rateWindowSeconds  = 60
	rateWindowCapacity = 4
	rateCooldownSecs   = 15
)

// RateLimitStore loads and saves per-user limiter state.
type RateLimitStore interface {
	Load(ctx context.Context, userID string) (*models.RateLimitState, error)
	Save(ctx context.Context, state *models.RateLimitState) error
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	RetryAfter int
}

// RateLimiter enforces the per-user request budget. The read-modify-write is
// not synchronized across concurrent requests for the same user; a given
// user is expected to issue requests roughly serially from one client.
type RateLimiter struct {
	store RateLimitStore
	now   func() time.Time
}

func NewRateLimiter(store RateLimitStore) *RateLimiter {
	return &RateLimiter{store: store, now: time.Now}
}

// CheckAndConsume decides whether a request may proceed. Only accepted
// requests mutate state: a rejection persists nothing.
func (l *RateLimiter) CheckAndConsume(ctx context.Context, userID string) (Decision, error) {
	now := l.now().Unix()

	state, err := l.store.Load(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if state == nil {
		state = &models.RateLimitState{UserID: userID, WindowStart: now}
	}

	// Window reset is evaluated before the cooldown and capacity checks.
	if now-state.WindowStart >= rateWindowSeconds {
		state.WindowStart = now
		state.Count = 0
	}

	if now-state.LastTs < rateCooldownSecs {
		return Decision{RetryAfter: int(rateCooldownSecs - (now - state.LastTs))}, nil
	}

	if state.Count >= rateWindowCapacity {
		retryAfter := state.WindowStart + rateWindowSeconds - now
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Decision{RetryAfter: int(retryAfter)}, nil
	}

	state.Count++
	state.LastTs = now
	if err := l.store.Save(ctx, state); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true}, nil
}
