// Package quota enforces the per-tier daily usage limit.
//
// Usage is counted per identifier (user id, or "ip:<addr>" for anonymous
// callers) within the current UTC calendar day. Persistence errors fail open.
package quota

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/padhloyaar/padhloyaar-api/internal/domain"
	"github.com/padhloyaar/padhloyaar-api/internal/metrics"
)

var ErrLimitExceeded = errors.New("daily limit reached")

// Counter is the persistence the limiter needs.
type Counter interface {
	CountSince(ctx context.Context, identifier string, since time.Time) (int, error)
	Record(ctx context.Context, identifier, userID, tool, provider string) error
}

// Limits holds the daily threshold per tier. Zero means unlimited.
type Limits struct {
	Anonymous int
	Free      int
	Pro       int
}

func DefaultLimits() Limits {
	return Limits{Anonymous: 10, Free: 100, Pro: 0}
}

func (l Limits) For(t domain.Tier) int {
	switch t {
	case domain.TierAnonymous:
		return l.Anonymous
	case domain.TierPro, domain.TierTeam:
		return l.Pro
	}
	return l.Free
}

// Usage describes one tool invocation to be counted.
type Usage struct {
	Identifier string
	UserID     string
	Tool       string
	Provider   string
	Tier       domain.Tier
}

type Decision struct {
	Allowed   bool      `json:"allowed"`
	Tier      string    `json:"tier"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Unlimited bool      `json:"unlimited"`
	ResetAt   time.Time `json:"reset_at"`
}

type Limiter struct {
	counter Counter
	limits  Limits
	log     *zap.Logger
	now     func() time.Time
}

func NewLimiter(counter Counter, limits Limits, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{counter: counter, limits: limits, log: log, now: time.Now}
}

// DayStart returns midnight UTC of t's UTC day.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Status reports current usage without recording anything.
func (l *Limiter) Status(ctx context.Context, identifier string, tier domain.Tier) Decision {
	now := l.now()
	start := DayStart(now)
	dec := Decision{
		Allowed: true,
		Tier:    string(tier),
		Limit:   l.limits.For(tier),
		ResetAt: start.Add(24 * time.Hour),
	}

	used, err := l.counter.CountSince(ctx, identifier, start)
	if err != nil {
		l.log.Warn("usage count failed, allowing request",
			zap.String("identifier", identifier), zap.Error(err))
		used = 0
	}
	dec.Used = used

	if dec.Limit <= 0 {
		dec.Unlimited = true
		return dec
	}
	dec.Remaining = dec.Limit - used
	if dec.Remaining < 0 {
		dec.Remaining = 0
	}
	dec.Allowed = used < dec.Limit
	return dec
}

// Consume checks the limit and, if allowed, records the usage.
// It returns ErrLimitExceeded with the decision when the caller is over the limit.
func (l *Limiter) Consume(ctx context.Context, u Usage) (Decision, error) {
	dec := l.Status(ctx, u.Identifier, u.Tier)
	if !dec.Allowed {
		metrics.ObserveQuotaRejection(string(u.Tier))
		return dec, ErrLimitExceeded
	}

	if err := l.counter.Record(ctx, u.Identifier, u.UserID, u.Tool, u.Provider); err != nil {
		l.log.Warn("usage record failed, allowing request",
			zap.String("identifier", u.Identifier), zap.String("tool", u.Tool), zap.Error(err))
		return dec, nil
	}

	dec.Used++
	if !dec.Unlimited {
		dec.Remaining = dec.Limit - dec.Used
		if dec.Remaining < 0 {
			dec.Remaining = 0
		}
	}
	return dec, nil
}
