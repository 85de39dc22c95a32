// Package quota tracks daily API cost consumption and admits or denies
// further calls against a configured limit.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/streamvault/ytingest/model"
)

// UsageStore is the narrow persistence contract the tracker needs: one
// monotonically incrementing cost row per calendar day.
type UsageStore interface {
	QuotaByDay(ctx context.Context, day string) (*model.QuotaUsage, error)
	AddQuota(ctx context.Context, day string, cost int64) error
}

const dayFormat = "2006-01-02"

// Tracker accounts API cost per calendar day in the quota-reset timezone.
// Increments are serialized with a mutex on top of the store's atomic
// upsert, so overlapping runs in one process cannot lose updates.
type Tracker struct {
	store UsageStore
	loc   *time.Location

	mu  sync.Mutex
	now func() time.Time
}

// New creates a tracker whose day boundaries follow loc, the upstream
// provider's quota-reset timezone.
func New(store UsageStore, loc *time.Location) *Tracker {
	return &Tracker{
		store: store,
		loc:   loc,
		now:   time.Now,
	}
}

func (t *Tracker) today() string {
	return t.now().In(t.loc).Format(dayFormat)
}

// HasSufficientQuota reports whether today's accumulated cost plus the
// safety threshold remains below the limit.
func (t *Tracker) HasSufficientQuota(ctx context.Context, limit, safetyThreshold int64) (bool, error) {
	day := t.today()
	usage, err := t.store.QuotaByDay(ctx, day)
	if err != nil {
		return false, fmt.Errorf("load quota usage for %s: %w", day, err)
	}
	var used int64
	if usage != nil {
		used = usage.Cost
	}
	sufficient := used+safetyThreshold < limit
	if !sufficient {
		log.Warn().
			Str("day", day).
			Int64("used", used).
			Int64("limit", limit).
			Int64("safety_threshold", safetyThreshold).
			Msg("Daily API quota exhausted")
	}
	return sufficient, nil
}

// RecordUsage increments today's counter by cost, creating the day's
// record on first use.
func (t *Tracker) RecordUsage(ctx context.Context, cost int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	day := t.today()
	if err := t.store.AddQuota(ctx, day, cost); err != nil {
		return fmt.Errorf("record quota usage for %s: %w", day, err)
	}
	return nil
}
