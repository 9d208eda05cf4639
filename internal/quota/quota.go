// Package quota decides when a collection run has gathered enough profiles.
package quota

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/prospector/internal/logging"
)

// Counter reads the persisted profile count of a list.
type Counter interface {
	GetListCount(ctx context.Context, id string) (int, error)
}

// Tracker compares progress to a limit. With a list it polls the stored
// counter, so other processes writing to the same list are seen; without one
// it counts locally.
type Tracker struct {
	limit   int
	listID  string
	counter Counter
	local   int
	log     *zap.Logger
}

func New(limit int, listID string, counter Counter, log *zap.Logger) *Tracker {
	return &Tracker{limit: limit, listID: listID, counter: counter, log: logging.Module(log, "quota")}
}

func (t *Tracker) Limit() int { return t.limit }

// Record notes one processed profile for the local count.
func (t *Tracker) Record() { t.local++ }

// Processed is the local count.
func (t *Tracker) Processed() int { return t.local }

// Count returns the current progress. A failed read of the stored counter
// falls back to the local count.
func (t *Tracker) Count(ctx context.Context) int {
	if t.listID == "" || t.counter == nil {
		return t.local
	}
	n, err := t.counter.GetListCount(ctx, t.listID)
	if err != nil {
		t.log.Warn("list count unavailable, using local count", zap.String("list", t.listID), zap.Error(err))
		return t.local
	}
	return n
}

// Reached reports whether the limit has been met.
func (t *Tracker) Reached(ctx context.Context) bool {
	return t.limit > 0 && t.Count(ctx) >= t.limit
}
