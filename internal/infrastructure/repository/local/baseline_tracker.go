package local

import (
	"context"
	"errors"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
	"github.com/riskibarqy/challenge-ladder/internal/platform/kvstore"
)

// BaselineTracker persists the movement reference point. Which event rolls
// it over is fixed at construction by the strategy.
type BaselineTracker struct {
	store    kvstore.Store
	strategy ladder.BaselineStrategy
	now      func() time.Time
}

func NewBaselineTracker(store kvstore.Store, strategy ladder.BaselineStrategy) *BaselineTracker {
	if strategy == "" {
		strategy = ladder.BaselineCalendarDay
	}
	return &BaselineTracker{
		store:    store,
		strategy: strategy,
		now:      time.Now,
	}
}

func (t *BaselineTracker) Strategy() ladder.BaselineStrategy {
	return t.strategy
}

// EnsureBaseline writes a fresh baseline from players when none exists or,
// under the calendar-day strategy, when the stored one is from another day.
// Once written for a day it is not recomputed that day.
func (t *BaselineTracker) EnsureBaseline(ctx context.Context, players []ladder.Player) (ladder.Baseline, error) {
	current, ok, err := t.load(ctx)
	if err != nil && !errors.Is(err, ErrCorruptEntry) {
		return ladder.Baseline{}, err
	}

	switch t.strategy {
	case ladder.BaselineSession:
		if ok {
			return current, nil
		}
		return t.write(ctx, ladder.NewBaseline(t.now().UTC().Format(time.RFC3339), players))
	default:
		today := ladder.DayID(t.now())
		if ok && current.AsOf == today {
			return current, nil
		}
		return t.write(ctx, ladder.NewBaseline(today, players))
	}
}

// Supersede records previous as the baseline under the session strategy.
// It is called just before a new snapshot replaces previous.
func (t *BaselineTracker) Supersede(ctx context.Context, previous []ladder.Player) error {
	if t.strategy != ladder.BaselineSession || len(previous) == 0 {
		return nil
	}
	_, err := t.write(ctx, ladder.NewBaseline(t.now().UTC().Format(time.RFC3339), previous))
	return err
}

// MovementFor compares players against the stored baseline without rolling
// it over. With no usable baseline every delta is 0.
func (t *BaselineTracker) MovementFor(ctx context.Context, players []ladder.Player) (map[string]int, error) {
	current, _, err := t.load(ctx)
	return ladder.Movement(current, players), err
}

func (t *BaselineTracker) load(ctx context.Context) (ladder.Baseline, bool, error) {
	raw, ok, err := t.store.Get(ctx, KeyBaseline)
	if err != nil {
		return ladder.Baseline{}, false, storageErr("get", KeyBaseline, err)
	}
	if !ok {
		return ladder.Baseline{}, false, nil
	}

	var decoded any
	if err := sonic.UnmarshalString(raw, &decoded); err != nil {
		return ladder.Baseline{}, false, corruptErr(KeyBaseline, err.Error())
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return ladder.Baseline{}, false, corruptErr(KeyBaseline, "not an object")
	}
	asOf, _ := obj["asOf"].(string)
	rawRanks, ok := obj["ranks"].(map[string]any)
	if asOf == "" || !ok {
		return ladder.Baseline{}, false, corruptErr(KeyBaseline, "missing asOf or ranks")
	}

	ranks := make(map[string]int, len(rawRanks))
	for name, value := range rawRanks {
		rank, _ := value.(float64)
		ranks[name] = int(rank)
	}
	return ladder.Baseline{AsOf: asOf, Ranks: ranks}, true, nil
}

func (t *BaselineTracker) write(ctx context.Context, baseline ladder.Baseline) (ladder.Baseline, error) {
	encoded, err := sonic.MarshalString(baseline)
	if err != nil {
		return baseline, storageErr("encode", KeyBaseline, err)
	}
	if err := t.store.Set(ctx, KeyBaseline, encoded); err != nil {
		return baseline, storageErr("set", KeyBaseline, err)
	}
	return baseline, nil
}
