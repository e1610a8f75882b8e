package local

import (
	"context"
	"errors"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
	"github.com/riskibarqy/challenge-ladder/internal/platform/kvstore"
)

// PendingQueue keeps unconfirmed submissions as one JSON array under
// KeyPendingMatches. Every mutation is a read-modify-write of that key.
type PendingQueue struct {
	store kvstore.Store
}

func NewPendingQueue(store kvstore.Store) *PendingQueue {
	return &PendingQueue{store: store}
}

// List returns the queue in enqueue order.
func (q *PendingQueue) List(ctx context.Context) ([]ladder.PendingMatch, error) {
	raw, ok, err := q.store.Get(ctx, KeyPendingMatches)
	if err != nil {
		return nil, storageErr("get", KeyPendingMatches, err)
	}
	if !ok {
		return []ladder.PendingMatch{}, nil
	}

	var decoded any
	if err := sonic.UnmarshalString(raw, &decoded); err != nil {
		return nil, corruptErr(KeyPendingMatches, err.Error())
	}
	items, ok := decoded.([]any)
	if !ok {
		return nil, corruptErr(KeyPendingMatches, "not an array")
	}

	out := make([]ladder.PendingMatch, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, ladder.PendingMatchFromRaw(obj))
	}
	return out, nil
}

// Enqueue appends item to the tail. A corrupt queue entry is replaced.
func (q *PendingQueue) Enqueue(ctx context.Context, item ladder.PendingMatch) error {
	items, err := q.List(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorruptEntry) {
			return err
		}
		items = nil
	}
	items = append(items, item)
	return q.write(ctx, items)
}

// Remove drops the first entry structurally equal to item, wherever it
// sits. It re-reads the queue so concurrent appends are kept.
func (q *PendingQueue) Remove(ctx context.Context, item ladder.PendingMatch) (bool, error) {
	items, err := q.List(ctx)
	if err != nil {
		return false, err
	}
	remaining, found := ladder.RemovePending(items, item)
	if !found {
		return false, nil
	}
	if err := q.write(ctx, remaining); err != nil {
		return false, err
	}
	return true, nil
}

func (q *PendingQueue) write(ctx context.Context, items []ladder.PendingMatch) error {
	if items == nil {
		items = []ladder.PendingMatch{}
	}
	encoded, err := sonic.MarshalString(items)
	if err != nil {
		return storageErr("encode", KeyPendingMatches, err)
	}
	if err := q.store.Set(ctx, KeyPendingMatches, encoded); err != nil {
		return storageErr("set", KeyPendingMatches, err)
	}
	return nil
}
