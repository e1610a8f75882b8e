package local

import (
	"context"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
	"github.com/riskibarqy/challenge-ladder/internal/platform/kvstore"
)

type SnapshotCache struct {
	store kvstore.Store
}

func NewSnapshotCache(store kvstore.Store) *SnapshotCache {
	return &SnapshotCache{store: store}
}

// Load returns ok=false when nothing usable is cached. A corrupt or
// wrongly-shaped entry also reports an error wrapping ErrCorruptEntry.
func (c *SnapshotCache) Load(ctx context.Context) (ladder.Snapshot, bool, error) {
	raw, ok, err := c.store.Get(ctx, KeySnapshot)
	if err != nil {
		return ladder.Snapshot{}, false, storageErr("get", KeySnapshot, err)
	}
	if !ok {
		return ladder.Snapshot{}, false, nil
	}

	var decoded any
	if err := sonic.UnmarshalString(raw, &decoded); err != nil {
		return ladder.Snapshot{}, false, corruptErr(KeySnapshot, err.Error())
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return ladder.Snapshot{}, false, corruptErr(KeySnapshot, "not an object")
	}
	players, playersOK := obj["players"].([]any)
	matches, matchesOK := obj["matches"].([]any)
	if !playersOK || !matchesOK {
		return ladder.Snapshot{}, false, corruptErr(KeySnapshot, "players/matches are not arrays")
	}

	return ladder.SnapshotFromRaw(players, matches), true, nil
}

// Save writes the normalized snapshot. Callers treat failures as advisory.
func (c *SnapshotCache) Save(ctx context.Context, snapshot ladder.Snapshot) error {
	snapshot = ladder.NormalizeSnapshot(snapshot)
	encoded, err := sonic.MarshalString(snapshot)
	if err != nil {
		return storageErr("encode", KeySnapshot, err)
	}
	if err := c.store.Set(ctx, KeySnapshot, encoded); err != nil {
		return storageErr("set", KeySnapshot, err)
	}
	return nil
}
