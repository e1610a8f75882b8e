package local

import (
	"errors"
	"fmt"

	"github.com/riskibarqy/challenge-ladder/internal/usecase"
)

// Stable key names. Changing them orphans data written by older builds.
const (
	KeyPIN            = "ladder.pin"
	KeyPendingMatches = "ladder.pending_matches"
	KeySnapshot       = "ladder.snapshot"
	KeyBaseline       = "ladder.baseline"
)

// ErrCorruptEntry marks a stored value that could not be decoded. It also
// matches usecase.ErrStorage.
var ErrCorruptEntry = fmt.Errorf("%w: corrupt entry", usecase.ErrStorage)

func storageErr(op, key string, err error) error {
	if errors.Is(err, usecase.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s key=%s: %v", usecase.ErrStorage, op, key, err)
}

func corruptErr(key, reason string) error {
	return fmt.Errorf("%w key=%s: %s", ErrCorruptEntry, key, reason)
}
