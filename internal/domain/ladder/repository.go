package ladder

import "context"

// SnapshotCache persists the last-known snapshot. Load reports ok=false for
// a missing entry; a non-nil error means the entry was unreadable.
type SnapshotCache interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// PendingQueue is the durable FIFO of unconfirmed submissions.
type PendingQueue interface {
	List(ctx context.Context) ([]PendingMatch, error)
	Enqueue(ctx context.Context, item PendingMatch) error
	Remove(ctx context.Context, item PendingMatch) (bool, error)
}

// BaselineTracker owns the movement reference point.
type BaselineTracker interface {
	Strategy() BaselineStrategy
	EnsureBaseline(ctx context.Context, players []Player) (Baseline, error)
	Supersede(ctx context.Context, previous []Player) error
	MovementFor(ctx context.Context, players []Player) (map[string]int, error)
}

// CredentialStore holds the optional league PIN sent with writes.
type CredentialStore interface {
	PIN(ctx context.Context) (string, error)
	SetPIN(ctx context.Context, pin string) error
	ClearPIN(ctx context.Context) error
}
