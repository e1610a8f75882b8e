package usecase

import (
	"context"

	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
)

// SubmitReceipt is a successful write. HasSnapshot is false when the server
// acknowledged without sending authoritative players and matches.
type SubmitReceipt struct {
	Snapshot    ladder.Snapshot
	HasSnapshot bool
}

// LadderGateway is the remote ladder API. Errors wrap ErrNetwork,
// ErrMalformedResponse, or are a *RejectedError.
type LadderGateway interface {
	FetchState(ctx context.Context) (ladder.Snapshot, error)
	SubmitMatch(ctx context.Context, candidate ladder.PendingMatch, pin string) (SubmitReceipt, error)
}
