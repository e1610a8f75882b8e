package ladderapi

import (
	"fmt"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
	"github.com/riskibarqy/challenge-ladder/internal/usecase"
)

type submitRequest struct {
	Action string      `json:"action"`
	PIN    string      `json:"pin,omitempty"`
	Match  submitMatch `json:"match"`
}

type submitMatch struct {
	Date       string `json:"date"`
	Challenger string `json:"challenger"`
	Defender   string `json:"defender"`
	Winner     string `json:"winner"`
	Score      string `json:"score"`
}

func newSubmitRequest(candidate ladder.PendingMatch, pin string) submitRequest {
	return submitRequest{
		Action: submitAction,
		PIN:    strings.TrimSpace(pin),
		Match: submitMatch{
			Date:       candidate.Date.UTC().Format(wireDateLayout),
			Challenger: candidate.Challenger,
			Defender:   candidate.Defender,
			Winner:     candidate.Winner,
			Score:      candidate.Score,
		},
	}
}

// decodeState accepts only an object carrying both a players and a matches
// array. Individual rows are coerced leniently.
func decodeState(raw string) (ladder.Snapshot, error) {
	envelope, err := decodeObject(raw, "")
	if err != nil {
		return ladder.Snapshot{}, err
	}

	players, matches, ok := stateArrays(envelope)
	if !ok {
		return ladder.Snapshot{}, fmt.Errorf("%w: state payload needs players and matches arrays", usecase.ErrMalformedResponse)
	}
	return ladder.SnapshotFromRaw(players, matches), nil
}

func decodeSubmit(raw, pin string) (usecase.SubmitReceipt, error) {
	envelope, err := decodeObject(raw, pin)
	if err != nil {
		return usecase.SubmitReceipt{}, err
	}

	accepted, ok := envelope["ok"].(bool)
	if !ok {
		return usecase.SubmitReceipt{}, fmt.Errorf("%w: submit response has no ok flag", usecase.ErrMalformedResponse)
	}
	if !accepted {
		return usecase.SubmitReceipt{}, &usecase.RejectedError{Reason: sanitizeSensitiveText(rejectReason(envelope["error"]), pin)}
	}

	players, matches, ok := stateArrays(envelope)
	if !ok {
		return usecase.SubmitReceipt{}, nil
	}
	return usecase.SubmitReceipt{
		Snapshot:    ladder.SnapshotFromRaw(players, matches),
		HasSnapshot: true,
	}, nil
}

func decodeObject(raw, secret string) (map[string]any, error) {
	var envelope map[string]any
	if err := sonic.UnmarshalString(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %s", usecase.ErrMalformedResponse, abbreviateBody(sanitizeSensitiveText(err.Error(), secret)))
	}
	if envelope == nil {
		return nil, fmt.Errorf("%w: payload is not an object", usecase.ErrMalformedResponse)
	}
	return envelope, nil
}

func stateArrays(envelope map[string]any) ([]any, []any, bool) {
	players, playersOK := envelope["players"].([]any)
	matches, matchesOK := envelope["matches"].([]any)
	return players, matches, playersOK && matchesOK
}

func rejectReason(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
