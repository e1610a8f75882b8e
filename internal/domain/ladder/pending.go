package ladder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidCandidate = errors.New("invalid match candidate")
	ErrWinnerNotPlayer  = errors.New("winner must be the challenger or the defender")
)

var structValidator = validator.New()

// PendingMatch is a submission request awaiting server confirmation. It
// carries no server-computed fields.
type PendingMatch struct {
	Date       time.Time `json:"date"`
	Challenger string    `json:"challenger" validate:"required"`
	Defender   string    `json:"defender" validate:"required,nefield=Challenger"`
	Winner     string    `json:"winner" validate:"required"`
	Score      string    `json:"score" validate:"max=64"`
}

// Normalize trims identity fields and stamps a missing date with now.
func (p PendingMatch) Normalize(now time.Time) PendingMatch {
	p.Challenger = strings.TrimSpace(p.Challenger)
	p.Defender = strings.TrimSpace(p.Defender)
	p.Winner = strings.TrimSpace(p.Winner)
	p.Score = strings.TrimSpace(p.Score)
	if p.Date.IsZero() {
		p.Date = now
	}
	p.Date = normalizeTime(p.Date)
	return p
}

func (p PendingMatch) Validate() error {
	if err := structValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}
	if p.Winner != p.Challenger && p.Winner != p.Defender {
		return fmt.Errorf("%w: winner=%q", ErrWinnerNotPlayer, p.Winner)
	}
	return nil
}

// Equal is structural: the four identity fields plus the date.
func (p PendingMatch) Equal(other PendingMatch) bool {
	return p.Date.Equal(other.Date) &&
		p.Challenger == other.Challenger &&
		p.Defender == other.Defender &&
		p.Winner == other.Winner &&
		p.Score == other.Score
}

func (p PendingMatch) String() string {
	return fmt.Sprintf("%s vs %s (winner %s, %s) @ %s", p.Challenger, p.Defender, p.Winner, p.Score, p.Date.Format(time.RFC3339))
}

// PendingMatchFromRaw maps a decoded queue entry.
func PendingMatchFromRaw(src map[string]any) PendingMatch {
	return PendingMatch{
		Date:       getTime(src, "date"),
		Challenger: getString(src, "challenger"),
		Defender:   getString(src, "defender"),
		Winner:     getString(src, "winner"),
		Score:      getString(src, "score"),
	}
}

// RemovePending drops the first entry structurally equal to target and
// reports whether one was found. Position is irrelevant.
func RemovePending(items []PendingMatch, target PendingMatch) ([]PendingMatch, bool) {
	for i, item := range items {
		if !item.Equal(target) {
			continue
		}
		out := make([]PendingMatch, 0, len(items)-1)
		out = append(out, items[:i]...)
		out = append(out, items[i+1:]...)
		return out, true
	}
	return items, false
}
