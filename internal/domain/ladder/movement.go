package ladder

import (
	"fmt"
	"strings"
	"time"
)

// BaselineStrategy selects when the movement reference point rolls over.
type BaselineStrategy string

const (
	// BaselineCalendarDay resets on the first movement check of each local
	// calendar day.
	BaselineCalendarDay BaselineStrategy = "calendar_day"
	// BaselineSession resets just before a fresh snapshot replaces the
	// previous one, so movement reads as "since I last looked".
	BaselineSession BaselineStrategy = "session"
)

const dayLayout = "2006-01-02"

func ParseBaselineStrategy(raw string) (BaselineStrategy, error) {
	switch BaselineStrategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BaselineCalendarDay:
		return BaselineCalendarDay, nil
	case BaselineSession:
		return BaselineSession, nil
	default:
		return "", fmt.Errorf("invalid baseline strategy %q: valid values are %s, %s", raw, BaselineCalendarDay, BaselineSession)
	}
}

// Baseline is a reference rank per player. It is always written whole.
type Baseline struct {
	AsOf  string         `json:"asOf"`
	Ranks map[string]int `json:"ranks"`
}

// DayID is the device-local calendar day of t.
func DayID(t time.Time) string {
	return t.Local().Format(dayLayout)
}

// NewBaseline captures the current rank of every named player.
func NewBaseline(asOf string, players []Player) Baseline {
	ranks := make(map[string]int, len(players))
	for _, item := range players {
		if item.Name == "" {
			continue
		}
		ranks[item.Name] = item.Rank
	}
	return Baseline{AsOf: asOf, Ranks: ranks}
}

// Movement returns baselineRank - currentRank per current player. Positive
// means the player climbed. Unknown history or rank 0 on either side is 0.
func Movement(baseline Baseline, players []Player) map[string]int {
	out := make(map[string]int, len(players))
	for _, item := range players {
		if item.Name == "" {
			continue
		}
		before, ok := baseline.Ranks[item.Name]
		if !ok || before <= 0 || item.Rank <= 0 {
			out[item.Name] = 0
			continue
		}
		out[item.Name] = before - item.Rank
	}
	return out
}
