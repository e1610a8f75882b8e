package ladder

import (
	"sort"
	"strings"
	"time"
)

// Player is a read-only cached copy of one ladder row owned by the server.
type Player struct {
	Name       string    `json:"name"`
	Rank       int       `json:"rank"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Streak     int       `json:"streak"`
	LastPlayed time.Time `json:"lastPlayed"`
}

// Match is a server-confirmed result. The client never edits one.
type Match struct {
	Date              time.Time `json:"date"`
	Challenger        string    `json:"challenger"`
	Defender          string    `json:"defender"`
	Winner            string    `json:"winner"`
	Score             string    `json:"score"`
	Allowed           bool      `json:"allowed"`
	Swap              bool      `json:"swap"`
	ChallengeDistance int       `json:"challengeDistance"`
}

// Involves reports whether name played in the match.
func (m Match) Involves(name string) bool {
	return name != "" && (m.Challenger == name || m.Defender == name)
}

// Opponent returns the other side of the match for name.
func (m Match) Opponent(name string) string {
	switch name {
	case m.Challenger:
		return m.Defender
	case m.Defender:
		return m.Challenger
	default:
		return ""
	}
}

// Snapshot is the whole last-known ladder state. It is replaced wholesale,
// never merged.
type Snapshot struct {
	Players []Player `json:"players"`
	Matches []Match  `json:"matches"`
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Players) == 0 && len(s.Matches) == 0
}

// Clone returns a value copy safe to hand out of the session.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Players: make([]Player, len(s.Players)),
		Matches: make([]Match, len(s.Matches)),
	}
	copy(out.Players, s.Players)
	copy(out.Matches, s.Matches)
	return out
}

func (s Snapshot) PlayerByName(name string) (Player, bool) {
	name = strings.TrimSpace(name)
	for _, item := range s.Players {
		if item.Name == name {
			return item, true
		}
	}
	return Player{}, false
}

// NormalizePlayer coerces a player to its semantic shape. Applying it twice
// yields the same value.
func NormalizePlayer(p Player) Player {
	p.Name = strings.TrimSpace(p.Name)
	p.Rank = nonNegative(p.Rank)
	p.Wins = nonNegative(p.Wins)
	p.Losses = nonNegative(p.Losses)
	p.LastPlayed = normalizeTime(p.LastPlayed)
	return p
}

// NormalizeMatch coerces a match to its semantic shape. Applying it twice
// yields the same value.
func NormalizeMatch(m Match) Match {
	m.Date = normalizeTime(m.Date)
	m.Challenger = strings.TrimSpace(m.Challenger)
	m.Defender = strings.TrimSpace(m.Defender)
	m.Winner = strings.TrimSpace(m.Winner)
	m.Score = strings.TrimSpace(m.Score)
	m.ChallengeDistance = nonNegative(m.ChallengeDistance)
	return m
}

// NormalizeSnapshot normalizes every entity and enforces canonical order:
// players by rank ascending, matches by date ascending.
func NormalizeSnapshot(s Snapshot) Snapshot {
	out := Snapshot{
		Players: make([]Player, 0, len(s.Players)),
		Matches: make([]Match, 0, len(s.Matches)),
	}
	for _, item := range s.Players {
		out.Players = append(out.Players, NormalizePlayer(item))
	}
	for _, item := range s.Matches {
		out.Matches = append(out.Matches, NormalizeMatch(item))
	}

	SortPlayers(out.Players)
	SortMatches(out.Matches)
	return out
}

// SortPlayers orders by rank ascending. Unranked rows (rank 0) go last and
// ties fall back to name so ordering is deterministic.
func SortPlayers(items []Player) {
	sort.SliceStable(items, func(i, j int) bool {
		left, right := items[i].Rank, items[j].Rank
		if left != right {
			if left == 0 {
				return false
			}
			if right == 0 {
				return true
			}
			return left < right
		}
		return items[i].Name < items[j].Name
	})
}

// SortMatches orders by date ascending; undated matches sort first.
func SortMatches(items []Match) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.Before(items[j].Date)
	})
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func normalizeTime(v time.Time) time.Time {
	if v.IsZero() {
		return time.Time{}
	}
	return v.UTC()
}
