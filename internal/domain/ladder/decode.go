package ladder

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Payloads from the remote sheet and from the local cache are decoded into
// loose maps first and then mapped here, so both paths share one shape.

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"2006-01-02",
}

// PlayerFromRaw maps one decoded JSON object to a normalized Player. Missing
// or mistyped fields take their zero value.
func PlayerFromRaw(src map[string]any) Player {
	return NormalizePlayer(Player{
		Name:       getString(src, "name"),
		Rank:       getInt(src, "rank"),
		Wins:       getInt(src, "wins"),
		Losses:     getInt(src, "losses"),
		Streak:     getInt(src, "streak"),
		LastPlayed: getTime(src, "lastPlayed"),
	})
}

// MatchFromRaw maps one decoded JSON object to a normalized Match.
func MatchFromRaw(src map[string]any) Match {
	return NormalizeMatch(Match{
		Date:              getTime(src, "date"),
		Challenger:        getString(src, "challenger"),
		Defender:          getString(src, "defender"),
		Winner:            getString(src, "winner"),
		Score:             getString(src, "score"),
		Allowed:           getBool(src, "allowed"),
		Swap:              getBool(src, "swap"),
		ChallengeDistance: getInt(src, "challengeDistance"),
	})
}

// SnapshotFromRaw maps raw player and match arrays. Non-object items are
// skipped.
func SnapshotFromRaw(players, matches []any) Snapshot {
	out := Snapshot{
		Players: make([]Player, 0, len(players)),
		Matches: make([]Match, 0, len(matches)),
	}
	for _, item := range players {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out.Players = append(out.Players, PlayerFromRaw(obj))
	}
	for _, item := range matches {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out.Matches = append(out.Matches, MatchFromRaw(obj))
	}
	return NormalizeSnapshot(out)
}

// ParseTimestamp accepts the formats the sheet backend is known to emit.
// Unknown input yields the zero time.
func ParseTimestamp(raw string) time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return normalizeTime(parsed)
		}
	}
	if millis, err := strconv.ParseInt(value, 10, 64); err == nil && millis > 0 {
		return time.UnixMilli(millis).UTC()
	}
	return time.Time{}
}

func getString(src map[string]any, key string) string {
	if src == nil {
		return ""
	}
	raw, ok := src[key]
	if !ok || raw == nil {
		return ""
	}
	switch typed := raw.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return ""
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

func getInt(src map[string]any, key string) int {
	if src == nil {
		return 0
	}
	raw, ok := src[key]
	if !ok || raw == nil {
		return 0
	}
	switch typed := raw.(type) {
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return 0
		}
		return int(typed)
	case int:
		return typed
	case int64:
		return int(typed)
	case string:
		value := strings.TrimSpace(typed)
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
		if v, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return int(v)
		}
		return 0
	default:
		return 0
	}
}

func getBool(src map[string]any, key string) bool {
	if src == nil {
		return false
	}
	raw, ok := src[key]
	if !ok || raw == nil {
		return false
	}
	switch typed := raw.(type) {
	case bool:
		return typed
	case float64:
		return typed != 0 && !math.IsNaN(typed)
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "yes", "y", "1":
			return true
		}
		return false
	default:
		return false
	}
}

func getTime(src map[string]any, key string) time.Time {
	if src == nil {
		return time.Time{}
	}
	raw, ok := src[key]
	if !ok || raw == nil {
		return time.Time{}
	}
	switch typed := raw.(type) {
	case string:
		return ParseTimestamp(typed)
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) || typed <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(int64(typed)).UTC()
	case time.Time:
		return normalizeTime(typed)
	default:
		return time.Time{}
	}
}
