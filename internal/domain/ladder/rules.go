package ladder

import (
	"sort"
	"strings"
)

// Rules stores the challenge reach of a ladder position. A challenger at
// rank r may target r-k for every k in UpReach and r+k for every k in
// DownReach.
type Rules struct {
	UpReach   []int
	DownReach []int
}

func DefaultRules() Rules {
	return Rules{
		UpReach:   []int{1, 2},
		DownReach: []int{1},
	}
}

// CandidateRanks returns the ranks a challenger at rank may target, clipped
// to [1, playerCount] and ascending.
func (r Rules) CandidateRanks(rank, playerCount int) []int {
	if rank <= 0 || playerCount <= 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(r.UpReach)+len(r.DownReach))
	out := make([]int, 0, len(r.UpReach)+len(r.DownReach))
	add := func(target int) {
		if target < 1 || target > playerCount || target == rank {
			return
		}
		if _, ok := seen[target]; ok {
			return
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	for _, k := range r.UpReach {
		add(rank - k)
	}
	for _, k := range r.DownReach {
		add(rank + k)
	}
	sort.Ints(out)
	return out
}

// LastOpponent returns the opponent of name in the most recent match that
// involves them. Matches with equal dates resolve to the later element.
func LastOpponent(matches []Match, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var (
		best  Match
		found bool
	)
	for _, item := range matches {
		if !item.Involves(name) {
			continue
		}
		if !found || !item.Date.Before(best.Date) {
			best = item
			found = true
		}
	}
	if !found {
		return ""
	}
	return best.Opponent(name)
}

// AllowedDefenders lists, ascending by rank, who challenger may challenge
// next. The result is advisory; the server re-validates every submission.
//
// An unresolvable challenger (unknown or rank 0) falls back to everyone but
// the challenger. The last opponent is excluded, except in the fallback
// case when excluding them would leave nobody.
func AllowedDefenders(snapshot Snapshot, challenger string, rules Rules) []string {
	challenger = strings.TrimSpace(challenger)
	players := make([]Player, len(snapshot.Players))
	copy(players, snapshot.Players)
	SortPlayers(players)

	lastOpponent := LastOpponent(snapshot.Matches, challenger)

	self, ok := snapshot.PlayerByName(challenger)
	if !ok || self.Rank <= 0 {
		everyone := make([]string, 0, len(players))
		for _, item := range players {
			if item.Name == "" || item.Name == challenger {
				continue
			}
			everyone = append(everyone, item.Name)
		}
		filtered := excludeName(everyone, lastOpponent)
		if len(filtered) == 0 {
			return everyone
		}
		return filtered
	}

	targets := make(map[int]struct{})
	for _, rank := range rules.CandidateRanks(self.Rank, len(players)) {
		targets[rank] = struct{}{}
	}

	out := make([]string, 0, len(targets))
	for _, item := range players {
		if item.Name == "" || item.Name == challenger {
			continue
		}
		if _, ok := targets[item.Rank]; !ok {
			continue
		}
		out = append(out, item.Name)
	}
	return excludeName(out, lastOpponent)
}

func excludeName(items []string, name string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if name != "" && item == name {
			continue
		}
		out = append(out, item)
	}
	return out
}
