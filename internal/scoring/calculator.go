// Package scoring turns task submissions into per-team point deltas.
package scoring

import "sort"

// Entry is the scoring-relevant part of one submission.
type Entry struct {
	TeamID         string
	IsCorrect      bool
	ResponseTimeMs int64
}

// Config holds the batch calculator parameters.
type Config struct {
	BasePoints   int
	SpeedBonuses []int
}

// DefaultConfig returns 10 base points and a [5, 3, 2] speed bonus table.
func DefaultConfig() Config {
	return Config{BasePoints: 10, SpeedBonuses: []int{5, 3, 2}}
}

// Calculate returns the point delta for every team referenced by subs and every
// team on the roster. Correct answers earn BasePoints; the k-th fastest correct
// answer also earns SpeedBonuses[k]. Equal response times keep submission order.
// A later entry for the same team replaces an earlier one. Entries without a
// team are skipped. Neither input is modified.
func Calculate(roster []string, subs []Entry, cfg Config) map[string]int {
	out := make(map[string]int, len(roster)+len(subs))
	for _, teamID := range roster {
		if teamID != "" {
			out[teamID] = 0
		}
	}

	latest := make(map[string]int, len(subs))
	for i, e := range subs {
		if e.TeamID == "" {
			continue
		}
		latest[e.TeamID] = i
	}

	correct := make([]Entry, 0, len(latest))
	for i, e := range subs {
		if e.TeamID == "" || latest[e.TeamID] != i {
			continue
		}
		if !e.IsCorrect {
			out[e.TeamID] = 0
			continue
		}
		out[e.TeamID] = cfg.BasePoints
		correct = append(correct, e)
	}

	sort.SliceStable(correct, func(i, j int) bool {
		return correct[i].ResponseTimeMs < correct[j].ResponseTimeMs
	})
	for k, e := range correct {
		if k >= len(cfg.SpeedBonuses) {
			break
		}
		out[e.TeamID] += cfg.SpeedBonuses[k]
	}
	return out
}
