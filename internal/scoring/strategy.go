package scoring

import (
	"fmt"

	"classroom-quiz-service/internal/domain"
)

// Strategy decides when and how many points a submission is worth.
type Strategy interface {
	Mode() domain.ScoringMode
	// OnSubmit returns the points awarded right away for sub.
	// basePoints <= 0 means the strategy default.
	OnSubmit(sub Entry, basePoints int) int
	// OnRoundClose returns the deltas applied when a task's round closes.
	OnRoundClose(roster []string, subs []Entry) map[string]int
}

// Ranked grades a task as a batch at round close with ranked speed bonuses.
type Ranked struct {
	Config Config
}

func (Ranked) Mode() domain.ScoringMode { return domain.ScoringRanked }

func (Ranked) OnSubmit(Entry, int) int { return 0 }

func (r Ranked) OnRoundClose(roster []string, subs []Entry) map[string]int {
	return Calculate(roster, subs, r.Config)
}

// Immediate awards BasePoints for a correct answer plus FastBonus when it came
// in under FastThresholdMs. Nothing is awarded at round close.
type Immediate struct {
	BasePoints      int
	FastBonus       int
	FastThresholdMs int64
}

// DefaultImmediate returns the +10, +5 under 5000ms ticker rule.
func DefaultImmediate() Immediate {
	return Immediate{BasePoints: 10, FastBonus: 5, FastThresholdMs: 5000}
}

func (Immediate) Mode() domain.ScoringMode { return domain.ScoringImmediate }

func (s Immediate) OnSubmit(sub Entry, basePoints int) int {
	if !sub.IsCorrect {
		return 0
	}
	if basePoints <= 0 {
		basePoints = s.BasePoints
	}
	if sub.ResponseTimeMs >= 0 && sub.ResponseTimeMs < s.FastThresholdMs {
		return basePoints + s.FastBonus
	}
	return basePoints
}

func (Immediate) OnRoundClose(roster []string, _ []Entry) map[string]int {
	out := make(map[string]int, len(roster))
	for _, teamID := range roster {
		out[teamID] = 0
	}
	return out
}

// Registry resolves a room's scoring mode to a strategy.
type Registry struct {
	ranked    Ranked
	immediate Immediate
}

func NewRegistry(ranked Ranked, immediate Immediate) *Registry {
	return &Registry{ranked: ranked, immediate: immediate}
}

// DefaultRegistry uses DefaultConfig and DefaultImmediate.
func DefaultRegistry() *Registry {
	return NewRegistry(Ranked{Config: DefaultConfig()}, DefaultImmediate())
}

// For returns the strategy for mode.
func (r *Registry) For(mode domain.ScoringMode) (Strategy, error) {
	switch mode {
	case domain.ScoringRanked, "":
		return r.ranked, nil
	case domain.ScoringImmediate:
		return r.immediate, nil
	default:
		return nil, fmt.Errorf("unknown scoring mode %q", mode)
	}
}
