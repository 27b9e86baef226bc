package scoring

import (
	"math"
	"sort"

	"classroom-quiz-service/internal/domain"
)

type playerTally struct {
	teamID   string
	attempts int
	correct  int
	timeMs   int64
}

// PlayerResults aggregates a room's submission log into per-player grades.
// Submissions without a player are attributed to "{teamId}-anon". Results are
// ordered by grade, then player id.
func PlayerResults(log []domain.Submission, planLen int) []domain.PlayerResult {
	tallies := make(map[string]*playerTally)
	for _, sub := range log {
		if sub.TeamID == "" {
			continue
		}
		key := sub.PlayerID
		if key == "" {
			key = sub.TeamID + "-anon"
		}
		t, ok := tallies[key]
		if !ok {
			t = &playerTally{teamID: sub.TeamID}
			tallies[key] = t
		}
		t.attempts++
		if sub.IsCorrect {
			t.correct++
			t.timeMs += sub.ResponseTimeMs
		}
	}

	out := make([]domain.PlayerResult, 0, len(tallies))
	for playerID, t := range tallies {
		out = append(out, gradePlayer(playerID, t, planLen))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Grade != out[j].Grade {
			return out[i].Grade > out[j].Grade
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

func gradePlayer(playerID string, t *playerTally, planLen int) domain.PlayerResult {
	res := domain.PlayerResult{
		PlayerID:    playerID,
		TeamID:      t.teamID,
		Attempts:    t.attempts,
		Correct:     t.correct,
		TotalTimeMs: t.timeMs,
	}
	if t.attempts > 0 {
		res.Accuracy = float64(t.correct) / float64(t.attempts)
	}
	if planLen > 0 {
		res.Engagement = math.Min(float64(t.attempts)/float64(planLen), 1)
	}
	if t.correct > 0 {
		avg := float64(t.timeMs) / float64(t.correct)
		res.AvgTimeMs = &avg
	}
	res.SpeedScore = SpeedScore(res.AvgTimeMs)
	res.Grade = Grade(res.Accuracy, res.Engagement, res.SpeedScore)
	return res
}

// SpeedScore maps an average correct-answer time to 1.0, 0.7 or 0.4; nil scores 0.
func SpeedScore(avgTimeMs *float64) float64 {
	switch {
	case avgTimeMs == nil:
		return 0
	case *avgTimeMs <= 30000:
		return 1.0
	case *avgTimeMs <= 60000:
		return 0.7
	default:
		return 0.4
	}
}

// Grade weights accuracy 60%, engagement 25% and speed 15% on a 0-100 scale.
// The weights are applied as percentages rather than scaling the weighted
// fraction by 100, which differs on exact halves: (0.75, 0.8, 0.7) grades 76,
// where (0.75*0.6+0.8*0.25+0.7*0.15)*100 evaluates to 75.4999... and rounds to 75.
func Grade(accuracy, engagement, speedScore float64) int {
	raw := accuracy*60 + engagement*25 + speedScore*15
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	return int(math.Round(raw))
}
