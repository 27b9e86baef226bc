package report

import (
	"math"
	"time"

	"classroom-quiz-service/internal/domain"
)

// Analytics is the post-session summary sent to the teacher.
type Analytics struct {
	RoomCode             string                    `json:"roomCode"`
	ClassAverageScore    float64                   `json:"classAverageScore"`
	ClassAverageAccuracy float64                   `json:"classAverageAccuracy"`
	Tasks                []TaskAnalytics           `json:"tasks"`
	Students             []domain.PlayerResult     `json:"students"`
	Teams                []domain.LeaderboardEntry `json:"teams"`
	CompletedAt          time.Time                 `json:"completedAt"`
}

type TaskAnalytics struct {
	Index         int     `json:"index"`
	Prompt        string  `json:"prompt"`
	Submissions   int     `json:"submissions"`
	Correct       int     `json:"correct"`
	AvgCorrectPct float64 `json:"avgCorrectPct"`
}

// BuildAnalytics derives class-level figures from the final results of a room.
// Averages are rounded to one decimal; accuracy is a percentage.
func BuildAnalytics(final domain.FinalResults) Analytics {
	a := Analytics{
		RoomCode:    final.RoomCode,
		Students:    append([]domain.PlayerResult(nil), final.Results...),
		Teams:       append([]domain.LeaderboardEntry(nil), final.Leaderboard.Entries...),
		CompletedAt: final.CompletedAt,
		Tasks:       make([]TaskAnalytics, 0, len(final.Tasks)),
	}

	if n := len(final.Results); n > 0 {
		var grades, accuracy float64
		for _, r := range final.Results {
			grades += float64(r.Grade)
			accuracy += r.Accuracy
		}
		a.ClassAverageScore = round1(grades / float64(n))
		a.ClassAverageAccuracy = round1(accuracy / float64(n) * 100)
	}

	for _, t := range final.Tasks {
		ta := TaskAnalytics{
			Index:       t.Index,
			Prompt:      t.Prompt,
			Submissions: t.Submissions,
			Correct:     t.Correct,
		}
		if t.Submissions > 0 {
			ta.AvgCorrectPct = round1(float64(t.Correct) / float64(t.Submissions) * 100)
		}
		a.Tasks = append(a.Tasks, ta)
	}
	return a
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
