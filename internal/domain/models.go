package domain

import "time"

// TaskType names how a task is answered. Empty values default to TaskTypeShortAnswer.
type TaskType string

const (
	TaskTypeShortAnswer    TaskType = "short-answer"
	TaskTypeMultipleChoice TaskType = "multiple-choice"
	TaskTypeTrueFalse      TaskType = "true-false"
)

// DefaultTaskPoints is used when a task definition carries no points.
const DefaultTaskPoints = 10

// RoomState is the progression state of a room.
type RoomState string

const (
	RoomLobby      RoomState = "lobby"
	RoomTaskActive RoomState = "task_active"
	RoomComplete   RoomState = "complete"
)

// ScoringMode selects how submissions turn into points for a room.
type ScoringMode string

const (
	// ScoringRanked grades a whole task when its round closes, with ranked speed bonuses.
	ScoringRanked ScoringMode = "ranked"
	// ScoringImmediate awards points as each submission arrives (live leaderboard ticker).
	ScoringImmediate ScoringMode = "immediate"
)

// Team is a named, colored group of students sharing one score.
type Team struct {
	ID          string
	Name        string
	Color       string
	Score       int
	LastUpdated time.Time
}

// Participant represents a connected student or teacher device.
type Participant struct {
	PlayerID    string
	DisplayName string
	TeamID      string
	Online      bool
	JoinedAt    time.Time
}

// TaskDefinition is one entry of a task plan.
// A nil CorrectAnswer means the task is graded manually.
type TaskDefinition struct {
	Prompt        string   `json:"prompt" validate:"required"`
	CorrectAnswer *string  `json:"correctAnswer,omitempty"`
	Options       []string `json:"options,omitempty"`
	Type          TaskType `json:"type,omitempty" validate:"omitempty,oneof=short-answer multiple-choice true-false"`
	Points        int      `json:"points,omitempty" validate:"gte=0"`
}

// TaskSet is a named, ordered task plan.
type TaskSet struct {
	ID    string           `json:"id" validate:"required"`
	Title string           `json:"title"`
	Tasks []TaskDefinition `json:"tasks" validate:"dive"`
}

// Submission is one team's answer to one task.
type Submission struct {
	TeamID         string    `json:"teamId"`
	PlayerID       string    `json:"playerId,omitempty"`
	TaskIndex      int       `json:"taskIndex"`
	Answer         string    `json:"answer,omitempty"`
	IsCorrect      bool      `json:"isCorrect"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	Awarded        int       `json:"awarded"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// TaskSnapshot is the active task as shown to a room.
type TaskSnapshot struct {
	Index         int          `json:"index"`
	Total         int          `json:"total"`
	Prompt        string       `json:"prompt"`
	CorrectAnswer *string      `json:"-"`
	ManualGrading bool         `json:"manualGrading"`
	Options       []string     `json:"options,omitempty"`
	Type          TaskType     `json:"type"`
	Points        int          `json:"points"`
	StartedAt     time.Time    `json:"startedAt"`
	Submissions   []Submission `json:"-"`
	Submitted     int          `json:"submitted"`
}

// Bonus is a time-limited, claimable point award.
type Bonus struct {
	ID         string    `json:"id"`
	Points     int       `json:"points"`
	DurationMs int64     `json:"durationMs"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// LeaderboardEntry is a snapshot-friendly view of a team.
type LeaderboardEntry struct {
	TeamID string `json:"teamId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Score  int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a room.
type Leaderboard struct {
	RoomCode  string             `json:"roomCode"`
	Entries   []LeaderboardEntry `json:"entries"`
	Scores    map[string]int     `json:"scores"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// RoundScore reports the deltas applied when a ranked round closes.
type RoundScore struct {
	TaskIndex int            `json:"taskIndex"`
	Deltas    map[string]int `json:"deltas"`
}

// PlayerResult is the end-of-session breakdown for one player.
type PlayerResult struct {
	PlayerID    string   `json:"playerId"`
	TeamID      string   `json:"teamId"`
	Attempts    int      `json:"attempts"`
	Correct     int      `json:"correct"`
	TotalTimeMs int64    `json:"totalTimeMs"`
	Accuracy    float64  `json:"accuracy"`
	Engagement  float64  `json:"engagement"`
	AvgTimeMs   *float64 `json:"avgTimeMs"`
	SpeedScore  float64  `json:"speedScore"`
	Grade       int      `json:"grade"`
}

// FinalResults is emitted once when a room completes its task plan.
type FinalResults struct {
	RoomCode    string         `json:"roomCode"`
	Results     []PlayerResult `json:"results"`
	Tasks       []TaskSummary  `json:"tasks"`
	Leaderboard Leaderboard    `json:"leaderboard"`
	TeacherMail string         `json:"-"`
	CompletedAt time.Time      `json:"completedAt"`
}

// TaskSummary aggregates the submissions for one task of a finished plan.
type TaskSummary struct {
	Index       int    `json:"index"`
	Prompt      string `json:"prompt"`
	Submissions int    `json:"submissions"`
	Correct     int    `json:"correct"`
}

// RoomSnapshot is the full view sent to (re)connecting clients.
type RoomSnapshot struct {
	RoomCode    string        `json:"roomCode"`
	State       RoomState     `json:"state"`
	TaskIndex   int           `json:"taskIndex"`
	TaskCount   int           `json:"taskCount"`
	Mode        ScoringMode   `json:"mode"`
	CurrentTask *TaskSnapshot `json:"currentTask,omitempty"`
	Bonuses     []Bonus       `json:"bonuses"`
	Leaderboard Leaderboard   `json:"leaderboard"`
}

// TeamSessionRecord is what the persistence collaborator keeps per joined player.
type TeamSessionRecord struct {
	RoomCode    string    `json:"roomCode"`
	TeamID      string    `json:"teamId"`
	TeamName    string    `json:"teamName"`
	PlayerID    string    `json:"playerId"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}
