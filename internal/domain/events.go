package domain

// EventType names an outbound room event.
type EventType string

const (
	EventJoined            EventType = "joined"
	EventLeaderboardUpdate EventType = "leaderboardUpdate"
	EventTaskUpdate        EventType = "taskUpdate"
	EventRoundStarted      EventType = "roundStarted"
	EventRoundScored       EventType = "roundScored"
	EventBonus             EventType = "bonusEvent"
	EventBonusClaimed      EventType = "bonusClaimed"
	EventTasksetComplete   EventType = "tasksetComplete"
	EventSnapshot          EventType = "snapshot"
	EventError             EventType = "error"
)

// Event is what a room fans out to its subscribers.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// BonusClaim is broadcast after a successful claim.
type BonusClaim struct {
	BonusID string `json:"bonusId"`
	TeamID  string `json:"teamId"`
	Points  int    `json:"points"`
}

// ErrorMessage is the payload of an error event.
type ErrorMessage struct {
	Message string `json:"message"`
}
