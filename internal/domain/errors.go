package domain

import "errors"

var (
	// ErrRoomNotFound is returned when an event references a room that does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrBonusNotFound is returned for unknown or already claimed bonuses.
	ErrBonusNotFound = errors.New("bonus not found")
	// ErrBonusExpired is returned when a bonus is claimed after its expiry.
	ErrBonusExpired = errors.New("bonus expired")
	// ErrNoActiveTask is returned when a submission arrives outside an active task.
	ErrNoActiveTask = errors.New("no active task")
	// ErrSessionComplete is returned for transitions attempted after the plan finished.
	ErrSessionComplete = errors.New("session already complete")
	// ErrInvalidSubmission indicates a malformed submission (missing team).
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrPlanLocked is returned when a task plan is changed after the session started.
	ErrPlanLocked = errors.New("task plan already in progress")
	// ErrModeLocked is returned when the scoring mode is changed while a task is running.
	ErrModeLocked = errors.New("scoring mode cannot change during a task")
	// ErrTaskSetNotFound indicates the task set could not be loaded.
	ErrTaskSetNotFound = errors.New("task set not found")
	// ErrForbidden is returned when a student sends a teacher-only event.
	ErrForbidden = errors.New("teacher role required")
	// ErrNoTaskPlan is returned when progression is requested for a room without a plan.
	ErrNoTaskPlan = errors.New("room has no task plan")
	// ErrResultsPending is returned when final results are requested before completion.
	ErrResultsPending = errors.New("session results not available yet")
	// ErrInvalidRoomCode is returned for empty room codes.
	ErrInvalidRoomCode = errors.New("invalid room code")
)

// IsNoOp reports whether err describes a late, duplicate or out-of-order event
// that callers should drop without telling the client.
func IsNoOp(err error) bool {
	return errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrBonusNotFound) ||
		errors.Is(err, ErrSessionComplete)
}
