package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// NormalizeRoomCode trims and upper-cases a room code.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateTaskSet checks a loaded task set before it becomes a room's plan.
func ValidateTaskSet(ts TaskSet) error {
	if err := validate.Struct(ts); err != nil {
		return fmt.Errorf("task set %q: %w", ts.ID, err)
	}
	return nil
}
