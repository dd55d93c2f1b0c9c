package chat

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxMessageLength   = 5000
	MaxHistoryMessages = 20
)

var sessionIDPattern = regexp.MustCompile(`^c[a-z0-9]{24}$`)

func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// validateMessage returns the trimmed text. Length is counted in code points
// on the raw input, so surrounding whitespace counts against the limit.
func validateMessage(text string) (string, []FieldError) {
	var errs []FieldError

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		errs = append(errs, FieldError{Field: "message", Message: "Message cannot be empty"})
	}

	if utf8.RuneCountInString(text) > MaxMessageLength {
		errs = append(errs, FieldError{
			Field:   "message",
			Message: fmt.Sprintf("Message exceeds maximum length (max %d characters)", MaxMessageLength),
		})
	}

	return trimmed, errs
}

func validateSessionID(id string) []FieldError {
	if !ValidSessionID(id) {
		return []FieldError{{Field: "sessionId", Message: "Invalid session ID"}}
	}
	return nil
}
