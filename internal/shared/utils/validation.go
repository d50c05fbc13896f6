package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String length limits
const (
	MaxClientIDLength = 100
	MaxURLLength      = 2048
	MaxMessageLength  = 1000
	MaxHistoryEntries = 50
	MaxIDLength       = 128
)

// Regular expressions for validation
var (
	// ClientIDPattern allows alphanumeric, dots, hyphens, underscores
	ClientIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s parameter is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateClientID validates a caller-supplied client identifier
func ValidateClientID(id string) error {
	if err := ValidateString(id, "client_id", 1, MaxClientIDLength, true); err != nil {
		return err
	}
	if !ClientIDPattern.MatchString(id) {
		return fmt.Errorf("client_id contains invalid characters (only alphanumeric, dots, hyphens, and underscores allowed)")
	}
	return nil
}

// ValidateID validates a server-issued identifier such as a preview id
func ValidateID(id, fieldName string) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, true); err != nil {
		return err
	}
	if !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}
	return nil
}

// ValidateTargetURL checks presence and length only; scheme and host
// policy belong to the URL guard.
func ValidateTargetURL(raw string) error {
	return ValidateString(raw, "url", 1, MaxURLLength, true)
}

// ValidateMessage validates a chat message
func ValidateMessage(message string) error {
	if err := ValidateString(message, "message", 1, MaxMessageLength, true); err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message must not be blank")
	}
	return nil
}
