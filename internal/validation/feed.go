package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	MaxPostBodyLen    = 1000
	MaxCommentBodyLen = 500
	MinUsernameLen    = 3
	MaxUsernameLen    = 20
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// PostBody trims body and checks it holds 1-1000 characters.
func PostBody(body string) (string, error) {
	return boundedText("post body", body, MaxPostBodyLen)
}

// CommentBody trims body and checks it holds 1-500 characters.
func CommentBody(body string) (string, error) {
	return boundedText("comment body", body, MaxCommentBodyLen)
}

func boundedText(field, body string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", field)
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return "", fmt.Errorf("%s must be at most %d characters", field, maxLen)
	}
	return trimmed, nil
}

// Username trims the name and checks the 3-20 character bound.
func Username(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	n := utf8.RuneCountInString(trimmed)
	if n < MinUsernameLen || n > MaxUsernameLen {
		return "", fmt.Errorf("username must be %d-%d characters", MinUsernameLen, MaxUsernameLen)
	}
	return trimmed, nil
}

// Email trims and lowercases the address and checks its shape.
func Email(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(normalized) {
		return "", fmt.Errorf("email must be a valid address")
	}
	return normalized, nil
}

// IsValidID reports whether id is a canonical aggregate id (UUID).
func IsValidID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// IsValidSubID reports whether id is an embedded comment/like id (ULID).
func IsValidSubID(id string) bool {
	if len(id) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(id)
	return err == nil
}
