package relay

import (
	"fmt"
	"unicode/utf8"
)

// TooLongText is sent when a prompt exceeds the length limit.
const TooLongText = "Sorry but this message is too long for me to parse."

// RejectedInputError reports a prompt refused before any provider call.
type RejectedInputError struct {
	Length int
	Limit  int
}

func (e *RejectedInputError) Error() string {
	return fmt.Sprintf("relay: input of %d characters exceeds limit of %d", e.Length, e.Limit)
}

// Is makes every RejectedInputError match ErrTooLong.
func (e *RejectedInputError) Is(target error) bool {
	_, ok := target.(*RejectedInputError)
	return ok
}

// ErrTooLong matches any rejection for length with errors.Is.
var ErrTooLong = &RejectedInputError{}

// CheckLength rejects text longer than limit runes. limit <= 0 disables
// the check.
func CheckLength(text string, limit int) error {
	if limit <= 0 {
		return nil
	}
	if n := utf8.RuneCountInString(text); n > limit {
		return &RejectedInputError{Length: n, Limit: limit}
	}
	return nil
}
