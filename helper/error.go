package helper

import "fmt"

// Error wraps an error with the step it happened in.
// The original error stays reachable through errors.Is and errors.As.
type Error struct {
	Step     string
	Original error
}

// NewError wraps err with the step that failed. It returns nil if err is nil.
func NewError(step string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Step: step, Original: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error %s: %v", e.Step, e.Original)
}

func (e *Error) Unwrap() error {
	return e.Original
}
