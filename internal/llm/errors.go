package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoBackends is returned when the gateway has nothing to try.
	ErrNoBackends = errors.New("no generation backends configured")
	// ErrEmptyResponse marks a backend reply without usable text.
	ErrEmptyResponse = errors.New("backend returned no text")
)

// GenerationFailure is returned when every configured backend failed.
// It wraps the last backend error.
type GenerationFailure struct {
	Attempted []string
	Err       error
}

func (e *GenerationFailure) Error() string {
	if len(e.Attempted) == 0 {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("generation failed after %d backend(s) [%s]: %v",
		len(e.Attempted), strings.Join(e.Attempted, ", "), e.Err)
}

func (e *GenerationFailure) Unwrap() error {
	return e.Err
}

// IsGenerationFailure reports whether err is or wraps a GenerationFailure.
func IsGenerationFailure(err error) bool {
	var gf *GenerationFailure
	return errors.As(err, &gf)
}
