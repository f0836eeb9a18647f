package regressor

import (
	"fmt"
	"strings"
)

// ArtifactLoadError is returned when the model artifact cannot be read or decoded
// The service cannot start without a model, so callers treat it as fatal
type ArtifactLoadError struct {
	Path    string
	Message string
	Err     error
}

func (e *ArtifactLoadError) Error() string {
	location := e.Path
	if location == "" {
		location = "<reader>"
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to load model artifact %s: %s: %v", location, e.Message, e.Err)
	}
	return fmt.Sprintf("failed to load model artifact %s: %s", location, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As
func (e *ArtifactLoadError) Unwrap() error {
	return e.Err
}

// IsTransient returns false as a missing or corrupt artifact does not heal itself
func (e *ArtifactLoadError) IsTransient() bool {
	return false
}

// SchemaMismatchError is returned when an input row disagrees with the trained schema
type SchemaMismatchError struct {
	Expected []string
	Got      []string
	Width    int
}

func (e *SchemaMismatchError) Error() string {
	if e.Got != nil {
		return fmt.Sprintf("feature schema mismatch: model expects [%s], got [%s]",
			strings.Join(e.Expected, ", "), strings.Join(e.Got, ", "))
	}
	return fmt.Sprintf("feature schema mismatch: model expects %d features, got %d",
		len(e.Expected), e.Width)
}

// IsTransient returns false as schema mismatches are permanent
func (e *SchemaMismatchError) IsTransient() bool {
	return false
}
