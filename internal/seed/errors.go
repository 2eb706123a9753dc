package seed

import (
	"errors"
	"fmt"
)

// SourceError reports a failure to obtain or read one of the source dumps:
// unreachable URL, bad status, unreadable archive, missing member or a read
// failure mid-stream. Such failures abort the build before any output is
// written.
type SourceError struct {
	Source string // "places" or "alternate_names"
	Op     string // "fetch", "open" or "read"
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsSourceError reports whether err wraps a *SourceError.
func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}
