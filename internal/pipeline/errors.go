package pipeline

import (
	"errors"
	"fmt"
)

// ErrSubmissionNotFound aborts the current invocation; the record is gone and
// rescheduling cannot bring it back.
var ErrSubmissionNotFound = errors.New("submission not found")

// ConfigError marks failures that will not self-heal: missing credentials or
// an AI search instance that does not exist. The scheduler must not retry
// these.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline configuration error: %s", e.Reason)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsFatal reports whether the error should halt the pipeline for this
// submission instead of being retried. Everything else is treated as
// transient and recovered by rescheduling.
func IsFatal(err error) bool {
	return IsConfigError(err) || errors.Is(err, ErrSubmissionNotFound)
}
