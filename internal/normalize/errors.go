package normalize

import (
	"fmt"

	"github.com/mascanho/seocrawl/pkg/failure"
)

type NormalizeErrorCause string

const (
	ErrCauseInvalidURL NormalizeErrorCause = "invalid_url"
)

// NormalizeError reports a canonicalization failure. Canonicalization
// failures are never retryable: the input URL is malformed, not
// transiently unavailable.
type NormalizeError struct {
	Message string
	Cause   NormalizeErrorCause
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize: %s: %s", e.Cause, e.Message)
}

func (e *NormalizeError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

var _ failure.ClassifiedError = (*NormalizeError)(nil)
