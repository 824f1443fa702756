package storage

import (
	"fmt"

	"github.com/mascanho/seocrawl/internal/metadata"
	"github.com/mascanho/seocrawl/pkg/failure"
)

type StorageErrorCause string

const (
	ErrCauseConnectionFailed StorageErrorCause = "connection failed"
	ErrCauseNotInitialized   StorageErrorCause = "store not initialized"
	ErrCauseWriteFailure     StorageErrorCause = "write failed"
	ErrCauseSerializeFailure StorageErrorCause = "serialize failed"
	ErrCauseQueryFailure     StorageErrorCause = "query failed"
)

type StorageError struct {
	Message   string
	Retryable bool
	Cause     StorageErrorCause
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %s", e.Cause, e.Message)
}

func (e *StorageError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*StorageError)(nil)

// mapStorageErrorToMetadataCause maps storage-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapStorageErrorToMetadataCause(err *StorageError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseConnectionFailed, ErrCauseWriteFailure, ErrCauseQueryFailure:
		return metadata.CauseStorageFailure
	case ErrCauseNotInitialized:
		return metadata.CauseInvariantViolation
	case ErrCauseSerializeFailure:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
