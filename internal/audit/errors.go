package audit

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrBufferFull is returned when the async recorder cannot accept more records.
var ErrBufferFull = errors.New("audit buffer full")

// ErrRecorderClosed is returned for records submitted after Close.
var ErrRecorderClosed = errors.New("audit recorder closed")

// AuditWriteError reports a record that was not persisted. It is an internal
// signal for logs and metrics and is never shown to the caller.
type AuditWriteError struct {
	RecordID uuid.UUID
	Err      error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write failed for record %s: %v", e.RecordID, e.Err)
}

func (e *AuditWriteError) Unwrap() error {
	return e.Err
}
