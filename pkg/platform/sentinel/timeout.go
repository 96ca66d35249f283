package sentinel

import (
	"fmt"
	"time"
)

// StoreTimeoutError reports a backing store call that outlived its deadline.
// It matches ErrTimeout with errors.Is.
type StoreTimeoutError struct {
	Store   string
	Op      string
	Timeout time.Duration
}

func (e *StoreTimeoutError) Error() string {
	return fmt.Sprintf("%s %s timed out after %s", e.Store, e.Op, e.Timeout)
}

func (e *StoreTimeoutError) Unwrap() error {
	return ErrTimeout
}
