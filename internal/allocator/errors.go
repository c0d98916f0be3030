package allocator

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed or out-of-bounds input. It is never
// retried and is surfaced to the caller before any storage access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports that some of the requested indices are already
// claimed by another active reservation. The claim was rolled back in full;
// Indices lists exactly the contested ticket indices, sorted ascending, so
// the caller can offer alternatives.
type ConflictError struct {
	Indices []int
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Indices))
	for i, idx := range e.Indices {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("tickets unavailable: [%s]", strings.Join(parts, " "))
}

// CapacityError reports a request larger than the per-call ticket cap. The
// cap bounds worst-case contention and payload size; it is a validation
// class failure, not a system one.
type CapacityError struct {
	Requested int
	Limit     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("requested %d tickets exceeds per-call limit of %d", e.Requested, e.Limit)
}

// TransientError wraps a storage failure (timeout, deadlock, serialization
// conflict) that survived the engine's local retries. The claim was not
// applied; the caller may safely retry the whole request.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient storage error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
