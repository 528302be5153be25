package capability

import (
	"errors"
	"fmt"
)

// ErrUnsupported matches any *UnsupportedCapabilityError via errors.Is.
var ErrUnsupported = errors.New("capability not supported")

// UnsupportedCapabilityError is returned when a backend is asked for an
// operation it does not implement. Retrying against the same backend is
// pointless.
type UnsupportedCapabilityError struct {
	Operation Operation
	Backend   string
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Backend, e.Operation)
}

// Is reports whether target is ErrUnsupported.
func (e *UnsupportedCapabilityError) Is(target error) bool {
	return target == ErrUnsupported
}

// MalformedPlanError is returned when structured-plan output cannot be
// decoded as a JSON object.
type MalformedPlanError struct {
	Backend string
	Raw     string
	Err     error
}

func (e *MalformedPlanError) Error() string {
	return fmt.Sprintf("malformed plan from %s: %v", e.Backend, e.Err)
}

func (e *MalformedPlanError) Unwrap() error {
	return e.Err
}

// GenerationError wraps a failed content call (rate limit, timeout, empty
// or malformed response).
type GenerationError struct {
	Operation Operation
	Backend   string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Operation, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError wraps err, or returns nil when err is nil.
func NewGenerationError(op Operation, backend string, err error) error {
	if err == nil {
		return nil
	}
	return &GenerationError{Operation: op, Backend: backend, Err: err}
}
