package business

import "fmt"

// UnrecognizedValueError signals an upstream-contract violation: GitHub sent
// a role or permission string we do not know. It is never silently coerced.
type UnrecognizedValueError struct {
	Kind  string
	Value string
}

func (e *UnrecognizedValueError) Error() string {
	return fmt.Sprintf("unrecognized %s value: %q", e.Kind, e.Value)
}

// InvalidStateError signals a configuration violation (for example several
// sudoers teams configured where at most one is expected).
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Reason
}
