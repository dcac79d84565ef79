package workflow

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a run is requested while another is executing.
var ErrRunInProgress = errors.New("workflow run already in progress")

// ConfigurationError means the graph cannot be run at all. No node leaves idle.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "workflow configuration: " + e.Reason
}

// ErrNoEntryPoint is returned when the graph has no trigger node.
var ErrNoEntryPoint = &ConfigurationError{Reason: "no entry point: graph has no trigger node"}

// CapabilityError is a failure of a single node's capability call.
type CapabilityError struct {
	NodeID   string
	NodeType NodeType
	Err      error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.NodeType, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// QuotaExceededError is a CapabilityError caused by the remote service
// rejecting the call for quota or rate limits.
type QuotaExceededError struct {
	*CapabilityError
}

func (e *QuotaExceededError) Error() string {
	return "quota exceeded: " + e.CapabilityError.Error()
}

func (e *QuotaExceededError) Unwrap() error { return e.CapabilityError }

// quotaReporter is implemented by model client errors that know they were
// caused by quota exhaustion.
type quotaReporter interface {
	QuotaExceeded() bool
}

// nodeError wraps a dispatch failure in the matching typed error.
func nodeError(node Node, err error) error {
	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return err
	}
	capErr = &CapabilityError{NodeID: node.ID, NodeType: node.Type, Err: err}

	var q quotaReporter
	if errors.As(err, &q) && q.QuotaExceeded() {
		return &QuotaExceededError{CapabilityError: capErr}
	}
	return capErr
}
