package weather

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateBatch is matched by a PersistenceError when the store rejected
// rows that already exist for the same (date, time, is_forecast).
var ErrDuplicateBatch = errors.New("batch already stored for date and kind")

// TransportError reports a failed provider call: network failure, non-2xx
// status or an undecodable body.
type TransportError struct {
	Horizon Horizon
	City    string
	Status  int // 0 when no response was received
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s for %q: status %d: %v", e.Horizon, e.City, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s for %q: %v", e.Horizon, e.City, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MappingError reports a provider response that does not have the expected shape.
type MappingError struct {
	Path   string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("map response: %s: %s", e.Path, e.Reason)
}

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op   string // "delete", "insert" or "schema"
	Kind Kind
	Date string
	Err  error
}

func (e *PersistenceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Date != "" {
		fmt.Fprintf(&b, " %s %s", e.Kind, e.Date)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrorPolicy decides what the pipeline does with persistence failures.
type ErrorPolicy string

const (
	// PolicyBestEffort logs persistence failures and reports success so the
	// schedule is never blocked.
	PolicyBestEffort ErrorPolicy = "best-effort"
	// PolicyFailFast returns persistence failures to the caller.
	PolicyFailFast ErrorPolicy = "fail-fast"
)

// ParseErrorPolicy validates a configured policy name.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyBestEffort, "":
		return PolicyBestEffort, nil
	case PolicyFailFast:
		return PolicyFailFast, nil
	default:
		return "", fmt.Errorf("unknown error policy %q", s)
	}
}
