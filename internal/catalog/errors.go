package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a catalog failure for display.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Error is returned by Client for every failed request.
type Error struct {
	Kind   Kind
	Status int    // HTTP status for KindAPI
	Body   string // trimmed response body for KindAPI
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAPI:
		if e.Body != "" {
			return fmt.Sprintf("catalog api error: status %d: %s", e.Status, e.Body)
		}
		return fmt.Sprintf("catalog api error: status %d", e.Status)
	case KindNetwork:
		return fmt.Sprintf("catalog network error: %v", e.Err)
	default:
		return fmt.Sprintf("catalog error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports how err should be presented. Errors not produced by the
// client are classified by their type: transport errors count as network.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindUnknown
}

// Message is the user-facing text for a failed catalog request.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindNetwork:
		return "Network error. Check your connection and try again."
	case KindAPI:
		var ce *Error
		if errors.As(err, &ce) {
			return fmt.Sprintf("Catalog error (HTTP %d). Try again later.", ce.Status)
		}
		return "Catalog error. Try again later."
	default:
		return "Something went wrong: " + err.Error()
	}
}
