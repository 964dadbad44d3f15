// Package common defines shared constants and sentinel errors used across
// the broker's layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Transport errors. ErrNetworkUnavailable is returned once the retry
	// budget for connection/timeout failures is exhausted.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// Authentication errors. ErrSessionExpired corresponds to a 401 from the
	// authorization service and triggers local session eviction.
	ErrSessionExpired = errors.New("session expired")

	// Data errors. ErrBadResponseData covers structurally malformed or
	// undecryptable response bodies; retrying will not help.
	ErrBadResponseData = errors.New("bad response data")

	// ErrRequestRejected marks a 2xx response whose body reports
	// success=false; the server's message is attached by the caller.
	ErrRequestRejected = errors.New("request rejected")

	// Broker-level errors.
	ErrNoValidSessions = errors.New("no valid sessions")
	ErrNoActiveToken   = errors.New("no active token")
	ErrInvalidMode     = errors.New("invalid mode")
)

// ServerError is a non-2xx response other than 401, carrying the status code.
// It is surfaced as-is and never retried.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d)", e.Status)
}

// Request signature headers shared between the protocol client and the
// dev server.
const (
	HeaderDeviceID  = "X-Device-ID"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)
