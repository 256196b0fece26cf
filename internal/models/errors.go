package models

import (
	"errors"
	"fmt"
)

// ErrAllCredentialsExhausted is returned when every edge credential in
// the rotation has been tried without a single success.
var ErrAllCredentialsExhausted = errors.New("all edge credentials exhausted")

// ValidationError is reported before any remote call is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RemoteRejected carries a structured failure from the hosting or edge
// API. Reason is the remote-supplied string, surfaced verbatim.
type RemoteRejected struct {
	Service string // "whm" or "cloudflare"
	Op      string
	Reason  string
}

func (e *RemoteRejected) Error() string {
	return fmt.Sprintf("%s %s rejected: %s", e.Service, e.Op, e.Reason)
}

// PartialDeploymentFailure means at least one redirect slot failed.
// Fatal for the whole request; directories already created remotely are
// not rolled back.
type PartialDeploymentFailure struct {
	Slot int
	Err  error
}

func (e *PartialDeploymentFailure) Error() string {
	return fmt.Sprintf("deployment slot %d failed: %v", e.Slot, e.Err)
}

func (e *PartialDeploymentFailure) Unwrap() error { return e.Err }
