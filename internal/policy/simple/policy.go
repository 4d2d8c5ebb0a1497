// Package simple contains a permissive politeness policy.
package simple

import "context"

// Policy never throttles.
type Policy struct{}

// New creates a new Policy.
func New() *Policy {
	return &Policy{}
}

// Wait returns immediately unless ctx is already done.
func (Policy) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}
