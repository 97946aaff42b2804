// Package notify delivers the rendered digest email.
package notify

import (
	"context"
	"fmt"
)

// Notifier delivers a digest to its recipients.
type Notifier interface {
	Name() string
	Send(ctx context.Context, subject, htmlBody string, recipients []string) error
}

// DeliveryError marks a failed delivery. The pipeline records it in the
// execution log; it is never retried within a run.
type DeliveryError struct {
	Notifier string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Notifier, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
