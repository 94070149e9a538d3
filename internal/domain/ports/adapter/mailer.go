package adapter

import "context"

// Mailer is the outbound notification channel for business events.
// Fire-and-forget: callers must never gate a state transition on delivery.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
