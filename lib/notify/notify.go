// Package notify holds the outbound notification transports. Delivery is
// fire-and-forget from the monitor's perspective: failures are logged by
// the caller and never retried.
package notify

import "context"

type Priority int

const (
	Info Priority = iota
	Warning
	Alert
)

type Message struct {
	Priority Priority
	// Subject is used by transports that have one (email).
	Subject string
	// Text is the plain-text body.
	Text string
	// HTML is an optional richer body for transports that render markup.
	HTML string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

func prefixForPriority(p Priority) string {
	switch {
	case p >= Alert:
		return "🚨 "
	case p >= Warning:
		return "⚠️ "
	default:
		return ""
	}
}
