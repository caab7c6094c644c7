// Package notify defines the outbound notification dispatcher used by the
// domain services. Delivery is best-effort: callers log and discard dispatch
// errors, and a failed notification never affects committed state.
package notify

import "context"

// Action describes a button the operator can press in response to a message.
// Data is an opaque callback payload echoed back on the inbound webhook.
type Action struct {
	Label string
	Data  string
}

// Dispatcher delivers formatted messages to the operator and to customers.
type Dispatcher interface {
	Operator(ctx context.Context, text string, actions []Action) error
	Customer(ctx context.Context, clientID, text string) error
}

// Nop is a Dispatcher that drops every message. It is used when no transport
// is configured and in tests.
type Nop struct{}

func (Nop) Operator(context.Context, string, []Action) error { return nil }

func (Nop) Customer(context.Context, string, string) error { return nil }
