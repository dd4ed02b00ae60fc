// Package notify abstracts outbound push messages so dialog flows and the
// reminder scheduler do not depend on a concrete delivery channel.
package notify

import "context"

// Notifier delivers a plain-text message to one user.
type Notifier interface {
	Notify(ctx context.Context, userID, text string) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, userID, text string) error

func (f Func) Notify(ctx context.Context, userID, text string) error {
	return f(ctx, userID, text)
}
