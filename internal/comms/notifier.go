// Package comms holds the platform-agnostic user-facing surfaces: the
// notification sink and the text command handler.
package comms

import "context"

// Notifier delivers a short message to a user. Delivery is best-effort;
// callers log failures and move on, they never retry or abort on one.
type Notifier interface {
	Notify(ctx context.Context, userID, text string) error
}

// NopNotifier discards all notifications. Useful in tests and when the
// chat transport is disabled.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(ctx context.Context, userID, text string) error { return nil }
