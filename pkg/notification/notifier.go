package notification

import "context"

// Notification carries a security notice to a user, such as "two-factor
// authentication was enabled on your account".
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers security notifications. Delivery failures are
// reported to the caller but never block the operation that triggered
// the notice.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NoOpNotifier discards all notifications. Useful when no mail transport
// is configured.
type NoOpNotifier struct{}

// Notify implements Notifier
func (NoOpNotifier) Notify(ctx context.Context, n Notification) error {
	return nil
}
