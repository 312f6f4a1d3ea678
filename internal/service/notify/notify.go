package notify

import "context"

// Notifier delivers a best-effort alert. Callers log and drop any error it returns.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop is used when no alert channel is configured.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }
