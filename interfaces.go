package kansoku

import "context"

// ViewHook is notified after every poll, including failed polls that mark
// the previous view stale. Multiple hooks may be registered via multiple
// WithViewHook calls. Hooks run on the poll goroutine and must return
// quickly. Failures are logged and never fail the poll.
type ViewHook interface {
	OnView(ctx context.Context, view ViewSummary) error
}
