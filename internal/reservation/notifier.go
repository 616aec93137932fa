package reservation

import (
	"context"

	"github.com/iliyamo/session-seat-reservation/internal/model"
)

// Notifier relays committed reservation changes to the profile-sync
// service.  Implementations are best effort: they log their own failures and
// never report them back, because the ledger change has already committed.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n model.Notification)

func (f NotifierFunc) Notify(ctx context.Context, n model.Notification) { f(ctx, n) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(context.Context, model.Notification) {})
