package profilesync

import (
	"context"
	"fmt"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/session-seat-reservation/internal/logging"
	"github.com/iliyamo/session-seat-reservation/internal/model"
)

// ProfileResolver maps an attendee id to the id the profile service knows.
type ProfileResolver interface {
	ResolveProfileID(ctx context.Context, uid string) (string, error)
}

// Caller performs one profile service call.
type Caller interface {
	Call(ctx context.Context, op model.SyncOperation, profileID, sessionID string, at int64) error
}

// Dispatcher delivers notifications to the profile service.
type Dispatcher struct {
	resolver ProfileResolver
	caller   Caller
	log      *log.Logger
}

func NewDispatcher(resolver ProfileResolver, caller Caller) *Dispatcher {
	return &Dispatcher{resolver: resolver, caller: caller, log: logging.New("profilesync")}
}

// Dispatch resolves the attendee and performs the call, returning failures
// so a queue consumer can retry.
func (d *Dispatcher) Dispatch(ctx context.Context, n model.Notification) error {
	profileID, err := d.resolver.ResolveProfileID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("resolve profile of %s: %w", n.UserID, err)
	}
	if err := d.caller.Call(ctx, n.Operation, profileID, n.SessionID, n.Timestamp); err != nil {
		return err
	}
	d.log.Infof("%s sent for session %s", n.Operation, n.SessionID)
	return nil
}

// Notify is the in-process variant of Dispatch: failures are logged and
// dropped.
func (d *Dispatcher) Notify(ctx context.Context, n model.Notification) {
	if err := d.Dispatch(ctx, n); err != nil {
		d.log.Warnf("unable to send %s for session %s: %v", n.Operation, n.SessionID, err)
	}
}
