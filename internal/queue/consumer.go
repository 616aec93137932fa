package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/session-seat-reservation/internal/logging"
	"github.com/iliyamo/session-seat-reservation/internal/model"
	"github.com/iliyamo/session-seat-reservation/internal/trigger"
)

const (
	prefetch   = 50
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// handlerFunc processes one delivery.  A returned error requeues the message
// once; a redelivered message that fails again is rejected.
type handlerFunc func(ctx context.Context, d amqp.Delivery) error

// StartTriggerConsumer feeds TriggerQueue into router until ctx is done.
func StartTriggerConsumer(ctx context.Context, url string, router *trigger.Router) error {
	return consume(ctx, url, TriggerQueue, logging.New("trigger-consumer"), triggerHandler(router))
}

func triggerHandler(router *trigger.Router) handlerFunc {
	return func(ctx context.Context, d amqp.Delivery) error {
		var msg TriggerMessage
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			return errPoison{fmt.Errorf("unmarshal: %w", err)}
		}
		return router.Dispatch(ctx, trigger.Event{ID: d.MessageId, Path: msg.Path, Data: msg.Data})
	}
}

// NotificationSink delivers one notification, reporting failures.
type NotificationSink interface {
	Dispatch(ctx context.Context, n model.Notification) error
}

// StartProfileSyncConsumer relays ProfileSyncQueue to sink until ctx is done.
func StartProfileSyncConsumer(ctx context.Context, url string, sink NotificationSink) error {
	return consume(ctx, url, ProfileSyncQueue, logging.New("profile-sync-consumer"), profileSyncHandler(sink))
}

func profileSyncHandler(sink NotificationSink) handlerFunc {
	return func(ctx context.Context, d amqp.Delivery) error {
		var ev ProfileSyncEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			return errPoison{fmt.Errorf("unmarshal: %w", err)}
		}
		if !ev.Operation.Valid() {
			return errPoison{fmt.Errorf("unknown operation %q", ev.Operation)}
		}
		return sink.Dispatch(ctx, ev.Notification())
	}
}

// errPoison marks a message that can never succeed and must not be requeued.
type errPoison struct{ err error }

func (e errPoison) Error() string { return e.err.Error() }
func (e errPoison) Unwrap() error { return e.err }

// consume runs a reconnect loop with exponential backoff.  It only returns
// once ctx is cancelled.
func consume(ctx context.Context, url, queue string, lg *log.Logger, handle handlerFunc) error {
	backoff := minBackoff
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			lg.Warnf("failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		err = consumeLoop(ctx, conn, queue, lg, handle)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lg.Warnf("consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, lg *log.Logger, handle handlerFunc) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		lg.Warnf("set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			deliver(ctx, d, lg, handle)
		}
	}
}

// deliver runs handle and settles d.
func deliver(ctx context.Context, d amqp.Delivery, lg *log.Logger, handle handlerFunc) {
	err := handle(ctx, d)
	if err == nil {
		_ = d.Ack(false)
		return
	}
	var poison errPoison
	requeue := !d.Redelivered && !errors.As(err, &poison)
	lg.Errorf("handle message %s failed (requeue=%t): %v", d.MessageId, requeue, err)
	_ = d.Nack(false, requeue)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
