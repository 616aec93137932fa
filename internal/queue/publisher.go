package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/session-seat-reservation/internal/logging"
	"github.com/iliyamo/session-seat-reservation/internal/model"
)

// Publisher sends persistent JSON messages to durable queues on the default
// exchange.  The connection is opened on first use and reopened after a
// failure; each publish uses its own channel.
type Publisher struct {
	url string
	log *log.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, log: logging.New("rabbitmq")}
}

func (p *Publisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	p.conn = conn
	return conn, nil
}

func (p *Publisher) drop(conn *amqp.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == conn {
		_ = conn.Close()
		p.conn = nil
	}
}

// Publish declares queue and publishes body under msgID.
func (p *Publisher) Publish(ctx context.Context, queue, msgID string, body []byte) error {
	conn, err := p.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		p.drop(conn)
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", queue, err)
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, newPublishing(msgID, body, time.Now())); err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func newPublishing(msgID string, body []byte, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msgID,
		Timestamp:    now.UTC(),
		Body:         body,
	}
}

// publisher is the part of Publisher the typed wrappers need.
type publisher interface {
	Publish(ctx context.Context, queue, msgID string, body []byte) error
}

// TriggerPublisher is a store change feed that forwards accepted writes to
// TriggerQueue, one message per write with a fresh event id.
type TriggerPublisher struct {
	pub     publisher
	accepts func(path string) bool
}

// NewTriggerPublisher forwards writes for which accepts returns true,
// normally trigger.Router.Accepts.
func NewTriggerPublisher(pub publisher, accepts func(path string) bool) *TriggerPublisher {
	return &TriggerPublisher{pub: pub, accepts: accepts}
}

func (t *TriggerPublisher) Accepts(path string) bool { return t.accepts(path) }

func (t *TriggerPublisher) Publish(ctx context.Context, path string, data []byte) error {
	body, err := json.Marshal(TriggerMessage{Path: path, Data: data})
	if err != nil {
		return fmt.Errorf("marshal trigger %s: %w", path, err)
	}
	return t.pub.Publish(ctx, TriggerQueue, uuid.NewString(), body)
}

// NotificationPublisher relays reservation notifications to ProfileSyncQueue.
// Failures are logged and dropped; the reservation is already committed.
type NotificationPublisher struct {
	pub publisher
	log *log.Logger
}

func NewNotificationPublisher(pub publisher) *NotificationPublisher {
	return &NotificationPublisher{pub: pub, log: logging.New("profile-sync-publisher")}
}

func (n *NotificationPublisher) Notify(ctx context.Context, note model.Notification) {
	body, err := json.Marshal(newProfileSyncEvent(note))
	if err != nil {
		n.log.Warnf("marshal %s for %s/%s: %v", note.Operation, note.SessionID, note.UserID, err)
		return
	}
	if err := n.pub.Publish(ctx, ProfileSyncQueue, uuid.NewString(), body); err != nil {
		n.log.Warnf("publish %s for %s/%s: %v", note.Operation, note.SessionID, note.UserID, err)
	}
}
