package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrRabbitMQUnavailable = errors.New("rabbitmq channel is not open")

	queues = []string{TranscriptQueue}
)

// amqpSession is one connection with a single channel on which every queue
// has been declared.
type amqpSession struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func (s *amqpSession) close() {
	if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		slog.Error("error closing rabbitmq connection", "error", err)
	}
}

func dial(url string) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxConnectRetry; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		slog.Warn("rabbitmq dial failed", "attempt", attempt, "max_attempts", MaxConnectRetry, "error", err)
		if attempt < MaxConnectRetry {
			time.Sleep(RetryDelay)
		}
	}
	return nil, fmt.Errorf("unable to reach rabbitmq after %d attempts: %w", MaxConnectRetry, lastErr)
}

// openSession dials rabbitmq and declares the durable task queues. A positive
// prefetch limits how many unacked deliveries the channel holds.
func openSession(url string, prefetch int) (*amqpSession, error) {
	conn, err := dial(url)
	if err != nil {
		return nil, err
	}
	session := &amqpSession{conn: conn}

	if session.channel, err = conn.Channel(); err != nil {
		session.close()
		return nil, fmt.Errorf("unable to open rabbitmq channel: %w", err)
	}

	for _, queue := range queues {
		if _, err := session.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			session.close()
			return nil, fmt.Errorf("unable to declare queue %s: %w", queue, err)
		}
	}

	if prefetch > 0 {
		if err := session.channel.Qos(prefetch, 0, false); err != nil {
			session.close()
			return nil, fmt.Errorf("unable to set prefetch on rabbitmq channel: %w", err)
		}
	}

	slog.Info("rabbitmq session opened", "queues", queues)
	return session, nil
}

// watch blocks until the channel closes. It reports true if the close was not
// requested by us and the session should be reopened.
func (s *amqpSession) watch(stop <-chan struct{}) bool {
	closed := s.channel.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case err, ok := <-closed:
		if !ok || err == nil {
			return false
		}
		slog.Warn("rabbitmq channel lost", "code", err.Code, "reason", err.Reason)
		return true
	case <-stop:
		s.close()
		return false
	}
}

// reopen retries openSession until it succeeds or stop is closed.
func reopen(url string, prefetch int, stop <-chan struct{}) (*amqpSession, bool) {
	for {
		session, err := openSession(url, prefetch)
		if err == nil {
			return session, true
		}
		slog.Error("rabbitmq reconnect failed", "error", err)

		select {
		case <-stop:
			return nil, false
		case <-time.After(RetryDelay * 10):
		}
	}
}

type RabbitMQPublisher struct {
	url  string
	stop chan struct{}
	once sync.Once

	mu      sync.RWMutex
	session *amqpSession
}

func NewRabbitMQPublisher(rabbitMQURL string) (*RabbitMQPublisher, error) {
	session, err := openSession(rabbitMQURL, 0)
	if err != nil {
		return nil, err
	}

	p := &RabbitMQPublisher{url: rabbitMQURL, stop: make(chan struct{}), session: session}
	go p.keepAlive(session)
	return p, nil
}

func (p *RabbitMQPublisher) keepAlive(session *amqpSession) {
	for session.watch(p.stop) {
		p.mu.Lock()
		p.session = nil
		p.mu.Unlock()

		next, ok := reopen(p.url, 0, p.stop)
		if !ok {
			return
		}

		p.mu.Lock()
		p.session = next
		p.mu.Unlock()
		session = next
		slog.Info("rabbitmq publisher reconnected")
	}
}

func (p *RabbitMQPublisher) publish(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("unable to encode %s task: %w", queue, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.session == nil || p.session.channel.IsClosed() {
		return ErrRabbitMQUnavailable
	}

	err = p.session.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		slog.Error("rabbitmq publish failed", "queue", queue, "error", err)
		return fmt.Errorf("unable to publish %s task: %w", queue, err)
	}
	return nil
}

func (p *RabbitMQPublisher) PublishTranscriptTask(ctx context.Context, payload TranscriptTaskPayload) error {
	return p.publish(ctx, TranscriptQueue, payload)
}

func (p *RabbitMQPublisher) Close() {
	p.once.Do(func() { close(p.stop) })
}

type RabbitMQTask struct {
	d amqp.Delivery
}

func (t *RabbitMQTask) Type() string {
	return t.d.RoutingKey
}

func (t *RabbitMQTask) Payload() []byte {
	return t.d.Body
}

func (t *RabbitMQTask) Ack() error {
	return t.d.Ack(false)
}

// Nack requeues the delivery once. A delivery that was already redelivered is
// dropped.
func (t *RabbitMQTask) Nack() error {
	return t.d.Nack(false, !t.d.Redelivered)
}

func (t *RabbitMQTask) Reject() error {
	return t.d.Reject(false)
}

// RabbitMQReceiver delivers transcript tasks one at a time; the next task is
// not fetched until the previous one is acked.
type RabbitMQReceiver struct {
	url   string
	tasks chan Task
	stop  chan struct{}
	once  sync.Once
}

func NewRabbitMQReceiver(rabbitMQURL string) (*RabbitMQReceiver, error) {
	r := &RabbitMQReceiver{
		url:   rabbitMQURL,
		tasks: make(chan Task),
		stop:  make(chan struct{}),
	}

	session, err := openSession(rabbitMQURL, 1)
	if err != nil {
		return nil, err
	}
	if err := r.consume(session); err != nil {
		session.close()
		return nil, err
	}

	go r.keepAlive(session)
	return r, nil
}

func (r *RabbitMQReceiver) consume(session *amqpSession) error {
	for _, queue := range queues {
		deliveries, err := session.channel.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("unable to consume from queue %s: %w", queue, err)
		}

		go func() {
			for d := range deliveries {
				select {
				case r.tasks <- &RabbitMQTask{d: d}:
				case <-r.stop:
					return
				}
			}
		}()
	}
	return nil
}

func (r *RabbitMQReceiver) keepAlive(session *amqpSession) {
	for session.watch(r.stop) {
		for {
			next, ok := reopen(r.url, 1, r.stop)
			if !ok {
				return
			}
			if err := r.consume(next); err != nil {
				slog.Error("rabbitmq consumer restart failed", "error", err)
				next.close()
				select {
				case <-r.stop:
					return
				case <-time.After(RetryDelay):
				}
				continue
			}
			session = next
			break
		}
		slog.Info("rabbitmq consumer reconnected")
	}
	slog.Info("rabbitmq consumer stopped")
}

func (r *RabbitMQReceiver) Tasks() <-chan Task {
	return r.tasks
}

func (r *RabbitMQReceiver) Close() {
	r.once.Do(func() { close(r.stop) })
}
