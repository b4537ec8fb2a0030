package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"stackfall.dev/internal/sim/session"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (io.Closer, channel, error)

func dialAMQP(url string) (io.Closer, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	return conn, ch, nil
}

// Publisher sends GameOverEvents, dialing a fresh connection per publish.
// An empty URL disables publishing.
type Publisher struct {
	url     string
	log     *zap.Logger
	dial    dialFunc
	timeout time.Duration

	wg sync.WaitGroup
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log, dial: dialAMQP, timeout: 5 * time.Second}
}

func (p *Publisher) Enabled() bool { return p != nil && p.url != "" }

// PublishGameOver publishes ev to GameOverQueue as a persistent JSON message.
func (p *Publisher) PublishGameOver(ctx context.Context, ev GameOverEvent) error {
	if !p.Enabled() {
		return nil
	}
	conn, ch, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer func() { _ = conn.Close() }()
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(GameOverQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.GameID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", GameOverQueue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

// OnGameOver is a session.Host game-over hook. It publishes in the
// background and only logs failures.
func (p *Publisher) OnGameOver(res session.Result) {
	if !p.Enabled() {
		return
	}
	ev := EventFromResult(res)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.PublishGameOver(ctx, ev); err != nil {
			p.log.Warn("publish game over", zap.String("game_id", ev.GameID), zap.Error(err))
			return
		}
		p.log.Debug("published game over", zap.String("game_id", ev.GameID), zap.Int("lines", ev.Lines))
	}()
}

// Wait blocks until background publishes have finished.
func (p *Publisher) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}
