package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"challenge_backend/internal/config"
	"challenge_backend/pkg/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// PushMessage is the provider independent payload.
type PushMessage struct {
	Kind  string            `json:"kind"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Pusher delivers a message to device tokens. It returns the tokens the
// provider reported as no longer registered.
type Pusher interface {
	Name() string
	Push(ctx context.Context, tokens []string, msg PushMessage) (stale []string, err error)
	Close() error
}

// NewPusher builds the configured driver. An unreachable broker degrades to
// the noop driver so the API keeps serving.
func NewPusher(ctx context.Context, cfg *config.NotificationConfig) (Pusher, error) {
	switch cfg.Driver {
	case config.NotifyFCM:
		return NewFCMPusher(ctx, cfg.FirebaseCredentials)
	case config.NotifyAMQP:
		p, err := NewAMQPPusher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Log.Warn("amqp push disabled, using noop", zap.Error(err))
			return NoopPusher{}, nil
		}
		return p, nil
	default:
		return NoopPusher{}, nil
	}
}

// FCMPusher sends through Firebase Cloud Messaging.
type FCMPusher struct {
	client *messaging.Client
}

func NewFCMPusher(ctx context.Context, credentialsFile string) (*FCMPusher, error) {
	if credentialsFile == "" {
		return nil, errors.New("fcm driver needs notification.firebase_credentials")
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMPusher{client: client}, nil
}

func (p *FCMPusher) Name() string { return config.NotifyFCM }

func (p *FCMPusher) Push(ctx context.Context, tokens []string, msg PushMessage) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	data := make(map[string]string, len(msg.Data)+1)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["type"] = msg.Kind

	resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         data,
	})
	if err != nil {
		return nil, err
	}

	var stale []string
	var firstErr error
	for i, r := range resp.Responses {
		if r.Success {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			stale = append(stale, tokens[i])
			continue
		}
		if firstErr == nil {
			firstErr = r.Error
		}
	}
	return stale, firstErr
}

func (p *FCMPusher) Close() error { return nil }

// amqpChannel is the part of *amqp.Channel the pusher publishes through.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// amqpDialer opens a connection and a channel with the exchange declared.
type amqpDialer func() (amqpChannel, io.Closer, error)

// AMQPPusher hands messages to an external push worker through a topic
// exchange, routed by kind. A dropped broker connection is reopened on the
// next publish.
type AMQPPusher struct {
	mu       sync.Mutex
	dial     amqpDialer
	conn     io.Closer
	ch       amqpChannel
	exchange string
}

type pushEnvelope struct {
	Tokens []string `json:"tokens"`
	PushMessage
}

func NewAMQPPusher(url, exchange string) (*AMQPPusher, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	dial := func() (amqpChannel, io.Closer, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, err
		}
		return ch, conn, nil
	}
	p, err := newAMQPPusher(exchange, dial)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("amqp push connected", zap.String("exchange", exchange))
	return p, nil
}

func newAMQPPusher(exchange string, dial amqpDialer) (*AMQPPusher, error) {
	p := &AMQPPusher{dial: dial, exchange: exchange}
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPusher) Name() string { return config.NotifyAMQP }

// channel returns the open channel, dialing when there is none.
func (p *AMQPPusher) channel() (amqpChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		return p.ch, nil
	}
	ch, conn, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.ch, p.conn = ch, conn
	return ch, nil
}

// drop forgets ch so the next publish reconnects. A channel already replaced
// by another goroutine is left alone.
func (p *AMQPPusher) drop(ch amqpChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != ch {
		return
	}
	_ = p.ch.Close()
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *AMQPPusher) Push(ctx context.Context, tokens []string, msg PushMessage) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(pushEnvelope{Tokens: tokens, PushMessage: msg})
	if err != nil {
		return nil, err
	}
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}

	ch, err := p.channel()
	if err != nil {
		return nil, err
	}
	err = ch.PublishWithContext(ctx, p.exchange, "push."+msg.Kind, false, false, publishing)
	if !errors.Is(err, amqp.ErrClosed) {
		return nil, err
	}

	logger.Log.Warn("amqp channel closed, reconnecting", zap.String("exchange", p.exchange))
	p.drop(ch)
	if ch, err = p.channel(); err != nil {
		return nil, err
	}
	return nil, ch.PublishWithContext(ctx, p.exchange, "push."+msg.Kind, false, false, publishing)
}

func (p *AMQPPusher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
	return err
}

// NoopPusher only logs.
type NoopPusher struct{}

func (NoopPusher) Name() string { return config.NotifyNoop }

func (NoopPusher) Push(ctx context.Context, tokens []string, msg PushMessage) ([]string, error) {
	logger.Log.Debug("noop push",
		zap.String("kind", msg.Kind),
		zap.String("title", msg.Title),
		zap.Int("tokens", len(tokens)))
	return nil, nil
}

func (NoopPusher) Close() error { return nil }
