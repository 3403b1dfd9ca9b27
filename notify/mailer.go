package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-here/auth"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue receives mail jobs
const DefaultQueue = "here.mail"

// Message is the JSON body published for every mail job
type Message struct {
	ID        string         `json:"id"`
	To        string         `json:"to"`
	Template  string         `json:"template"`
	Params    map[string]any `json:"params,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Publisher is the subset of *amqp.Channel used to publish
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPMailer hands mail jobs to a worker through a durable queue
type AMQPMailer struct {
	publisher Publisher
	queue     string
	logger    auth.Logger
	now       func() time.Time
	closers   []func() error
}

var _ auth.Mailer = (*AMQPMailer)(nil)

type Option func(*AMQPMailer)

func WithLogger(logger auth.Logger) Option {
	return func(m *AMQPMailer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *AMQPMailer) {
		if now != nil {
			m.now = now
		}
	}
}

func NewAMQPMailer(publisher Publisher, queue string, opts ...Option) *AMQPMailer {
	if queue == "" {
		queue = DefaultQueue
	}

	m := &AMQPMailer{
		publisher: publisher,
		queue:     queue,
		logger:    LogMailer{}.logger(),
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// DialAMQP connects to the broker, declares the durable queue and returns
// a mailer publishing to it.
func DialAMQP(url, queue string, opts ...Option) (*AMQPMailer, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to connect to broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open broker channel")
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to declare mail queue")
	}

	m := NewAMQPMailer(ch, queue, opts...)
	m.closers = append(m.closers, ch.Close, conn.Close)
	return m, nil
}

// Send publishes one persistent JSON message per mail
func (m *AMQPMailer) Send(ctx context.Context, to, template string, params map[string]any) error {
	msg := Message{
		ID:        uuid.NewString(),
		To:        to,
		Template:  template,
		Params:    params,
		CreatedAt: m.now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode mail job")
	}

	err = m.publisher.PublishWithContext(ctx,
		"",      // default exchange
		m.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.CreatedAt,
			Type:         template,
			Body:         body,
		},
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to publish mail job")
	}

	m.logger.Debug("queued %s mail %s for %s", template, msg.ID, to)
	return nil
}

func (m *AMQPMailer) Close() error {
	var first error
	for _, closer := range m.closers {
		if err := closer(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// LogMailer only logs mail jobs. Secret params are redacted.
type LogMailer struct {
	Logger auth.Logger
}

var _ auth.Mailer = LogMailer{}

var redactedParams = []string{"code", "otp", "token", "password"}

func (l LogMailer) Send(_ context.Context, to, template string, params map[string]any) error {
	l.logger().Info("mail %s -> %s %s", template, to, print.MaybePrettyJSON(Redact(params)))
	return nil
}

func (l LogMailer) logger() auth.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return stdoutLogger{}
}

// Redact returns a copy of params with secret values masked
func Redact(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
		for _, secret := range redactedParams {
			if strings.EqualFold(k, secret) {
				out[k] = "[redacted]"
				break
			}
		}
	}
	return out
}

type stdoutLogger struct{}

func (stdoutLogger) Debug(format string, args ...any) { fmt.Printf("[DBG] MAIL "+format+"\n", args...) }
func (stdoutLogger) Info(format string, args ...any)  { fmt.Printf("[INF] MAIL "+format+"\n", args...) }
func (stdoutLogger) Warn(format string, args ...any)  { fmt.Printf("[WRN] MAIL "+format+"\n", args...) }
func (stdoutLogger) Error(format string, args ...any) { fmt.Printf("[ERR] MAIL "+format+"\n", args...) }
