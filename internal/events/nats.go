package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/54b3r/ragkit/internal/rag"
	"github.com/54b3r/ragkit/internal/resilience"
)

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Options tunes the NATS connection.
type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int

	// Executor retries transient publish failures. Optional.
	Executor *resilience.Executor

	// Logger receives connection state changes. Default: slog.Default().
	Logger *slog.Logger
}

// NATSPublisher publishes JSON events to a NATS subject.
type NATSPublisher struct {
	conn     conn
	subject  string
	executor *resilience.Executor
}

// NewNATS connects to url and returns a publisher for subject.
func NewNATS(url, subject string, opts Options) (*NATSPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("events: nats url must not be empty")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	nc, err := nats.Connect(
		url,
		nats.Name("ragkit"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect nats: %w", err)
	}
	return newNATSPublisher(nc, subject, opts.Executor), nil
}

func newNATSPublisher(c conn, subject string, exec *resilience.Executor) *NATSPublisher {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: c, subject: subject, executor: exec}
}

// Subject returns the subject events are published on.
func (p *NATSPublisher) Subject() string { return p.subject }

// PublishDocumentIngested implements Publisher.
func (p *NATSPublisher) PublishDocumentIngested(ctx context.Context, event DocumentIngested) error {
	data, err := encode(event)
	if err != nil {
		return err
	}

	call := func(context.Context) error {
		if err := p.conn.Publish(p.subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return rag.WrapError(rag.ErrDependencyFailure, "publish document event", err)
}

// Close implements Publisher.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionReconnecting):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// NewFromEnv returns a NATS publisher when NATS_URL is set and Noop
// otherwise.
func NewFromEnv(exec *resilience.Executor, log *slog.Logger) (Publisher, error) {
	url := strings.TrimSpace(os.Getenv("NATS_URL"))
	if url == "" {
		return Noop{}, nil
	}
	p, err := NewNATS(url, os.Getenv("NATS_SUBJECT"), Options{Executor: exec, Logger: log})
	if err != nil {
		return nil, err
	}
	return p, nil
}
