// Package nats carries the pipeline's background triggers over NATS
// core subjects: one for freshly uploaded documents awaiting indexing,
// one for summary generation requests. Summary requests may be delayed,
// which is scheduled in-process before publishing.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/docintel/docintel/internal/infrastructure/resilience"
)

type Queue struct {
	conn           *nats.Conn
	ingestSubject  string
	summarySubject string
	executor       *resilience.Executor

	timerMu sync.Mutex
	timers  map[*time.Timer]struct{}
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, ingestSubject, summarySubject string) (*Queue, error) {
	return NewWithOptions(url, ingestSubject, summarySubject, Options{})
}

func NewWithOptions(url, ingestSubject, summarySubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("docintel"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		ingestSubject:  ingestSubject,
		summarySubject: summarySubject,
		executor:       options.ResilienceExecutor,
		timers:         make(map[*time.Timer]struct{}),
	}, nil
}

func (q *Queue) Close() {
	q.timerMu.Lock()
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = make(map[*time.Timer]struct{})
	q.timerMu.Unlock()

	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.ingestSubject, documentID)
}

// PublishSummaryRequested publishes immediately when delay is zero and
// otherwise schedules the publish on an in-process timer. A scheduled
// publish survives the caller's context but not the process; restart
// recovery re-enqueues from persisted summary state instead.
func (q *Queue) PublishSummaryRequested(ctx context.Context, documentID string, delay time.Duration) error {
	if delay <= 0 {
		return q.publish(ctx, q.summarySubject, documentID)
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.timerMu.Lock()
		delete(q.timers, timer)
		q.timerMu.Unlock()

		if err := q.publish(context.Background(), q.summarySubject, documentID); err != nil {
			slog.Error("delayed summary publish failed", "document_id", documentID, "error", err)
		}
	})
	q.timerMu.Lock()
	q.timers[timer] = struct{}{}
	q.timerMu.Unlock()
	return nil
}

func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.ingestSubject, "index-workers", handler)
}

func (q *Queue) SubscribeSummaryRequested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.summarySubject, "summary-workers", handler)
}

func (q *Queue) publish(ctx context.Context, subject, documentID string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, []byte(documentID)); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Run(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (q *Queue) subscribe(ctx context.Context, subject, group string, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			slog.Error("queue handler failed", "subject", subject, "document_id", string(msg.Data), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
