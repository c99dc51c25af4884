// Package app provides the main application logic
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrcode/glucose-widget/internal/feed"
	"github.com/mrcode/glucose-widget/internal/history"
	"github.com/mrcode/glucose-widget/internal/logging"
	"github.com/mrcode/glucose-widget/internal/models"
)

// ErrSuperseded is returned when a newer poll started before this one finished
var ErrSuperseded = errors.New("poll superseded by a newer request")

// DataSource fetches raw payloads from the two endpoints
type DataSource interface {
	FetchCurrent(ctx context.Context) (feed.Payload, error)
	FetchGraph(ctx context.Context) (feed.Payload, error)
}

// Poll modes
const (
	modeUpdate = "update"
	modeRefill = "refill"
)

// Poller keeps the history buffer fresh from a DataSource
type Poller struct {
	buffer  *history.Buffer
	metrics *Metrics
	logger  *slog.Logger

	generation atomic.Uint64

	mu     sync.Mutex // serialises buffer writes with the generation check
	source DataSource
}

// NewPoller creates a poller writing into buffer
func NewPoller(source DataSource, buffer *history.Buffer, metrics *Metrics, logger *slog.Logger) *Poller {
	return &Poller{
		source:  source,
		buffer:  buffer,
		metrics: metrics,
		logger:  logger,
	}
}

// SetSource swaps the data source and drops the history gathered from the old one
func (p *Poller) SetSource(source DataSource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.source = source
	p.buffer.Reset()
	p.generation.Add(1)
}

// GetData refills the history when it is empty or stale, then adds the
// current reading and returns the resulting history, newest first
func (p *Poller) GetData(ctx context.Context) ([]models.Reading, error) {
	gen := p.generation.Add(1)
	start := time.Now()

	p.mu.Lock()
	source := p.source
	p.mu.Unlock()

	mode := modeUpdate
	if p.buffer.NeedsRefill() {
		mode = modeRefill
	}
	p.metrics.polls.WithLabelValues(mode).Inc()

	readings, err := p.getData(ctx, source, gen, mode == modeRefill)
	p.metrics.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			p.metrics.superseded.Inc()
		} else {
			p.metrics.errors.WithLabelValues(errorKind(err)).Inc()
		}
		return nil, err
	}

	p.metrics.historyLength.Set(float64(len(readings)))
	if len(readings) > 0 {
		p.metrics.readingAge.Set(time.Since(readings[0].Time()).Seconds())
	}
	p.logger.Debug("poll finished",
		slog.String("mode", mode),
		slog.Int("history", len(readings)),
		slog.Duration("took", time.Since(start)),
	)
	return readings, nil
}

func (p *Poller) getData(ctx context.Context, source DataSource, gen uint64, refill bool) ([]models.Reading, error) {
	if refill {
		payload, err := source.FetchGraph(ctx)
		if err != nil {
			return nil, err
		}
		readings, err := feed.Normalize(payload)
		if err != nil {
			return nil, fmt.Errorf("normalizing graph: %w", err)
		}
		if err := p.apply(gen, func() error { return p.buffer.Populate(readings) }); err != nil {
			return nil, err
		}
		p.logger.Info("history refilled", slog.Int("readings", len(readings)))
	}

	payload, err := source.FetchCurrent(ctx)
	if err != nil {
		return nil, err
	}
	readings, err := feed.Normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("normalizing current: %w", err)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: empty current payload", feed.ErrUnsupportedResponseType)
	}

	if err := p.apply(gen, func() error { return p.buffer.Update(readings[0]) }); err != nil {
		return nil, err
	}
	return p.buffer.History(), nil
}

// apply runs fn unless a newer poll has started since gen was taken
func (p *Poller) apply(gen uint64, fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generation.Load() != gen {
		return ErrSuperseded
	}
	return fn()
}

// History returns a copy of the buffered readings, newest first
func (p *Poller) History() []models.Reading {
	return p.buffer.History()
}

// errorKind labels a poll failure for metrics
func errorKind(err error) string {
	var transportErr *feed.TransportError
	switch {
	case errors.As(err, &transportErr):
		return "transport"
	case errors.Is(err, feed.ErrInvalidTimestamp), errors.Is(err, feed.ErrUnsupportedResponseType):
		return "payload"
	case errors.Is(err, history.ErrInvalidInput):
		return "history"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

// logPollError logs a failed poll at a level matching its kind
func logPollError(logger *slog.Logger, attempt int, err error) {
	var transportErr *feed.TransportError
	if errors.As(err, &transportErr) {
		logger.Warn("fetching glucose data",
			slog.Int("attempt", attempt),
			slog.String("op", transportErr.Op),
			slog.Int("status", transportErr.StatusCode),
			slog.String("request_id", transportErr.RequestID),
			logging.Err(err),
		)
		return
	}
	logger.Error("fetching glucose data", slog.Int("attempt", attempt), logging.Err(err))
}
