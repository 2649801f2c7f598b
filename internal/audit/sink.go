// Package audit ships page decisions and split outcomes to an external
// store without ever blocking the pipeline. Records are queued in memory
// and sent by a single worker; a full queue or an open circuit breaker
// drops records and counts them.
package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"docsplit/internal/logger"
)

// ErrSinkClosed is returned when closing an already closed sink.
var ErrSinkClosed = errors.New("audit sink closed")

// Sink accepts records fire-and-forget.
type Sink interface {
	Submit(rec Record)
}

// Transport delivers a single record.
type Transport interface {
	Send(ctx context.Context, rec Record) error
	Close() error
}

// NopSink discards every record.
type NopSink struct{}

// Submit implements Sink.
func (NopSink) Submit(Record) {}

// Options configures the sink and where it sends to.
type Options struct {
	Enabled          bool          `mapstructure:"enabled"`
	URL              string        `mapstructure:"url"`
	DSN              string        `mapstructure:"dsn"`
	Table            string        `mapstructure:"table"`
	SheetURL         string        `mapstructure:"sheet_url"`
	SheetName        string        `mapstructure:"sheet_name"`
	QueueSize        int           `mapstructure:"queue_size"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// DefaultOptions returns the default audit settings.
func DefaultOptions() Options {
	return Options{
		Table:            "docsplit_audit",
		SheetName:        "Audit",
		QueueSize:        1000,
		Timeout:          5 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
	}
}

// Stats are cumulative counters for an AsyncSink.
type Stats struct {
	Submitted   int64 `json:"submitted"`
	Sent        int64 `json:"sent"`
	Failed      int64 `json:"failed"`
	DroppedFull int64 `json:"dropped_full"`
	DroppedOpen int64 `json:"dropped_open"`
}

// Dropped returns the total number of records never handed to the transport.
func (s Stats) Dropped() int64 {
	return s.DroppedFull + s.DroppedOpen
}

// AsyncSink is a goroutine-safe Sink backed by a bounded queue.
type AsyncSink struct {
	transport Transport
	breaker   *Breaker
	timeout   time.Duration
	queue     chan Record
	done      chan struct{}

	mu     sync.RWMutex
	closed bool

	submitted   atomic.Int64
	sent        atomic.Int64
	failed      atomic.Int64
	droppedFull atomic.Int64
	droppedOpen atomic.Int64

	log zerolog.Logger
}

// NewAsyncSink starts the delivery worker.
func NewAsyncSink(transport Transport, opts Options) *AsyncSink {
	def := DefaultOptions()
	if opts.QueueSize < 1 {
		opts.QueueSize = def.QueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.BreakerThreshold < 1 {
		opts.BreakerThreshold = def.BreakerThreshold
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = def.BreakerCooldown
	}

	s := &AsyncSink{
		transport: transport,
		breaker:   NewBreaker(opts.BreakerThreshold, opts.BreakerCooldown),
		timeout:   opts.Timeout,
		queue:     make(chan Record, opts.QueueSize),
		done:      make(chan struct{}),
		log:       logger.WithComponent("audit"),
	}
	go s.run()
	return s
}

// Submit enqueues rec without blocking. Records are dropped when the queue
// is full, the breaker is open or the sink is closed.
func (s *AsyncSink) Submit(rec Record) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.submitted.Add(1)
	if s.closed || s.breaker.Rejecting() {
		s.droppedOpen.Add(1)
		return
	}
	select {
	case s.queue <- rec:
	default:
		s.droppedFull.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (s *AsyncSink) Stats() Stats {
	return Stats{
		Submitted:   s.submitted.Load(),
		Sent:        s.sent.Load(),
		Failed:      s.failed.Load(),
		DroppedFull: s.droppedFull.Load(),
		DroppedOpen: s.droppedOpen.Load(),
	}
}

// Breaker exposes the sink's circuit breaker.
func (s *AsyncSink) Breaker() *Breaker {
	return s.breaker
}

// Close stops accepting records, drains the queue until ctx expires and
// closes the transport.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	var drainErr error
	select {
	case <-s.done:
	case <-ctx.Done():
		drainErr = ctx.Err()
	}

	stats := s.Stats()
	s.log.Info().
		Int64("sent", stats.Sent).
		Int64("failed", stats.Failed).
		Int64("dropped", stats.Dropped()).
		Msg("Audit sink closed")

	return errors.Join(drainErr, s.transport.Close())
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for rec := range s.queue {
		if !s.breaker.Allow() {
			s.droppedOpen.Add(1)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.transport.Send(ctx, rec)
		cancel()

		before := s.breaker.State()
		s.breaker.Record(err)
		if err != nil {
			s.failed.Add(1)
			s.log.Debug().Err(err).Str("record", rec.ID).Msg("Audit send failed")
			if before != StateOpen && s.breaker.State() == StateOpen {
				s.log.Warn().Err(err).Msg("Audit circuit opened")
			}
			continue
		}
		s.sent.Add(1)
		if before == StateHalfOpen {
			s.log.Info().Msg("Audit circuit closed")
		}
	}
}
