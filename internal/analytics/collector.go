package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/kafka"
)

// Publisher sends a batch of events. *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

type CollectorConfig struct {
	// BufferSize bounds the events waiting to be published. Track drops
	// events when it is full.
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events and publishes them in batches from a single
// goroutine. Track never blocks the request path.
type Collector struct {
	publisher Publisher
	cfg       CollectorConfig
	eventCh   chan SearchEvent
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
	published atomic.Int64
	logger    *slog.Logger
}

func NewCollector(publisher Publisher, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Collector{
		publisher: publisher,
		cfg:       cfg,
		eventCh:   make(chan SearchEvent, cfg.BufferSize),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "analytics-collector"),
	}
}

// Start launches the publish loop. It runs until Close is called.
func (c *Collector) Start() {
	go c.run()
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
}

// Track enqueues event, dropping it if the buffer is full.
func (c *Collector) Track(event SearchEvent) {
	select {
	case c.eventCh <- event:
	default:
		if c.dropped.Add(1)%100 == 1 {
			c.logger.Warn("analytics buffer full, dropping events", "dropped_total", c.dropped.Load())
		}
	}
}

// Close stops accepting events, publishes what is buffered, and waits for
// the loop to exit. Track must not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.eventCh) })
	<-c.done
}

// Stats returns how many events were published and dropped.
func (c *Collector) Stats() (published, dropped int64) {
	return c.published.Load(), c.dropped.Load()
}

func (c *Collector) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.cfg.BatchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(batch)
				return
			}
			batch = append(batch, kafka.Event{Key: event.Pattern, Value: event})
			if len(batch) >= c.cfg.BatchSize {
				c.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			c.flush(batch)
			batch = batch[:0]
		}
	}
}

func (c *Collector) flush(batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.dropped.Add(int64(len(batch)))
		c.logger.Error("analytics batch dropped", "events", len(batch), "error", err)
		return
	}
	c.published.Add(int64(len(batch)))
	c.logger.Debug("analytics batch published", "events", len(batch))
}
