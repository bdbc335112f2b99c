package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/nft-market/internal/model"
)

// Sink receives marketplace events.
type Sink interface {
	Name() string
	Publish(ctx context.Context, e model.Event) error
}

// Lifecycle is implemented by sinks that run background work of their own.
// The dispatcher starts them before the first event and stops them after the
// last one has been delivered.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Config holds per-sink queue sizing.
type Config struct {
	InitialQueueSize int
	MaxQueueSize     int
}

// DefaultConfig returns default queue sizing.
func DefaultConfig() Config {
	return Config{
		InitialQueueSize: 256,
		MaxQueueSize:     65536,
	}
}

// SinkStats reports delivery counters for one sink.
type SinkStats struct {
	Name      string     `json:"name"`
	Delivered int64      `json:"delivered"`
	Failed    int64      `json:"failed"`
	Queue     QueueStats `json:"queue"`
}

type lane struct {
	sink      Sink
	queue     *Queue[model.Event]
	delivered atomic.Int64
	failed    atomic.Int64
}

// Dispatcher copies events from a source channel to every sink.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
	source <-chan model.Event
	lanes  []*lane

	ctx     context.Context
	cancel  context.CancelFunc
	pumpWG  sync.WaitGroup
	workers *errgroup.Group
}

// New creates a dispatcher reading from source.
func New(cfg Config, source <-chan model.Event, sinks []Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.InitialQueueSize < 1 {
		cfg.InitialQueueSize = def.InitialQueueSize
	}
	if cfg.MaxQueueSize < cfg.InitialQueueSize {
		cfg.MaxQueueSize = max(def.MaxQueueSize, cfg.InitialQueueSize)
	}

	lanes := make([]*lane, 0, len(sinks))
	for _, s := range sinks {
		lanes = append(lanes, &lane{
			sink:  s,
			queue: NewQueue[model.Event](cfg.InitialQueueSize, cfg.MaxQueueSize),
		})
	}

	return &Dispatcher{
		cfg:    cfg,
		logger: logger,
		source: source,
		lanes:  lanes,
	}
}

// Start starts every sink that has a lifecycle, then begins dispatching.
// If any sink fails to start, the ones already started are stopped again.
func (d *Dispatcher) Start(ctx context.Context) error {
	var started []Lifecycle
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range d.lanes {
		lc, ok := l.sink.(Lifecycle)
		if !ok {
			continue
		}
		name := l.sink.Name()
		g.Go(func() error {
			if err := lc.Start(gctx); err != nil {
				return fmt.Errorf("start sink %s: %w", name, err)
			}
			mu.Lock()
			started = append(started, lc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, lc := range started {
			_ = lc.Stop(context.WithoutCancel(ctx))
		}
		return err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.workers = &errgroup.Group{}

	// Deliveries outlive the pump so queued events drain during Stop.
	deliverCtx := context.WithoutCancel(ctx)
	for _, l := range d.lanes {
		d.workers.Go(func() error {
			d.drain(deliverCtx, l)
			return nil
		})
	}

	d.pumpWG.Add(1)
	go d.pump()

	d.logger.Info("event dispatcher started", "sinks", len(d.lanes))
	return nil
}

// Stop stops reading the source, delivers whatever is queued, then stops
// lifecycle sinks. ctx bounds the whole shutdown.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.logger.Info("stopping event dispatcher")

	if d.cancel != nil {
		d.cancel()
	}
	d.pumpWG.Wait()

	for _, l := range d.lanes {
		l.queue.Close()
	}

	done := make(chan struct{})
	go func() {
		if d.workers != nil {
			_ = d.workers.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn("event dispatcher drain timed out")
	}

	var errs []error
	for _, l := range d.lanes {
		lc, ok := l.sink.(Lifecycle)
		if !ok {
			continue
		}
		if err := lc.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop sink %s: %w", l.sink.Name(), err))
		}
	}

	d.logger.Info("event dispatcher stopped")
	return errors.Join(errs...)
}

// Stats returns per-sink counters in registration order.
func (d *Dispatcher) Stats() []SinkStats {
	out := make([]SinkStats, 0, len(d.lanes))
	for _, l := range d.lanes {
		out = append(out, SinkStats{
			Name:      l.sink.Name(),
			Delivered: l.delivered.Load(),
			Failed:    l.failed.Load(),
			Queue:     l.queue.Stats(),
		})
	}
	return out
}

// pump copies source events into every lane until cancelled, then takes
// whatever is already buffered in the source without waiting for more.
func (d *Dispatcher) pump() {
	defer d.pumpWG.Done()

	for {
		select {
		case <-d.ctx.Done():
			for {
				select {
				case e, ok := <-d.source:
					if !ok {
						return
					}
					d.fanOut(e)
				default:
					return
				}
			}
		case e, ok := <-d.source:
			if !ok {
				d.logger.Info("event source closed")
				return
			}
			d.fanOut(e)
		}
	}
}

func (d *Dispatcher) fanOut(e model.Event) {
	for _, l := range d.lanes {
		l.queue.Push(e)
	}
}

// drain delivers queued events to one sink until its queue is closed and empty.
func (d *Dispatcher) drain(ctx context.Context, l *lane) {
	for {
		e, ok := l.queue.Pop()
		if !ok {
			return
		}
		if err := l.sink.Publish(ctx, e); err != nil {
			l.failed.Add(1)
			d.logger.Warn("sink publish failed",
				"sink", l.sink.Name(),
				"event_id", e.ID,
				"type", e.Type,
				"error", err,
			)
			continue
		}
		l.delivered.Add(1)
	}
}
