package logging

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	routerEventsMetricKey  = "logging_events_total"
	routerDroppedMetricKey = "logging_events_dropped_total"
	routerSampledMetricKey = "logging_events_sampled_total"
	sinkDroppedMetricKey   = "logging_sink_dropped_total"
	sinkFailuresMetricKey  = "logging_sink_failures_total"

	defaultDropWarnInterval = 5 * time.Second
	maxRetryShift           = 5
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// FallbackLogger receives the router's own warnings (drops, sink failures).
// *zap.SugaredLogger satisfies it.
type FallbackLogger interface {
	Warnf(template string, args ...any)
}

// RouterOption customises a Router.
type RouterOption func(*Router)

// WithMetrics records router throughput into metrics.
func WithMetrics(metrics *Metrics) RouterOption {
	return func(r *Router) {
		r.metrics = metrics
	}
}

// WithFallback replaces the stderr logger used for router diagnostics.
func WithFallback(logger FallbackLogger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.fallback = logger
		}
	}
}

func defaultFallback() FallbackLogger {
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.WarnLevel)
	return zap.New(core).Named("logging").Sugar()
}

// Router fans events out to sinks on background workers. Publish never
// blocks the simulation: a full queue drops the event and counts it.
type Router struct {
	cfg         Config
	queue       chan Event
	sinks       []*sinkWorker
	clock       Clock
	fallback    FallbackLogger
	metrics     *Metrics
	ctx         context.Context
	cancel      context.CancelFunc
	closed      atomic.Bool
	minSeverity Severity
	fields      map[string]any
	sampleEvery map[EventType]uint64
	wg          sync.WaitGroup
	startOnce   sync.Once

	// seen is only touched by the dispatch goroutine.
	seen map[EventType]uint64

	byTypeMu deadlock.Mutex
	byType   map[EventType]uint64

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	sampledTotal atomic.Uint64
	dropWarn     rateLimiter
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
	SampledTotal uint64
	ByType       map[EventType]uint64
}

func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink, opts ...RouterOption) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	interval := cfg.DropWarnInterval
	if interval <= 0 {
		interval = defaultDropWarnInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:         cfg,
		queue:       make(chan Event, bufferSize),
		clock:       clock,
		fallback:    defaultFallback(),
		ctx:         ctx,
		cancel:      cancel,
		minSeverity: cfg.MinimumSeverity,
		fields:      cfg.CloneFields(),
		sampleEvery: cfg.CloneSampling(),
		seen:        make(map[EventType]uint64),
		byType:      make(map[EventType]uint64),
		dropWarn:    rateLimiter{interval: interval},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	sinkBuffer := min(max(bufferSize, 32), 1024)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.sinks = append(r.sinks, &sinkWorker{
			name:     named.Name,
			sink:     named.Sink,
			events:   make(chan Event, sinkBuffer),
			router:   r,
			dropWarn: rateLimiter{interval: interval},
		})
	}

	r.start()
	return r, nil
}

func (r *Router) start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go func() {
			defer func() {
				for _, worker := range r.sinks {
					close(worker.events)
				}
				r.wg.Done()
			}()
			for {
				select {
				case <-r.ctx.Done():
					r.drain()
					return
				case event := <-r.queue:
					r.forward(event)
				}
			}
		}()

		for _, worker := range r.sinks {
			r.wg.Add(1)
			go func(w *sinkWorker) {
				defer r.wg.Done()
				w.run(r.ctx)
			}(worker)
		}
	})
}

func (r *Router) drain() {
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		default:
			return
		}
	}
}

// sampled reports whether event should be skipped under the per-type
// sampling rate. Warnings and errors are never sampled out.
func (r *Router) sampled(event Event) bool {
	every := r.sampleEvery[event.Type]
	if every <= 1 || event.Severity >= SeverityWarn {
		return false
	}
	n := r.seen[event.Type]
	r.seen[event.Type] = n + 1
	return n%every != 0
}

func (r *Router) forward(event Event) {
	if event.Severity < r.minSeverity {
		return
	}
	if r.sampled(event) {
		r.sampledTotal.Add(1)
		r.metrics.Add(routerSampledMetricKey, 1)
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if len(r.fields) > 0 {
		event = cloneForFields(event)
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(r.fields))
		}
		for k, v := range r.fields {
			if _, exists := event.Extra[k]; !exists {
				event.Extra[k] = v
			}
		}
	}
	r.eventsTotal.Add(1)
	r.metrics.Add(routerEventsMetricKey, 1)
	r.byTypeMu.Lock()
	r.byType[event.Type]++
	r.byTypeMu.Unlock()
	for _, worker := range r.sinks {
		worker.enqueue(event)
	}
}

// Publish queues event for delivery. Events without a type and events
// published after Close are discarded.
func (r *Router) Publish(ctx context.Context, event Event) {
	if event.Type == "" {
		return
	}
	if r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.droppedTotal.Add(1)
		r.metrics.Add(routerDroppedMetricKey, 1)
		if r.dropWarn.allow(r.clock.Now()) {
			r.fallback.Warnf("dropping event type=%s tick=%d", event.Type, event.Tick)
		}
	}
}

// Close stops accepting events, flushes what is queued and closes every
// sink. A second call waits for ctx and returns its error.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		<-ctx.Done()
		return ctx.Err()
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, worker := range r.sinks {
		if err := worker.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	r.byTypeMu.Lock()
	byType := make(map[EventType]uint64, len(r.byType))
	for k, v := range r.byType {
		byType[k] = v
	}
	r.byTypeMu.Unlock()
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
		SampledTotal: r.sampledTotal.Load(),
		ByType:       byType,
	}
}

func (r *Router) Sink(name string) Sink {
	for _, worker := range r.sinks {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}

// rateLimiter lets one warning through per interval.
type rateLimiter struct {
	interval time.Duration
	next     atomic.Int64
}

func (l *rateLimiter) allow(now time.Time) bool {
	at := now.UnixNano()
	next := l.next.Load()
	if next != 0 && at < next {
		return false
	}
	return l.next.CompareAndSwap(next, at+l.interval.Nanoseconds())
}

type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	router   *Router
	dropWarn rateLimiter
	failures int
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- cloneForFields(event):
	default:
		w.router.metrics.Add(sinkDroppedMetricKey, 1)
		if w.dropWarn.allow(w.router.clock.Now()) {
			w.router.fallback.Warnf("sink %s backlog full dropping event type=%s", w.name, event.Type)
		}
	}
}

func (w *sinkWorker) run(ctx context.Context) {
	for event := range w.events {
		if err := w.sink.Write(event); err != nil {
			w.backoff(ctx, err)
			continue
		}
		w.failures = 0
	}
}

// backoff pauses the worker after a failed write, doubling up to 32s. The
// pause ends early once the router shuts down so Close can flush.
func (w *sinkWorker) backoff(ctx context.Context, err error) {
	w.failures++
	w.router.metrics.Add(sinkFailuresMetricKey, 1)
	delay := time.Duration(1<<min(w.failures, maxRetryShift)) * time.Second
	w.router.fallback.Warnf("sink %s failed: %v (retry in %s)", w.name, err, delay)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
