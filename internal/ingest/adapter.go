package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"railmap/internal/config"
	"railmap/internal/domain"
	"railmap/internal/estimator"
	"railmap/internal/observability"
	"railmap/internal/store"
	"railmap/internal/tiploc"
)

// Mode reports where position events currently come from.
type Mode string

const (
	ModeLive      Mode = "live"
	ModeSynthetic Mode = "synthetic"
)

// Adapter consumes the upstream movement feed and drives every event
// through estimation into the position store. When the feed cannot be
// reached it switches to a deterministic synthetic generator so that
// consumers always observe an evolving position set.
type Adapter struct {
	cfg       *config.Config
	table     *tiploc.Table
	estimator *estimator.Estimator
	store     *store.Store
	logger    *slog.Logger

	mu       sync.RWMutex
	mode     Mode
	ready    bool
	lastSeen time.Time

	onModeChange func(Mode)

	processed atomic.Int64
	dropped   atomic.Int64
}

func New(cfg *config.Config, table *tiploc.Table, est *estimator.Estimator, st *store.Store, logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg:       cfg,
		table:     table,
		estimator: est,
		store:     st,
		logger:    logger.With("component", "ingest"),
		mode:      ModeSynthetic,
	}
}

// Run blocks until ctx is cancelled. It maintains the feed connection,
// reconnecting with exponential backoff, and falls back to the synthetic
// generator whenever the feed is unreachable.
func (a *Adapter) Run(ctx context.Context) {
	if a.cfg.NATSURL == "" {
		a.logger.Info("no feed configured, running synthetic generator")
		a.runSynthetic(ctx)
		return
	}

	for ctx.Err() == nil {
		conn, err := a.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("feed unreachable, falling back to synthetic generator", "error", err)
			synCtx, cancel := context.WithCancel(ctx)
			go a.runSynthetic(synCtx)
			conn, err = a.retryForever(ctx)
			cancel()
			if err != nil {
				return
			}
		}
		a.consume(ctx, conn)
		conn.Close()
		if ctx.Err() == nil {
			a.logger.Warn("feed connection lost, reconnecting")
			observability.FeedReconnects.Inc()
		}
	}
}

// connect dials the feed with exponential backoff, giving up after the
// configured number of attempts.
func (a *Adapter) connect(ctx context.Context) (*nats.Conn, error) {
	backoff := a.cfg.FeedBackoffMin
	var lastErr error
	for attempt := 1; attempt <= a.cfg.FeedMaxRetries; attempt++ {
		conn, err := a.dial()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		a.logger.Warn("feed connect failed",
			"attempt", attempt,
			"max_attempts", a.cfg.FeedMaxRetries,
			"backoff", backoff,
			"error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, a.cfg.FeedBackoffMax)
	}
	return nil, lastErr
}

// retryForever keeps dialing at the maximum backoff interval while the
// synthetic generator covers for the missing feed.
func (a *Adapter) retryForever(ctx context.Context) (*nats.Conn, error) {
	ticker := time.NewTicker(a.cfg.FeedBackoffMax)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if conn, err := a.dial(); err == nil {
				a.logger.Info("feed recovered, leaving synthetic mode")
				return conn, nil
			}
		}
	}
}

func (a *Adapter) dial() (*nats.Conn, error) {
	return nats.Connect(a.cfg.NATSURL,
		nats.Name("railmap-ingest"),
		nats.ReconnectWait(a.cfg.FeedBackoffMin),
		nats.MaxReconnects(a.cfg.FeedMaxRetries),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			a.logger.Warn("feed disconnected", "error", err)
			observability.AdapterLive.Set(0)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			a.logger.Info("feed reconnected", "url", c.ConnectedUrl())
			observability.FeedReconnects.Inc()
			observability.AdapterLive.Set(1)
		}),
	)
}

// consume subscribes and processes messages until the connection closes
// for good or ctx is cancelled.
func (a *Adapter) consume(ctx context.Context, conn *nats.Conn) {
	msgs := make(chan *nats.Msg, 1024)
	sub, err := conn.ChanSubscribe(a.cfg.NATSSubject, msgs)
	if err != nil {
		a.logger.Error("feed subscribe failed", "subject", a.cfg.NATSSubject, "error", err)
		return
	}
	defer sub.Unsubscribe()

	closed := make(chan struct{})
	conn.SetClosedHandler(func(*nats.Conn) { close(closed) })

	// Clear any generated positions first so the mode-change snapshot
	// already reflects live traffic only.
	a.evictSynthetic(ctx)
	a.setMode(ModeLive)
	observability.AdapterLive.Set(1)
	a.logger.Info("consuming feed", "url", a.cfg.NATSURL, "subject", a.cfg.NATSSubject)

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			observability.AdapterLive.Set(0)
			return
		case msg := <-msgs:
			a.process(ctx, msg.Data, time.Now())
		}
	}
}

// process runs one message through the normalize, validate, estimate and
// apply pipeline. Failures are counted and logged, never fatal.
func (a *Adapter) process(ctx context.Context, data []byte, now time.Time) {
	ev, err := Normalize(data, now)
	if err != nil {
		a.drop(err)
		return
	}
	a.applyEvent(ctx, ev)
}

func (a *Adapter) applyEvent(ctx context.Context, ev *domain.RawMovementEvent) {
	if err := ev.Validate(); err != nil {
		a.drop(err)
		return
	}
	pos, err := a.estimator.Estimate(ev, a.table)
	if err != nil {
		a.drop(err)
		return
	}
	if err := a.store.Apply(ctx, pos); err != nil {
		a.drop(err)
		return
	}
	a.processed.Add(1)
	observability.EventsProcessed.Inc()

	a.mu.Lock()
	a.ready = true
	a.lastSeen = ev.Timestamp
	a.mu.Unlock()
}

func (a *Adapter) drop(err error) {
	a.dropped.Add(1)
	kind := string(domain.KindOf(err))
	observability.EventsDropped.WithLabelValues(kind).Inc()
	a.logger.Debug("event dropped", "kind", kind, "error", err)
}

// OnModeChange registers a callback invoked whenever the event source
// switches between live and synthetic. Must be set before Run.
func (a *Adapter) OnModeChange(fn func(Mode)) {
	a.onModeChange = fn
}

func (a *Adapter) setMode(m Mode) {
	a.mu.Lock()
	changed := a.mode != m
	a.mode = m
	a.mu.Unlock()
	if changed && a.onModeChange != nil {
		a.onModeChange(m)
	}
}

// Mode reports the current event source.
func (a *Adapter) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// IsReady reports whether at least one event has been applied.
func (a *Adapter) IsReady() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// Stats returns processed and dropped event counts since startup.
func (a *Adapter) Stats() (processed, dropped int64) {
	return a.processed.Load(), a.dropped.Load()
}

// LastSeen returns the timestamp of the most recent applied event.
func (a *Adapter) LastSeen() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastSeen
}
