package httpcollector

import (
	"context"
	"sync"
	"time"

	"github.com/fieldwatch/aegis/internal/backoff"
	"github.com/fieldwatch/aegis/internal/ingest"
	"github.com/fieldwatch/aegis/internal/models"
	"github.com/fieldwatch/aegis/internal/telemetry/logging"
	"github.com/fieldwatch/aegis/internal/telemetry/metrics"
	"github.com/fieldwatch/aegis/internal/workerpool"
)

// Collector runs one polling goroutine per enabled HTTP-source kit and
// reconciles that set against the registry every ReconcileInterval, the way
// the teacher's engine reconciles pipeline worker counts against config
// changes rather than requiring a restart.
type Collector struct {
	registry    ingest.RegistryUpdater
	kitsLister  KitLister
	sink        ingest.Sink
	client      *Client
	pool        *workerpool.Pool
	backoffCfg  backoff.Config
	queueWater  workerpool.QueueDepth
	reconcileEvery time.Duration
	log         logging.Logger
	pollLatency metrics.Histogram
	pollErrors  metrics.Counter

	mu       sync.Mutex
	running  map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// KitLister supplies the current kit snapshot the Collector reconciles
// against. The registry implements this.
type KitLister interface {
	Kits() []models.Kit
}

// Config configures a Collector.
type Config struct {
	MaxInFlight        int
	ReconcileInterval  time.Duration
	PollTimeout        time.Duration
	Backoff            backoff.Config
	WriterHighWater    int
	WriterLowWater     int
}

// New constructs a Collector.
func New(cfg Config, kits KitLister, registry ingest.RegistryUpdater, sink ingest.Sink, log logging.Logger, provider metrics.Provider) *Collector {
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = 5 * time.Second
	}
	if log == nil {
		log = logging.NewNop()
	}
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}
	c := &Collector{
		registry:       registry,
		kitsLister:     kits,
		sink:           sink,
		client:         NewClient(cfg.PollTimeout),
		pool:           workerpool.New(cfg.MaxInFlight),
		backoffCfg:     cfg.Backoff,
		queueWater:     workerpool.QueueDepth{HighWater: cfg.WriterHighWater, LowWater: cfg.WriterLowWater},
		reconcileEvery: cfg.ReconcileInterval,
		log:            log,
		running:        make(map[string]context.CancelFunc),
	}
	c.pollLatency = provider.NewHistogram(metrics.HistogramOpts{CommonOpts: metrics.CommonOpts{Namespace: "aegis", Subsystem: "httpcollector", Name: "poll_duration_seconds", Help: "HTTP collector poll round-trip duration", Labels: []string{"kit_id"}}})
	c.pollErrors = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{Namespace: "aegis", Subsystem: "httpcollector", Name: "poll_errors_total", Help: "HTTP collector poll failures", Labels: []string{"kit_id"}}})
	return c
}

// Run reconciles the running-goroutine set against the registry until ctx
// is cancelled, then waits for every kit loop to exit.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.reconcileInterval())
	defer ticker.Stop()
	c.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			c.stopAll()
			c.wg.Wait()
			return
		case <-ticker.C:
			c.reconcile(ctx)
		}
	}
}

func (c *Collector) reconcileInterval() time.Duration { return c.reconcileEvery }

func (c *Collector) reconcile(ctx context.Context) {
	wanted := map[string]models.Kit{}
	for _, k := range c.kitsLister.Kits() {
		if k.DisabledByAdmin || k.HTTPBaseURL == "" {
			continue
		}
		wanted[k.ID] = k
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.running {
		if _, ok := wanted[id]; !ok {
			cancel()
			delete(c.running, id)
		}
	}
	for id, k := range wanted {
		if _, ok := c.running[id]; ok {
			continue
		}
		kitCtx, cancel := context.WithCancel(ctx)
		c.running[id] = cancel
		c.wg.Add(1)
		go c.pollLoop(kitCtx, k)
	}
}

func (c *Collector) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.running {
		cancel()
		delete(c.running, id)
	}
}

func (c *Collector) pollLoop(ctx context.Context, kit models.Kit) {
	defer c.wg.Done()
	b := backoff.New(c.backoffCfg)
	paused := false
	for {
		depth := c.sink.QueueDepth()
		if paused {
			paused = !c.queueWater.ShouldResume(depth)
		} else {
			paused = c.queueWater.ShouldPause(depth)
		}
		if !paused {
			c.pollOnce(ctx, kit, b)
		}
		if !backoff.SleepWithContext(ctx.Done(), b.Delay()) {
			return
		}
	}
}

func (c *Collector) pollOnce(ctx context.Context, kit models.Kit, b *backoff.Backoff) {
	start := time.Now()
	err := c.pool.Do(ctx, func() error { return c.fetchAndWrite(ctx, kit) })
	if c.pollLatency != nil {
		c.pollLatency.Observe(time.Since(start).Seconds(), kit.ID)
	}
	if err != nil {
		b.RecordFailure()
		c.registry.RecordFailure(kit.ID)
		if c.pollErrors != nil {
			c.pollErrors.Inc(1, kit.ID)
		}
		c.log.WarnCtx(ctx, "httpcollector: poll failed")
		return
	}
	b.RecordSuccess()
	c.registry.Touch(kit.ID, models.SourceHTTP, time.Now())
}

func (c *Collector) fetchAndWrite(ctx context.Context, kit models.Kit) error {
	now := time.Now()

	drones, err := c.client.FetchDrones(ctx, kit.HTTPBaseURL)
	if err == nil {
		tracks, nerr := normalizeDrones(kit.ID, drones, now)
		if nerr == nil && len(tracks) > 0 {
			_ = c.sink.InsertTracks(ctx, tracks)
		}
	}

	signals, serr := c.client.FetchSignals(ctx, kit.HTTPBaseURL)
	if serr == nil && len(signals) > 0 {
		_ = c.sink.InsertSignals(ctx, normalizeSignals(kit.ID, signals, now))
	}

	status, sterr := c.client.FetchStatus(ctx, kit.HTTPBaseURL)
	if sterr == nil {
		_ = c.sink.InsertHealth(ctx, []models.HealthSample{normalizeStatus(kit.ID, status, now)})
	}

	if err != nil && serr != nil && sterr != nil {
		return err
	}
	return nil
}
