// Background cache scheduler.
//
// The Scheduler drives periodic evict-and-rebuild for each registered
// key-space, independent of read traffic. Each key-space runs on its
// own goroutine and ticker, so a slow or failing rebuild in one never
// delays the other. Failed rebuilds are logged and counted; the next
// tick retries. Missed ticks (process suspension, long rebuilds) are
// not queued: time.Ticker drops them, which is exactly the no-backlog
// behavior we want.
package refdata

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	// cacheRefreshes counts scheduled and manual rebuilds per key-space
	// and outcome ("ok" / "error").
	cacheRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refdata_cache_refresh_total",
			Help: "Total number of reference-data cache rebuilds.",
		},
		[]string{"keyspace", "outcome"},
	)

	// cacheRefreshDur records rebuild duration in seconds per key-space.
	cacheRefreshDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refdata_cache_refresh_duration_seconds",
			Help:    "Duration of reference-data cache rebuilds in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"keyspace"},
	)
)

func init() {
	prometheus.MustRegister(cacheRefreshes, cacheRefreshDur)
}

// Refresher is the slice of a cached key-space the scheduler needs:
// a name for logs/metrics and a blocking evict-and-rebuild operation.
// *Value[T] satisfies it for any T.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) error
}

// Scheduler periodically refreshes a set of key-spaces. Construct with
// NewScheduler, register key-spaces with Add, then call Start once.
type Scheduler struct {
	interval time.Duration
	log      zerolog.Logger
	targets  []Refresher

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler that refreshes every registered
// key-space at the given interval. Intervals <= 0 default to one hour,
// matching the upstream submission cadence.
func NewScheduler(interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Add registers a key-space for periodic refresh. Must be called before
// Start.
func (s *Scheduler) Add(r Refresher) {
	s.targets = append(s.targets, r)
}

// Start performs one eager refresh of every key-space (so the process
// comes up warm) and then launches one refresh loop per key-space.
// Initial build failures are logged, not fatal: the process degrades to
// lazy builds on first read and the next tick retries.
func (s *Scheduler) Start(ctx context.Context) {
	for _, t := range s.targets {
		RefreshInstrumented(ctx, t, s.log)
		s.wg.Add(1)
		go s.loop(t)
	}
}

// Stop halts all refresh loops and waits for them to exit. In-flight
// rebuilds run to completion; their results are installed as usual.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// loop ticks one key-space until Stop is called.
func (s *Scheduler) loop(t Refresher) {
	defer s.wg.Done()

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			RefreshInstrumented(context.Background(), t, s.log)
		case <-s.stop:
			return
		}
	}
}

// RefreshInstrumented evicts and eagerly rebuilds one key-space,
// recording the outcome in logs and metrics. It is shared by the
// scheduler ticks and the manual refresh endpoint so both show up under
// the same metric series.
func RefreshInstrumented(ctx context.Context, t Refresher, log zerolog.Logger) error {
	start := time.Now()
	err := t.Refresh(ctx)
	dur := time.Since(start)

	cacheRefreshDur.WithLabelValues(t.Name()).Observe(dur.Seconds())
	if err != nil {
		cacheRefreshes.WithLabelValues(t.Name(), "error").Inc()
		log.Error().
			Err(err).
			Str("keyspace", t.Name()).
			Dur("duration", dur).
			Msg("cache rebuild failed; key-space left empty, next read rebuilds lazily")
		return err
	}
	cacheRefreshes.WithLabelValues(t.Name(), "ok").Inc()
	log.Info().
		Str("keyspace", t.Name()).
		Dur("duration", dur).
		Msg("cache rebuilt")
	return nil
}
