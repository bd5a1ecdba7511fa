package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shelfwatch/shelfwatch/internal/fetch"
	"github.com/shelfwatch/shelfwatch/internal/metrics"
	"github.com/shelfwatch/shelfwatch/internal/models"
	"github.com/shelfwatch/shelfwatch/internal/ratelimit"
	"github.com/shelfwatch/shelfwatch/internal/store"
	"github.com/shelfwatch/shelfwatch/internal/timer"
)

// Dispatcher fans detected events out to notification collaborators.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []Event, settings models.Settings)
}

// IdentityRotator swaps the outbound fetch identity.
type IdentityRotator interface {
	Rotate() models.Profile
}

// SchedulerConfig holds the pacing knobs that are process configuration
// rather than user settings.
type SchedulerConfig struct {
	// PauseBase is the base pause between consecutive product checks; the
	// actual pause is jittered by the settings jitter percent.
	PauseBase time.Duration
	// RotateChance is the per-tick probability of rotating the fetch
	// identity.
	RotateChance float64
	// MinTickInterval floors the tick period regardless of settings.
	MinTickInterval time.Duration
}

// DefaultSchedulerConfig returns the standard pacing configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PauseBase:       2 * time.Second,
		RotateChance:    0.10,
		MinTickInterval: 10 * time.Second,
	}
}

// Summary is the observable state exposed to the UI layer, refreshed at the
// end of every tick.
type Summary struct {
	Total       int       `json:"total"`
	Active      int       `json:"active"`
	Paused      int       `json:"paused"`
	Errored     int       `json:"errored"`
	InStock     int       `json:"inStock"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

// TickStats reports what one tick did.
type TickStats struct {
	Eligible int
	Checked  int
	Skipped  int
	Failed   int
	Events   int
	// Ran is false when the single-flight guard rejected the trigger.
	Ran bool
}

// Scheduler is the orchestrating loop: on each tick it selects eligible
// products and runs the fetch, classify, transition, persist, dispatch
// pipeline for each in order, pacing outbound requests through the rate
// limiter and jittered pauses. Products are processed sequentially by
// design; that keeps the limiter and pacing meaningful and avoids concurrent
// use of the shared fetch session.
type Scheduler struct {
	store      store.Store
	fetcher    fetch.Fetcher
	classifier *Classifier
	machine    *StateMachine
	limiter    *ratelimit.Limiter
	dispatcher Dispatcher
	rotator    IdentityRotator
	alarm      timer.Alarm
	cfg        SchedulerConfig

	// AutoCart, when set, is invoked on its own goroutine for every restock
	// of a product flagged for automatic purchase.
	AutoCart func(ctx context.Context, p models.Product)

	checking atomic.Bool // single-flight tick guard
	stopped  atomic.Bool
	summary  atomic.Pointer[Summary]

	mu  sync.Mutex // guards rng
	rng *rand.Rand

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler wires the engine together. Attach the driving alarm with
// AttachAlarm before calling Start.
func NewScheduler(
	st store.Store,
	fetcher fetch.Fetcher,
	classifier *Classifier,
	machine *StateMachine,
	limiter *ratelimit.Limiter,
	dispatcher Dispatcher,
	rotator IdentityRotator,
	cfg SchedulerConfig,
	src rand.Source,
) *Scheduler {
	return &Scheduler{
		store:      st,
		fetcher:    fetcher,
		classifier: classifier,
		machine:    machine,
		limiter:    limiter,
		dispatcher: dispatcher,
		rotator:    rotator,
		cfg:        cfg,
		rng:        rand.New(src),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// AttachAlarm sets the timer driving periodic ticks.
func (s *Scheduler) AttachAlarm(a timer.Alarm) {
	s.alarm = a
}

// Start clears any stop flag and arms the alarm from current state.
func (s *Scheduler) Start(ctx context.Context) error {
	s.stopped.Store(false)
	return s.Reschedule(ctx)
}

// Stop prevents further products in the current tick from starting new work
// and disarms the alarm. An in-flight single-product fetch is allowed to
// finish; the tick drains at the next product boundary.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
	if s.alarm != nil {
		s.alarm.Disarm()
	}
	log.Info().Str("component", "scheduler").Msg("Monitoring stopped")
}

// Stopped reports whether stop-all is in effect.
func (s *Scheduler) Stopped() bool {
	return s.stopped.Load()
}

// Summary returns the last observable summary, or nil before the first tick.
func (s *Scheduler) Summary() *Summary {
	return s.summary.Load()
}

// Reschedule recomputes the alarm period from settings and product
// eligibility. Call it whenever either changes: the alarm is cleared
// entirely when no product is eligible and re-armed when eligibility becomes
// non-empty.
func (s *Scheduler) Reschedule(ctx context.Context) error {
	if s.alarm == nil || s.stopped.Load() {
		return nil
	}

	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}
	products, err := s.store.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}

	eligible := 0
	for i := range products {
		if products[i].Eligible() {
			eligible++
		}
	}
	if eligible == 0 {
		s.alarm.Disarm()
		log.Debug().Str("component", "scheduler").Msg("No eligible products, alarm disarmed")
		return nil
	}

	period := time.Duration(settings.CheckIntervalSeconds) * time.Second
	if period < s.cfg.MinTickInterval {
		period = s.cfg.MinTickInterval
	}
	s.alarm.Arm(period)
	return nil
}

// Tick runs one full monitoring pass. A tick that is already running causes
// a newly-triggered tick to no-op rather than queue: overlapping fetch
// storms when the trigger interval is shorter than a slow tick are the
// failure mode this guards against.
func (s *Scheduler) Tick(ctx context.Context) TickStats {
	if !s.checking.CompareAndSwap(false, true) {
		metrics.TicksSkipped.Inc()
		log.Debug().Str("component", "scheduler").Msg("Tick already running, skipping trigger")
		return TickStats{}
	}
	defer s.checking.Store(false)

	tracer := otel.Tracer("shelfwatch/engine")
	ctx, span := tracer.Start(ctx, "monitor.tick")
	defer span.End()

	started := s.now()
	stats := TickStats{Ran: true}
	defer func() {
		metrics.TickDuration.Observe(s.now().Sub(started).Seconds())
	}()

	// Settings are re-read every tick, never cached across ticks.
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		log.Error().Err(err).Str("component", "scheduler").Msg("Failed to load settings")
		return stats
	}
	settings = settings.Normalize()

	products, err := s.store.LoadProducts(ctx)
	if err != nil {
		log.Error().Err(err).Str("component", "scheduler").Msg("Failed to load products")
		return stats
	}

	eligible := make([]*models.Product, 0, len(products))
	for i := range products {
		if products[i].Eligible() {
			eligible = append(eligible, &products[i])
		}
	}
	stats.Eligible = len(eligible)
	span.SetAttributes(attribute.Int("products.eligible", len(eligible)))

	if len(eligible) == 0 {
		s.refreshSummary(products)
		if s.alarm != nil {
			s.alarm.Disarm()
		}
		return stats
	}

	// Occasionally rotate the outbound identity so long-run request patterns
	// do not correlate with a static fingerprint.
	if s.rotator != nil && s.randFloat() < s.cfg.RotateChance {
		s.rotator.Rotate()
	}

	// The fetch session is owned by this tick and released at its end no
	// matter what happens per product.
	var session fetch.Session
	defer func() {
		if session != nil {
			session.Close()
		}
	}()

	for i, p := range eligible {
		if s.stopped.Load() || ctx.Err() != nil {
			log.Info().Str("component", "scheduler").
				Int("remaining", len(eligible)-i).
				Msg("Tick draining: stop requested")
			break
		}

		// The backoff gate skips: a product inside its retry window is
		// simply not due yet this tick.
		if !s.machine.DueForCheck(p, s.now()) {
			stats.Skipped++
			continue
		}

		// The rate limiter gate sleeps rather than skipping: a denied check
		// still happens, just later.
		if wait := s.limiter.WaitTime(); wait > 0 {
			metrics.RateLimitWaits.Inc()
			if err := s.sleep(ctx, wait); err != nil {
				break
			}
		}

		if session == nil {
			session, err = s.fetcher.Open(ctx)
			if err != nil {
				log.Error().Err(err).Str("component", "scheduler").Msg("Failed to open fetch session")
				break
			}
		}

		events, failed := s.checkProduct(ctx, session, p, settings)
		stats.Checked++
		stats.Events += events
		if failed {
			stats.Failed++
		}

		if i < len(eligible)-1 {
			if err := s.sleep(ctx, s.jitteredPause(settings.JitterPercent)); err != nil {
				break
			}
		}
	}

	s.refreshSummary(products)
	if err := s.Reschedule(ctx); err != nil {
		log.Warn().Err(err).Str("component", "scheduler").Msg("Reschedule after tick failed")
	}

	log.Info().
		Str("component", "scheduler").
		Int("eligible", stats.Eligible).
		Int("checked", stats.Checked).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Int("events", stats.Events).
		Dur("duration", s.now().Sub(started)).
		Msg("Tick complete")
	return stats
}

// checkProduct runs the fetch → classify → transition → persist → dispatch
// pipeline for one product. No error class escapes into the tick driver: a
// panic or failure is treated as a fetch failure for this product and the
// tick moves on.
func (s *Scheduler) checkProduct(ctx context.Context, session fetch.Session, p *models.Product, settings models.Settings) (eventCount int, failed bool) {
	s.limiter.Record()
	now := s.now()

	snap, err := s.safeFetch(ctx, session, p.URL)
	if err != nil {
		s.recordFailure(ctx, p, FailureFetch, err.Error(), now, settings)
		metrics.ChecksTotal.WithLabelValues("fetch_failure").Inc()
		return 0, true
	}

	if err := s.classifier.Validate(*snap); err != nil {
		// Junk-response repair path: this is the only place a stored name is
		// rewritten. A name that itself fails classification was corrupted
		// by an earlier, looser validity check; blank it so the next valid
		// fetch refreshes it.
		if p.Name != "" && !s.classifier.NameValid(p.Name) {
			old := p.Name
			p.Name = ""
			s.appendLog(ctx, p.ID, "name_repaired", fmt.Sprintf("cleared corrupted name %q", old))
		}
		s.recordFailure(ctx, p, FailureInvalid, err.Error(), now, settings)
		metrics.ChecksTotal.WithLabelValues("invalid_data").Inc()
		return 0, true
	}

	wasError := p.MonitorState == models.MonitorError
	updates, events := Detect(*p, *snap, settings, now)
	updates.Apply(p)

	// Persistence failure for one product is logged and skipped; it must not
	// block the rest of the tick, and we do not dispatch events we failed to
	// record.
	if err := s.store.SaveProduct(ctx, *p); err != nil {
		log.Error().Err(err).
			Str("component", "scheduler").
			Str("product_id", p.ID).
			Msg("Failed to persist check result")
		s.appendLog(ctx, p.ID, "persistence_failure", err.Error())
		metrics.ChecksTotal.WithLabelValues("persistence_failure").Inc()
		return 0, true
	}

	metrics.ChecksTotal.WithLabelValues("valid").Inc()
	if wasError {
		s.appendLog(ctx, p.ID, "monitor_recovered", "valid data received, error count reset")
	}

	for _, e := range events {
		metrics.EventsTotal.WithLabelValues(string(e.Type)).Inc()
		s.appendLog(ctx, p.ID, string(e.Type), fmt.Sprintf("%s: %.2f -> %.2f", p.Name, e.OldPrice, e.NewPrice))
	}

	// Events for this product are dispatched before the next product's
	// check begins.
	if s.dispatcher != nil && len(events) > 0 {
		s.dispatcher.Dispatch(ctx, events, settings)
	}

	if s.AutoCart != nil && (settings.AutoAddToCart || p.AutoAddToCart) {
		for _, e := range events {
			if e.Type == EventRestocked {
				product := *p
				go s.AutoCart(context.WithoutCancel(ctx), product)
				break
			}
		}
	}

	return len(events), false
}

// safeFetch isolates the fetcher: a panic inside it surfaces as a fetch
// error instead of aborting the tick.
func (s *Scheduler) safeFetch(ctx context.Context, session fetch.Session, url string) (snap *models.RawSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = &FetchError{URL: url, Err: fmt.Errorf("fetch panicked: %v", r)}
		}
	}()
	snap, err = session.Fetch(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return snap, nil
}

func (s *Scheduler) recordFailure(ctx context.Context, p *models.Product, kind FailureKind, message string, now time.Time, settings models.Settings) {
	outcome := s.machine.RecordFailure(p, kind, message, now)

	if err := s.store.SaveProduct(ctx, *p); err != nil {
		log.Error().Err(err).
			Str("component", "scheduler").
			Str("product_id", p.ID).
			Msg("Failed to persist failure state")
	}
	s.appendLog(ctx, p.ID, string(kind), message)

	log.Warn().
		Str("component", "scheduler").
		Str("product_id", p.ID).
		Str("url", p.URL).
		Str("kind", string(kind)).
		Int("error_count", p.ErrorCount).
		Msg("Check failed")

	var notices []Event
	if outcome.EnteredError {
		notices = append(notices, Event{Type: EventMonitorError, Product: *p, Detail: message, At: now})
		s.appendLog(ctx, p.ID, "monitor_error", fmt.Sprintf("entered error state after %d failures", p.ErrorCount))
	}
	if outcome.PossiblyGone {
		notices = append(notices, Event{Type: EventPossiblyGone, Product: *p, Detail: message, At: now})
	}
	if s.dispatcher != nil && len(notices) > 0 {
		s.dispatcher.Dispatch(ctx, notices, settings)
	}
}

func (s *Scheduler) appendLog(ctx context.Context, productID, event, details string) {
	if err := s.store.AppendLog(ctx, models.NewLogEntry(productID, event, details)); err != nil {
		log.Warn().Err(err).Str("component", "scheduler").Msg("Failed to append log entry")
	}
}

func (s *Scheduler) refreshSummary(products []models.Product) {
	sum := &Summary{Total: len(products), RefreshedAt: s.now()}
	for i := range products {
		switch products[i].MonitorState {
		case models.MonitorActive:
			sum.Active++
		case models.MonitorPaused:
			sum.Paused++
		case models.MonitorError:
			sum.Errored++
		}
		if products[i].StockStatus == models.StockInStock {
			sum.InStock++
		}
	}
	s.summary.Store(sum)

	metrics.ProductsInStock.Set(float64(sum.InStock))
	metrics.ProductsByState.WithLabelValues(string(models.MonitorActive)).Set(float64(sum.Active))
	metrics.ProductsByState.WithLabelValues(string(models.MonitorPaused)).Set(float64(sum.Paused))
	metrics.ProductsByState.WithLabelValues(string(models.MonitorError)).Set(float64(sum.Errored))
}

// jitteredPause perturbs the base pause by ±jitterPct percent so outbound
// pacing stays non-uniform.
func (s *Scheduler) jitteredPause(jitterPct int) time.Duration {
	base := float64(s.cfg.PauseBase)
	factor := 1 + float64(jitterPct)/100*(2*s.randFloat()-1)
	d := time.Duration(base * factor)
	if d < 0 {
		d = 0
	}
	return d
}

func (s *Scheduler) randFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
