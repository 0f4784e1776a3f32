package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/TrackRecon/internal/integrations/carrier"
	"github.com/BearBump/TrackRecon/internal/metrics"
	"github.com/BearBump/TrackRecon/internal/models"
	"github.com/BearBump/TrackRecon/internal/services/orderstate"
	"github.com/BearBump/TrackRecon/internal/services/reconcile"
	"github.com/BearBump/TrackRecon/internal/services/sls"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrTrackingFetch marks orders whose tracking info could not be obtained. They are left
	// untouched and picked up again by a later run.
	ErrTrackingFetch = errors.New("tracking fetch failed")
	// ErrPersistence marks orders whose update was rolled back.
	ErrPersistence = errors.New("persistence failed")
	// ErrRunInProgress is returned by RunOnce while another run of the same poller is active.
	ErrRunInProgress = errors.New("run already in progress")
)

type Repository interface {
	ListEligibleOrders(ctx context.Context, q models.EligibilityQuery) ([]*models.Order, error)
	GetOrder(ctx context.Context, id uint64) (*models.Order, error)
	ListOrderSteps(ctx context.Context, orderID uint64) ([]*models.OrderStep, error)
	orderstate.Store
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// SummaryStore keeps the last run summary outside the process.
type SummaryStore interface {
	SaveSummary(ctx context.Context, value []byte) error
}

type Poller struct {
	repo      Repository
	carrier   carrier.Client
	producer  Producer
	updater   *orderstate.Updater
	rl        RateLimiter
	metrics   metrics.ReconcilerMetrics
	summaries SummaryStore

	topic   string
	planner *Planner

	fetchTimeout       time.Duration
	maxErrors          int
	publishAttempts    int
	rateLimitPerMinute int64
	carrierRateLimits  map[string]int64

	now      func() time.Time
	newRunID func() string

	running   atomic.Bool
	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastRunUnixNano     atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalRuns           atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64

	lastMu      sync.Mutex
	lastError   string
	lastSummary *RunSummary
}

// New builds a poller. producer may be nil, in which case no notifications are sent.
func New(repo Repository, client carrier.Client, producer Producer, topic string) *Poller {
	now := func() time.Time { return time.Now().UTC() }
	return &Poller{
		repo:              repo,
		carrier:           client,
		producer:          producer,
		updater:           orderstate.New(repo),
		metrics:           metrics.NewNoOp(),
		topic:             topic,
		planner:           NewPlanner(DefaultPlannerConfig()),
		fetchTimeout:      30 * time.Second,
		maxErrors:         defaultMaxErrors,
		publishAttempts:   5,
		now:               now,
		newRunID:          uuid.NewString,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: now().UnixNano(),
	}
}

func (p *Poller) WithSettings(fetchTimeout time.Duration, maxErrors, publishAttempts int) *Poller {
	if fetchTimeout > 0 {
		p.fetchTimeout = fetchTimeout
	}
	if maxErrors > 0 {
		p.maxErrors = maxErrors
	}
	if publishAttempts > 0 {
		p.publishAttempts = publishAttempts
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg)
	return p
}

// WithRateLimits throttles tracking fetches per carrier and minute. perCarrier overrides the
// default for the carriers it names.
func (p *Poller) WithRateLimits(rl RateLimiter, defaultPerMinute int64, perCarrier map[string]int64) *Poller {
	p.rl = rl
	if defaultPerMinute > 0 {
		p.rateLimitPerMinute = defaultPerMinute
	}
	p.carrierRateLimits = perCarrier
	return p
}

func (p *Poller) WithMetrics(m metrics.ReconcilerMetrics) *Poller {
	if m != nil {
		p.metrics = m
	}
	return p
}

func (p *Poller) WithSummaryStore(s SummaryStore) *Poller {
	p.summaries = s
	return p
}

func (p *Poller) WithClock(now func() time.Time) *Poller {
	if now != nil {
		p.now = now
		p.updater.WithClock(now)
	}
	return p
}

// Trigger asks Run for a reconciliation (best-effort, non-blocking). A trigger arriving while a
// run is pending or active is dropped.
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(p.now().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time   `json:"startedAt"`
	LastRunAt      *time.Time  `json:"lastRunAt,omitempty"`
	LastTriggerAt  *time.Time  `json:"lastTriggerAt,omitempty"`
	Running        bool        `json:"running"`
	TotalRuns      int64       `json:"totalRuns"`
	TotalProcessed int64       `json:"totalProcessed"`
	TotalErrors    int64       `json:"totalErrors"`
	InFlight       int64       `json:"inFlight"`
	LastError      string      `json:"lastError,omitempty"`
	LastSummary    *RunSummary `json:"lastSummary,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		Running:        p.running.Load(),
		TotalRuns:      p.totalRuns.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalErrors:    p.totalErrors.Load(),
		InFlight:       p.inFlight.Load(),
	}
	if n := p.lastRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRunAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastMu.Lock()
	st.LastError = p.lastError
	if p.lastSummary != nil {
		s := *p.lastSummary
		st.LastSummary = &s
	}
	p.lastMu.Unlock()
	return st
}

// Run executes a reconciliation for every trigger until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.triggerCh:
			if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				slog.Error("reconciliation run", "error", err.Error())
			}
		}
	}
}

// RunOnce selects the eligible orders and reconciles them batch by batch. Only a failed selection
// is returned as an error; per-order failures end up in the summary. Cancelling ctx stops the run
// between batches and before each order.
func (p *Poller) RunOnce(ctx context.Context) (RunSummary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	started := p.now()
	p.lastRunUnixNano.Store(started.UnixNano())
	p.totalRuns.Add(1)
	sum := newRunSummary(p.newRunID(), started, p.maxErrors)

	orders, err := p.repo.ListEligibleOrders(ctx, p.planner.Query(started))
	if err != nil {
		err = errors.Wrap(err, "list eligible orders")
		p.setLastError(err)
		sum.finish(p.now())
		p.metrics.RecordRun(ctx, sum.Duration(), "error")
		return sum, err
	}
	sum.TotalOrders = len(orders)

	slog.Info("reconciliation run started", "run_id", sum.RunID, "orders", len(orders))

	pause := p.planner.Config().BatchPause
	for i, batch := range p.planner.Batches(orders) {
		if i > 0 && pause > 0 && !sleepCtx(ctx, pause) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		sum.Batches++
		p.runBatch(ctx, batch, &sum)
	}
	if ctx.Err() != nil {
		sum.Cancelled = true
	}

	sum.finish(p.now())
	p.finishRun(ctx, sum)
	return sum, nil
}

type fetchResult struct {
	info carrier.TrackingInfo
	err  error
}

func (p *Poller) runBatch(ctx context.Context, batch []*models.Order, sum *RunSummary) {
	results := make([]fetchResult, len(batch))

	// Tasks never return an error so one failed fetch cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(len(batch))
	for i, o := range batch {
		g.Go(func() error {
			p.inFlight.Add(1)
			defer p.inFlight.Add(-1)
			results[i].info, results[i].err = p.fetch(ctx, o)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range batch {
		if ctx.Err() != nil {
			return
		}
		sum.ProcessedOrders++
		p.totalProcessed.Add(1)

		if err := results[i].err; err != nil {
			p.fail(ctx, o, metrics.OutcomeFetchFailed, err, sum)
			continue
		}
		if err := p.processOrder(ctx, o, results[i].info, sum); err != nil {
			p.fail(ctx, o, metrics.OutcomePersistFailed, err, sum)
		}
	}
}

func (p *Poller) fail(ctx context.Context, o *models.Order, outcome string, err error, sum *RunSummary) {
	sum.recordError(o.ID, err)
	p.totalErrors.Add(1)
	p.setLastError(err)
	p.metrics.RecordOrder(ctx, o.CarrierName, outcome)
	slog.Error("process order", "order_id", o.ID, "tracking_number", o.TrackingNumber, "error", err.Error())
}

func (p *Poller) fetch(ctx context.Context, o *models.Order) (carrier.TrackingInfo, error) {
	p.throttle(ctx, o.CarrierRef)

	fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	info, err := p.carrier.GetTrackingInfo(fctx, o.CarrierRef, o.TrackingNumber)
	if err != nil {
		return carrier.TrackingInfo{}, fmt.Errorf("%w: %w", ErrTrackingFetch, err)
	}
	if !info.Success {
		msg := info.Error
		if msg == "" {
			msg = "unsuccessful response"
		}
		return carrier.TrackingInfo{}, errors.Wrap(ErrTrackingFetch, msg)
	}
	return info, nil
}

// throttle waits briefly when the carrier's minute budget is exhausted. Limiter errors only get
// logged; the fetch goes ahead.
func (p *Poller) throttle(ctx context.Context, carrierRef string) {
	if p.rl == nil {
		return
	}
	limit := p.rateLimitPerMinute
	if l, ok := p.carrierRateLimits[carrierRef]; ok && l > 0 {
		limit = l
	}
	if limit <= 0 {
		return
	}

	minuteKey := fmt.Sprintf("rl:carrier:%s:%s", carrierRef, p.now().Format("200601021504"))
	allowed, n, err := p.rl.Allow(ctx, minuteKey, limit, 70*time.Second)
	if err != nil {
		slog.Warn("rate limiter unavailable", "carrier", carrierRef, "error", err.Error())
		return
	}
	if !allowed {
		slog.Warn("rate limit exceeded", "carrier", carrierRef, "count", n)
		sleepCtx(ctx, 500*time.Millisecond)
	}
}

func (p *Poller) processOrder(ctx context.Context, o *models.Order, info carrier.TrackingInfo, sum *RunSummary) error {
	// Re-read the order; the candidate row may be stale by the time its fetch returned.
	current, err := p.repo.GetOrder(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	existing, err := p.repo.ListOrderSteps(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	rec := reconcile.Reconcile(o.ID, existing, info.Events)
	sum.DroppedEvents += rec.Dropped
	if rec.Dropped > 0 {
		slog.Warn("dropped events without timestamp", "order_id", o.ID, "count", rec.Dropped)
	}

	out, err := p.updater.Apply(ctx, orderstate.Input{
		Order:      current,
		Info:       info,
		Verdict:    evaluate(info),
		Reconciled: rec,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if out.StatusChanged {
		slog.Info("order status changed", "order_id", o.ID, "from", out.PreviousStatus, "to", out.NewStatus)
	}
	if n := len(out.InsertedSteps); n > 0 {
		sum.OrdersUpdated++
		sum.NewSteps += n
		p.metrics.RecordNewSteps(ctx, o.CarrierName, n)
	}
	if out.LossNewlySet {
		sum.Losses++
		p.metrics.RecordLoss(ctx, o.CarrierName, string(out.LossReason))
	}
	if out.Completion != nil {
		sum.recordCompletion(*out.Completion)
		p.metrics.RecordCompletion(ctx, string(*out.Completion))
		slog.Info("order completed", "order_id", o.ID, "completion_type", string(*out.Completion))
	}

	outcome := metrics.OutcomeUnchanged
	if out.StatusChanged || len(out.InsertedSteps) > 0 || out.LossNewlySet || out.Completion != nil {
		outcome = metrics.OutcomeUpdated
	}
	p.metrics.RecordOrder(ctx, o.CarrierName, outcome)

	if out.Notification != nil {
		p.notify(ctx, o.ID, out.Notification)
	}
	return nil
}

func evaluate(info carrier.TrackingInfo) sls.BatchVerdict {
	var current *sls.Snapshot
	if info.HasCurrentStatus() {
		current = &sls.Snapshot{Main: info.OrderStatus.Current, Sub: info.OrderStatus.SubStatus}
	}
	events := make([]sls.Observation, 0, len(info.Events))
	for _, ev := range info.Events {
		events = append(events, sls.Observation{
			Main:     ev.MainStatus(),
			Sub:      ev.SubStatus,
			Location: reconcile.NormalizeLocation(ev.Location),
		})
	}
	return sls.Evaluate(current, events)
}

// notify publishes best-effort: failures are logged and never fail the order.
func (p *Poller) notify(ctx context.Context, orderID uint64, msg any) {
	if p.producer == nil {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal notification", "order_id", orderID, "error", err.Error())
		return
	}

	key := []byte(strconv.FormatUint(orderID, 10))
	var pubErr error
	for i := 0; i < p.publishAttempts; i++ {
		if pubErr = p.producer.Publish(ctx, p.topic, key, b); pubErr == nil {
			return
		}
		if i == p.publishAttempts-1 || !sleepCtx(ctx, time.Duration(150*(i+1))*time.Millisecond) {
			break
		}
	}
	slog.Error("publish notification", "order_id", orderID, "topic", p.topic, "error", pubErr.Error())
}

func (p *Poller) finishRun(ctx context.Context, sum RunSummary) {
	status := "ok"
	if sum.Cancelled {
		status = "cancelled"
	}
	p.metrics.RecordRun(ctx, sum.Duration(), status)

	p.lastMu.Lock()
	p.lastSummary = &sum
	p.lastMu.Unlock()

	slog.Info("reconciliation run finished",
		"run_id", sum.RunID,
		"total", sum.TotalOrders,
		"processed", sum.ProcessedOrders,
		"batches", sum.Batches,
		"with_updates", sum.OrdersUpdated,
		"new_steps", sum.NewSteps,
		"completed", sum.Completed,
		"delivered", sum.Delivered,
		"sls", sum.Losses,
		"failed", sum.Failed,
		"cancelled", sum.Cancelled,
		"duration", sum.Duration().String(),
	)

	if p.summaries == nil {
		return
	}
	b, err := json.Marshal(sum)
	if err != nil {
		slog.Error("marshal run summary", "run_id", sum.RunID, "error", err.Error())
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.summaries.SaveSummary(sctx, b); err != nil {
		slog.Warn("save run summary", "run_id", sum.RunID, "error", err.Error())
	}
}

func (p *Poller) setLastError(err error) {
	p.lastMu.Lock()
	p.lastError = err.Error()
	p.lastMu.Unlock()
}

// sleepCtx reports false when ctx ended before d elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
