package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/BearBump/TrackRecon/config"
	"github.com/BearBump/TrackRecon/internal/broker/kafka"
	"github.com/BearBump/TrackRecon/internal/broker/pubsub"
	"github.com/BearBump/TrackRecon/internal/cache/localrate"
	"github.com/BearBump/TrackRecon/internal/cache/rediscache"
	"github.com/BearBump/TrackRecon/internal/integrations/carrier"
	"github.com/BearBump/TrackRecon/internal/integrations/carrier/fake"
	"github.com/BearBump/TrackRecon/internal/integrations/carrier/processorhttp"
	"github.com/BearBump/TrackRecon/internal/metrics"
	"github.com/BearBump/TrackRecon/internal/services/poller"
	"github.com/BearBump/TrackRecon/internal/storage/pgorders"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKafkaTopic       = "order.events"
	defaultMetricsNamespace = "trackrecon"
)

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

type reconcilerFactories struct {
	newStorage       func(ctx context.Context, cfg *config.Config) (repo poller.Repository, ready func(context.Context) error, closeFn func(), err error)
	newProducer      func(cfg *config.Config) (producer poller.Producer, topic string, closeFn func(), err error)
	newRedis         func(cfg *config.Config) *redis.Client
	newCarrierClient func(cfg *config.Config) carrier.Client
}

func defaultReconcilerFactories() reconcilerFactories {
	return reconcilerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (poller.Repository, func(context.Context) error, func(), error) {
			st, err := pgorders.New(ctx, cfg.Database.DSN())
			if err != nil {
				return nil, nil, nil, err
			}
			return st, st.Ping, st.Close, nil
		},
		newProducer: func(cfg *config.Config) (poller.Producer, string, func(), error) {
			switch cfg.Notifications.Driver {
			case config.NotifyNone:
				return nil, "", nil, nil
			case config.NotifyPubSub:
				if cfg.Notifications.TopicURL == "" {
					return nil, "", nil, errors.New("notifications.topic_url is required for the pubsub driver")
				}
				pub := pubsub.NewPublisher()
				closeFn := func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := pub.Close(ctx); err != nil {
						slog.Warn("close pubsub publisher", "error", err.Error())
					}
				}
				return pub, cfg.Notifications.TopicURL, closeFn, nil
			case config.NotifyKafka, "":
				topic := cfg.Kafka.OrderEventsTopicName
				if topic == "" {
					topic = defaultKafkaTopic
				}
				p := kafka.NewProducer(cfg.Kafka.Brokers(), 0)
				closeFn := func() {
					if err := p.Close(); err != nil {
						slog.Warn("close kafka producer", "error", err.Error())
					}
				}
				return p, topic, closeFn, nil
			default:
				return nil, "", nil, errors.Errorf("unknown notifications driver %q", cfg.Notifications.Driver)
			}
		},
		newRedis: func(cfg *config.Config) *redis.Client {
			addr := cfg.Redis.Addr()
			if addr == "" {
				return nil
			}
			return rediscache.NewClient(addr, cfg.Redis.Password, cfg.Redis.DB)
		},
		newCarrierClient: func(cfg *config.Config) carrier.Client {
			if cfg.Carrier.Mode == config.CarrierProcessor {
				timeout := time.Duration(cfg.Carrier.TimeoutSeconds) * time.Second
				return processorhttp.New(cfg.Carrier.ProcessorURL, cfg.Carrier.APIKey, timeout)
			}
			return fake.New()
		},
	}
}

// reconciler is the wired poller plus everything that must be closed or checked with it.
type reconciler struct {
	poller  *poller.Poller
	metrics *metrics.Provider
	ready   []readinessCheck
	closers []func()

	// sharedLastRun reads the last summary written by any reconciler process; nil without Redis.
	sharedLastRun func(ctx context.Context) ([]byte, bool, error)
}

func (r *reconciler) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func buildReconciler(ctx context.Context, cfg *config.Config, f reconcilerFactories) (*reconciler, error) {
	r := &reconciler{}

	repo, ready, closeFn, err := f.newStorage(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init storage")
	}
	if closeFn != nil {
		r.closers = append(r.closers, closeFn)
	}
	if ready != nil {
		r.ready = append(r.ready, readinessCheck{name: "postgres", check: ready})
	}

	producer, topic, closeProducer, err := f.newProducer(cfg)
	if err != nil {
		r.Close()
		return nil, errors.Wrap(err, "init notifications")
	}
	if closeProducer != nil {
		r.closers = append(r.closers, closeProducer)
	}

	rc := cfg.Reconciler
	p := poller.New(repo, f.newCarrierClient(cfg), producer, topic).
		WithSettings(
			time.Duration(rc.FetchTimeoutSeconds)*time.Second,
			rc.MaxErrors,
			cfg.Notifications.PublishAttempts,
		).
		WithPlanner(poller.PlannerConfig{
			Quiescence:    time.Duration(rc.QuiescenceMinutes) * time.Minute,
			MaxCandidates: rc.MaxCandidates,
			BatchSize:     rc.BatchSize,
			BatchPause:    time.Duration(rc.BatchPauseMillis) * time.Millisecond,
		})

	perCarrier := make(map[string]int64, len(cfg.Carrier.CarrierRateLimits))
	for ref, limit := range cfg.Carrier.CarrierRateLimits {
		perCarrier[ref] = int64(limit)
	}
	perMinute := int64(cfg.Carrier.RateLimitPerMinute)
	if perMinute <= 0 {
		perMinute = 120
	}

	if rdb := f.newRedis(cfg); rdb != nil {
		store := rediscache.New(rdb, time.Duration(cfg.Redis.SummaryTTLHours)*time.Hour)
		p.WithRateLimits(rediscache.NewRateLimiter(rdb), perMinute, perCarrier).
			WithSummaryStore(store)
		r.ready = append(r.ready, readinessCheck{name: "redis", check: store.Ping})
		r.sharedLastRun = store.LastSummary
		r.closers = append(r.closers, func() { _ = rdb.Close() })
	} else {
		p.WithRateLimits(localrate.New(), perMinute, perCarrier)
	}

	if cfg.Metrics.Enabled {
		provider, err := metrics.NewProvider()
		if err != nil {
			r.Close()
			return nil, err
		}
		ns := cfg.Metrics.Namespace
		if ns == "" {
			ns = defaultMetricsNamespace
		}
		m, err := metrics.NewReconcilerMetrics(provider.MeterProvider(), ns)
		if err != nil {
			_ = provider.Shutdown(ctx)
			r.Close()
			return nil, err
		}
		p.WithMetrics(m)
		r.metrics = provider
		r.closers = append(r.closers, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = provider.Shutdown(sctx)
		})
	}

	r.poller = p
	return r, nil
}

// RunReconcilerOnce executes one run and returns its summary, the way a scheduled job would.
func RunReconcilerOnce(ctx context.Context, cfg *config.Config, f reconcilerFactories) (poller.RunSummary, error) {
	r, err := buildReconciler(ctx, cfg, f)
	if err != nil {
		return poller.RunSummary{}, err
	}
	defer r.Close()

	if secs := cfg.Reconciler.RunTimeoutSeconds; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	return r.poller.RunOnce(ctx)
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
