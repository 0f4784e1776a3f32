package poller

import (
	"time"

	"github.com/BearBump/TrackRecon/internal/models"
	"github.com/BearBump/TrackRecon/internal/services/statusmap"
)

type PlannerConfig struct {
	Quiescence    time.Duration // default: 3 hours
	MaxCandidates int           // default: 500
	BatchSize     int           // default: 50
	BatchPause    time.Duration // default: 2 seconds, negative disables the pause
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Quiescence:    3 * time.Hour,
		MaxCandidates: 500,
		BatchSize:     50,
		BatchPause:    2 * time.Second,
	}
}

// Planner decides which orders a run looks at and how they are split into batches.
type Planner struct {
	cfg    PlannerConfig
	active []string
}

func NewPlanner(cfg PlannerConfig) *Planner {
	def := DefaultPlannerConfig()
	if cfg.Quiescence <= 0 {
		cfg.Quiescence = def.Quiescence
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = def.MaxCandidates
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchPause == 0 {
		cfg.BatchPause = def.BatchPause
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	return &Planner{cfg: cfg, active: statusmap.ActiveStatuses()}
}

func (p *Planner) Config() PlannerConfig { return p.cfg }

func (p *Planner) Query(now time.Time) models.EligibilityQuery {
	return models.EligibilityQuery{
		ActiveStatuses: p.active,
		UpdatedBefore:  now.Add(-p.cfg.Quiescence),
		Limit:          p.cfg.MaxCandidates,
	}
}

// Batches splits orders into consecutive chunks of at most BatchSize. It only slices and never
// copies the orders.
func (p *Planner) Batches(orders []*models.Order) [][]*models.Order {
	if len(orders) == 0 {
		return nil
	}
	size := p.cfg.BatchSize
	out := make([][]*models.Order, 0, (len(orders)+size-1)/size)
	for start := 0; start < len(orders); start += size {
		end := start + size
		if end > len(orders) {
			end = len(orders)
		}
		out = append(out, orders[start:end])
	}
	return out
}
