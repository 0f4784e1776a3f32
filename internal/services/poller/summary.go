package poller

import (
	"fmt"
	"time"

	"github.com/BearBump/TrackRecon/internal/models"
)

const defaultMaxErrors = 50

// RunSummary accumulates the counters of one run. It is a value owned by the run loop; nothing
// else mutates it.
type RunSummary struct {
	RunID      string     `json:"runId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Cancelled  bool       `json:"cancelled"`

	TotalOrders     int `json:"totalOrders"`
	Batches         int `json:"batches"`
	ProcessedOrders int `json:"processedOrders"`
	OrdersUpdated   int `json:"ordersWithUpdates"`
	NewSteps        int `json:"newSteps"`
	Completed       int `json:"completedOrders"`
	Delivered       int `json:"deliveredOrders"`
	Losses          int `json:"slsOrders"`
	Failed          int `json:"failedOrders"`
	DroppedEvents   int `json:"droppedEvents"`

	CompletedByType map[models.CompletionType]int `json:"completedByType"`

	Errors          []string `json:"errors"`
	ErrorsTruncated int      `json:"errorsTruncated,omitempty"`

	maxErrors int
}

func newRunSummary(runID string, startedAt time.Time, maxErrors int) RunSummary {
	if maxErrors <= 0 {
		maxErrors = defaultMaxErrors
	}
	return RunSummary{
		RunID:           runID,
		StartedAt:       startedAt,
		CompletedByType: make(map[models.CompletionType]int),
		Errors:          []string{},
		maxErrors:       maxErrors,
	}
}

func (s *RunSummary) recordError(orderID uint64, err error) {
	s.Failed++
	if len(s.Errors) >= s.maxErrors {
		s.ErrorsTruncated++
		return
	}
	s.Errors = append(s.Errors, fmt.Sprintf("order %d: %s", orderID, err.Error()))
}

func (s *RunSummary) recordCompletion(c models.CompletionType) {
	s.Completed++
	s.CompletedByType[c]++
	if c == models.CompletionDelivered {
		s.Delivered++
	}
}

func (s *RunSummary) finish(at time.Time) {
	s.FinishedAt = &at
}

// Duration is zero until the run finished.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
