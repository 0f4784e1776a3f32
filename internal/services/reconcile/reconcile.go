// Package reconcile merges persisted order steps with freshly fetched carrier events.
//
// Only events whose identity key is unknown become new steps. A new step's number is its 1-based
// position in the chronologically merged history; steps that are already stored keep their
// numbers, so an event that is older than stored history (backfill) gets a number that collides
// with or precedes existing ones instead of shifting them.
package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/BearBump/TrackRecon/internal/integrations/carrier"
	"github.com/BearBump/TrackRecon/internal/models"
	"github.com/BearBump/TrackRecon/internal/services/sls"
	"github.com/BearBump/TrackRecon/internal/services/statusmap"
)

// TimePrecision is the precision identity keys are compared at. Stored timestamps are truncated
// to it as well so keys survive a round trip through the database.
const TimePrecision = time.Millisecond

const UnknownLocation = "Unknown Location"

type Result struct {
	NewSteps     []*models.OrderStep
	HasNewEvents bool

	// Dropped counts events without a usable timestamp.
	Dropped int
	// Duplicates counts incoming events that matched a stored step or an earlier event of the
	// same batch.
	Duplicates int
}

type key struct {
	ts       int64
	location string
	status   string
	sub      string
}

func stepKey(s *models.OrderStep) key {
	sub := ""
	if s.SubStatus != nil {
		sub = *s.SubStatus
	}
	return key{
		ts:       s.Timestamp.UTC().Truncate(TimePrecision).UnixNano(),
		location: NormalizeLocation(s.Location),
		status:   s.Status,
		sub:      sub,
	}
}

// NormalizeLocation applies the same default the steps are stored with.
func NormalizeLocation(loc string) string {
	if loc == "" {
		return UnknownLocation
	}
	return loc
}

type entry struct {
	ts       time.Time
	existing bool
	event    carrier.Event
	res      statusmap.Resolution
}

// Reconcile returns the steps to insert for orderID. existing must be the order's stored steps;
// their order does not matter.
func Reconcile(orderID uint64, existing []*models.OrderStep, incoming []carrier.Event) Result {
	var out Result

	seen := make(map[key]struct{}, len(existing)+len(incoming))
	merged := make([]entry, 0, len(existing)+len(incoming))
	for _, s := range existing {
		seen[stepKey(s)] = struct{}{}
		merged = append(merged, entry{ts: s.Timestamp.UTC().Truncate(TimePrecision), existing: true})
	}
	// Stored steps come back ordered by timestamp; sort anyway so the stable sort below never
	// reorders equal-time stored steps behind new ones.
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].ts.Before(merged[j].ts) })

	added := 0
	for _, ev := range incoming {
		if ev.Timestamp.IsZero() {
			out.Dropped++
			continue
		}
		res := statusmap.Map(ev.MainStatus(), ev.SubStatus)
		k := key{
			ts:       ev.Timestamp.UTC().Truncate(TimePrecision).UnixNano(),
			location: NormalizeLocation(ev.Location),
			status:   string(res.Status),
			sub:      ev.SubStatus,
		}
		if _, dup := seen[k]; dup {
			out.Duplicates++
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, entry{ts: ev.Timestamp.UTC().Truncate(TimePrecision), event: ev, res: res})
		added++
	}

	if added == 0 {
		return out
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].ts.Before(merged[j].ts) })

	for i, e := range merged {
		if e.existing {
			continue
		}
		out.NewSteps = append(out.NewSteps, buildStep(orderID, i+1, e))
	}
	out.HasNewEvents = len(out.NewSteps) > 0
	return out
}

func buildStep(orderID uint64, seq int, e entry) *models.OrderStep {
	ev := e.event
	status := string(e.res.Status)
	location := NormalizeLocation(ev.Location)

	var sub *string
	if ev.SubStatus != "" {
		s := ev.SubStatus
		sub = &s
	}

	return &models.OrderStep{
		OrderID:     orderID,
		Step:        seq,
		Status:      status,
		SubStatus:   sub,
		Description: Describe(ev, status, location),
		Location:    location,
		Coordinates: ev.Coordinates,
		Timestamp:   e.ts,
	}
}

// Describe builds the enriched step description.
func Describe(ev carrier.Event, status, location string) string {
	d := ev.Description
	if d == "" {
		d = fmt.Sprintf("%s - %s", status, location)
	}
	if ev.SubStatus != "" {
		d += fmt.Sprintf(" [%s]", ev.SubStatus)
	}
	if v := sls.Classify(ev.MainStatus(), ev.SubStatus); v.IsLoss {
		d += fmt.Sprintf(" [SLS: %s]", v.Reason)
	}
	return d
}
