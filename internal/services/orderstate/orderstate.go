package orderstate

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/TrackRecon/internal/broker/messages"
	"github.com/BearBump/TrackRecon/internal/integrations/carrier"
	"github.com/BearBump/TrackRecon/internal/models"
	"github.com/BearBump/TrackRecon/internal/services/reconcile"
	"github.com/BearBump/TrackRecon/internal/services/sls"
	"github.com/BearBump/TrackRecon/internal/services/statusmap"
	"github.com/pkg/errors"
)

type Store interface {
	// ApplyOrderUpdate writes the order fields and the new steps in one transaction and returns
	// the steps that were actually inserted, with ids.
	ApplyOrderUpdate(ctx context.Context, upd models.OrderUpdate) ([]*models.OrderStep, error)
	IncrementCarrierLosses(ctx context.Context, carrierID uint64) error
}

type Updater struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Updater {
	return &Updater{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (u *Updater) WithClock(now func() time.Time) *Updater {
	if now != nil {
		u.now = now
	}
	return u
}

type Input struct {
	// Order is the state read right before reconciliation.
	Order      *models.Order
	Info       carrier.TrackingInfo
	Verdict    sls.BatchVerdict
	Reconciled reconcile.Result
}

type Outcome struct {
	PreviousStatus string
	NewStatus      string
	StatusChanged  bool

	LossNewlySet bool
	LossReason   sls.Reason

	// Completion is the completion type this run set, nil when none was set.
	Completion *models.CompletionType

	InsertedSteps []*models.OrderStep
	Notification  *messages.OrderEvent
}

// BuildUpdate computes the order mutation without touching storage.
func BuildUpdate(in Input, now time.Time) (models.OrderUpdate, Outcome) {
	o := in.Order
	upd := models.OrderUpdate{
		OrderID:   o.ID,
		LossFlag:  o.LossFlag || in.Verdict.IsLoss,
		NewSteps:  in.Reconciled.NewSteps,
		UpdatedAt: now,
	}
	out := Outcome{PreviousStatus: o.Status, NewStatus: o.Status}

	var completion *models.CompletionType
	if in.Info.HasCurrentStatus() {
		cur := in.Info.OrderStatus
		res := statusmap.Map(cur.Current, cur.SubStatus)
		upd.SetStatus = true
		upd.Status = string(res.Status)
		if cur.SubStatus != "" {
			sub := cur.SubStatus
			upd.SubStatus = &sub
		}
		out.NewStatus = upd.Status
		out.StatusChanged = o.Status != upd.Status
		completion = res.Completion
	}
	if completion == nil && in.Verdict.IsLoss {
		c := models.CompletionException
		completion = &c
	}
	if o.CompletionType == nil && completion != nil {
		upd.CompletionType = completion
		out.Completion = completion
	}

	if !o.LossFlag && in.Verdict.IsLoss {
		reason := string(in.Verdict.Reason)
		details := in.Verdict.ExceptionDetails
		upd.LossReason = &reason
		upd.ExceptionDetails = &details
		out.LossNewlySet = true
		out.LossReason = in.Verdict.Reason
	}

	if in.Info.OrderStatus != nil {
		upd.CarrierEstimatedDeliveryAt = in.Info.OrderStatus.EstimatedDelivery
	}
	if out.Completion != nil && *out.Completion == models.CompletionDelivered {
		confirmed := now
		if in.Info.OrderStatus != nil && in.Info.OrderStatus.ConfirmedDelivery != nil {
			confirmed = *in.Info.OrderStatus.ConfirmedDelivery
		}
		upd.CarrierConfirmedDeliveryAt = &confirmed
	}

	return upd, out
}

// Apply persists one reconciliation. The carrier loss counter is bumped afterwards and outside
// the order transaction; a failure there is logged and does not fail the order.
func (u *Updater) Apply(ctx context.Context, in Input) (Outcome, error) {
	now := u.now()
	upd, out := BuildUpdate(in, now)

	inserted, err := u.store.ApplyOrderUpdate(ctx, upd)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "apply order update %d", in.Order.ID)
	}
	out.InsertedSteps = inserted

	if out.LossNewlySet {
		slog.Warn("shipment loss detected",
			"order_id", in.Order.ID, "reason", string(out.LossReason),
			"details", in.Verdict.ExceptionDetails, "from_events", in.Verdict.FromEvents)
		if in.Order.CarrierID != nil {
			if err := u.store.IncrementCarrierLosses(ctx, *in.Order.CarrierID); err != nil {
				slog.Error("increment carrier losses", "order_id", in.Order.ID, "carrier_id", *in.Order.CarrierID, "error", err.Error())
			}
		}
	}

	if len(inserted) > 0 {
		ids := make([]uint64, 0, len(inserted))
		locs := make([]string, 0, len(inserted))
		times := make([]time.Time, 0, len(inserted))
		for _, s := range inserted {
			ids = append(ids, s.ID)
			locs = append(locs, s.Location)
			times = append(times, s.Timestamp.UTC())
		}
		msg := messages.NewCarrierUpdate(in.Order.ID, in.Order.TrackingNumber, ids, locs, times, now)
		out.Notification = &msg
	}

	return out, nil
}
