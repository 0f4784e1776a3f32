package carrier

import (
	"context"
	"time"

	"github.com/BearBump/TrackRecon/internal/models"
)

// OrderStatus is the carrier's view of the latest shipment state.
type OrderStatus struct {
	Current           string
	SubStatus         string
	IsDelivered       bool
	EstimatedDelivery *time.Time
	ConfirmedDelivery *time.Time
}

// Event is one raw checkpoint as reported by the carrier. A zero Timestamp means the carrier did
// not send a usable one.
type Event struct {
	Timestamp   time.Time
	Status      string
	SubStatus   string
	Stage       string
	Location    string
	Description string
	Coordinates *models.Coordinates
}

// MainStatus is the status used for mapping: stage wins when the processor sent one.
func (e Event) MainStatus() string {
	if e.Stage != "" {
		return e.Stage
	}
	return e.Status
}

// TrackingInfo is the normalized tracking-processor result for one order.
type TrackingInfo struct {
	Success     bool
	OrderStatus *OrderStatus
	Events      []Event
	Error       string
}

// HasCurrentStatus reports whether the processor sent a latest status at all.
func (t TrackingInfo) HasCurrentStatus() bool {
	return t.OrderStatus != nil && t.OrderStatus.Current != ""
}

type Client interface {
	GetTrackingInfo(ctx context.Context, carrierRef, trackingNumber string) (TrackingInfo, error)
}
