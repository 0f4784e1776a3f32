package messages

import "time"

const (
	EventTypeOrderEvent = "ORDER_EVENT"
	TypeCarrierUpdate   = "CARRIER_UPDATE"
)

// OrderEvent is published when a reconciliation stored new steps for an order.
type OrderEvent struct {
	EventType string        `json:"eventType"`
	Data      CarrierUpdate `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
}

type CarrierUpdate struct {
	Type           string `json:"type"`
	OrderID        uint64 `json:"orderId"`
	TrackingNumber string `json:"trackingNumber"`

	// The three slices are parallel: index i describes the same new step.
	EventTimestamps   []time.Time `json:"eventTimestamps"`
	OrderNewStepsIDs  []uint64    `json:"orderNewStepsIds"`
	OrderNewLocations []string    `json:"orderNewLocations"`
}

// NewCarrierUpdate builds the ORDER_EVENT envelope for a set of new steps.
func NewCarrierUpdate(orderID uint64, trackingNumber string, stepIDs []uint64, locations []string, eventTimes []time.Time, now time.Time) OrderEvent {
	return OrderEvent{
		EventType: EventTypeOrderEvent,
		Data: CarrierUpdate{
			Type:              TypeCarrierUpdate,
			OrderID:           orderID,
			TrackingNumber:    trackingNumber,
			EventTimestamps:   eventTimes,
			OrderNewStepsIDs:  stepIDs,
			OrderNewLocations: locations,
		},
		Timestamp: now.UTC(),
	}
}
