package models

import "time"

// CompletionType says why an order left active tracking.
type CompletionType string

const (
	CompletionDelivered CompletionType = "DELIVERED"
	CompletionReturned  CompletionType = "RETURNED"
	CompletionExpired   CompletionType = "EXPIRED"
	CompletionException CompletionType = "EXCEPTION"
)

type Order struct {
	ID             uint64
	TrackingNumber string
	CarrierID      *uint64
	CarrierRef     string
	CarrierName    string

	Status         string
	SubStatus      *string
	CompletionType *CompletionType

	// SLS: shipment loss status. Only ever goes false -> true.
	LossFlag         bool
	LossReason       *string
	ExceptionDetails *string

	StepCount int

	ManufacturerCreatedAt           *time.Time
	ManufacturerEstimatedDeliveryAt *time.Time
	ManufacturerConfirmedDeliveryAt *time.Time
	CarrierCreatedAt                *time.Time
	CarrierEstimatedDeliveryAt      *time.Time
	CarrierConfirmedDeliveryAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type OrderStep struct {
	ID          uint64
	OrderID     uint64
	Step        int
	Status      string
	SubStatus   *string
	Description string
	Location    string
	Coordinates *Coordinates
	Timestamp   time.Time
	CreatedAt   time.Time
}

// EligibilityQuery selects orders that are due for reconciliation.
type EligibilityQuery struct {
	ActiveStatuses []string
	UpdatedBefore  time.Time
	Limit          int
}

// OrderUpdate is everything one reconciliation writes for one order, applied in a single
// transaction.
type OrderUpdate struct {
	OrderID uint64

	// Status/SubStatus are written only when SetStatus is true.
	SetStatus bool
	Status    string
	SubStatus *string

	LossFlag         bool
	LossReason       *string
	ExceptionDetails *string

	// CompletionType is written only when non-nil; callers never pass a value for an order that
	// already has one.
	CompletionType *CompletionType

	CarrierEstimatedDeliveryAt *time.Time
	CarrierConfirmedDeliveryAt *time.Time

	NewSteps []*OrderStep

	UpdatedAt time.Time
}
