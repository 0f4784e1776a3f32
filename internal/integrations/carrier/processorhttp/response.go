package processorhttp

import (
	validation "github.com/jellydator/validation"
)

type response struct {
	Success     *bool          `json:"success"`
	TrackingID  string         `json:"trackingId"`
	OrderStatus *orderStatus   `json:"orderStatus,omitempty"`
	Events      []responseItem `json:"events,omitempty"`
	Error       string         `json:"error,omitempty"`
}

type orderStatus struct {
	Current           string `json:"current"`
	SubStatus         string `json:"subStatus"`
	IsDelivered       bool   `json:"isDelivered"`
	EstimatedDelivery string `json:"estimatedDelivery"`
	ConfirmedDelivery string `json:"confirmedDelivery"`
}

type responseItem struct {
	Timestamp   string       `json:"timestamp"`
	Status      string       `json:"status"`
	SubStatus   string       `json:"subStatus"`
	Location    string       `json:"location"`
	Description string       `json:"description"`
	Stage       string       `json:"stage"`
	Coordinates *coordinates `json:"coordinates,omitempty"`
}

type coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (r response) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Success, validation.NotNil.Error("success is required")),
		validation.Field(&r.OrderStatus),
		validation.Field(&r.Events),
	)
}

func (s orderStatus) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Current, validation.Length(0, 64)),
		validation.Field(&s.SubStatus, validation.Length(0, 64)),
	)
}

// An event with an unreadable timestamp is kept here and dropped by reconciliation; a missing
// status means the payload is not a tracking event at all.
func (e responseItem) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Status, validation.Required.Error("event status is required"), validation.Length(1, 64)),
		validation.Field(&e.SubStatus, validation.Length(0, 64)),
	)
}

// inRange reports whether both coordinates are present and on the globe. Other coordinates are
// dropped from their event instead of failing the response.
func (c *coordinates) inRange() bool {
	if c == nil || c.Latitude == nil || c.Longitude == nil {
		return false
	}
	return *c.Latitude >= -90 && *c.Latitude <= 90 && *c.Longitude >= -180 && *c.Longitude <= 180
}
