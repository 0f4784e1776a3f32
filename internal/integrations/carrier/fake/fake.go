package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/BearBump/TrackRecon/internal/integrations/carrier"
	"github.com/BearBump/TrackRecon/internal/models"
)

type stage struct {
	main, sub, location, description string
	coords                           *models.Coordinates
}

// journey is the route every fake shipment walks along.
var journey = []stage{
	{"InfoReceived", "InfoReceived", "Shenzhen", "Shipment information received", nil},
	{"InTransit", "InTransit_PickedUp", "Shenzhen", "Picked up by carrier", &models.Coordinates{Latitude: 22.54, Longitude: 114.06}},
	{"InTransit", "InTransit_Departure", "Hong Kong", "Departed from origin facility", &models.Coordinates{Latitude: 22.31, Longitude: 113.91}},
	{"InTransit", "InTransit_Arrival", "Leipzig", "Arrived at destination hub", &models.Coordinates{Latitude: 51.42, Longitude: 12.24}},
	{"InTransit", "InTransit_CustomsProcessing", "Leipzig", "Customs clearance started", nil},
	{"InTransit", "InTransit_CustomsReleased", "Leipzig", "Released from customs", nil},
	{"OutForDelivery", "OutForDelivery_Other", "", "Out for delivery", nil},
	{"Delivered", "Delivered_Other", "Berlin", "Delivered to recipient", &models.Coordinates{Latitude: 52.52, Longitude: 13.40}},
}

// Client returns deterministic 17track-shaped histories for local runs. The history of a
// shipment grows with time: one more stage every Step since a start derived from the tracking
// number. About one shipment in twenty is lost in transit and one in twenty-five returns an
// unsuccessful response.
type Client struct {
	Step time.Duration
	now  func() time.Time
}

func New() *Client {
	return &Client{Step: 6 * time.Hour, now: func() time.Time { return time.Now().UTC() }}
}

func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

func (c *Client) GetTrackingInfo(ctx context.Context, carrierRef, trackingNumber string) (carrier.TrackingInfo, error) {
	if err := ctx.Err(); err != nil {
		return carrier.TrackingInfo{}, err
	}

	v := hash(carrierRef, trackingNumber)
	if v%25 == 0 {
		return carrier.TrackingInfo{Success: false, Error: fmt.Sprintf("tracking number %s not registered", trackingNumber)}, nil
	}

	now := c.now()
	start := now.Add(-time.Duration(v%96) * time.Hour).Truncate(time.Minute)
	lost := v%20 == 0

	var events []carrier.Event
	for i, st := range journey {
		ts := start.Add(time.Duration(i) * c.Step)
		if ts.After(now) {
			break
		}
		if lost && i == 3 {
			events = append(events, carrier.Event{
				Timestamp:   ts,
				Status:      "Exception",
				SubStatus:   "Exception_Lost",
				Location:    st.location,
				Description: "Parcel reported lost",
			})
			break
		}
		events = append(events, carrier.Event{
			Timestamp:   ts,
			Status:      st.main,
			SubStatus:   st.sub,
			Location:    st.location,
			Description: st.description,
			Coordinates: st.coords,
		})
	}
	if len(events) == 0 {
		return carrier.TrackingInfo{Success: true}, nil
	}

	last := events[len(events)-1]
	status := &carrier.OrderStatus{
		Current:     last.Status,
		SubStatus:   last.SubStatus,
		IsDelivered: last.Status == "Delivered",
	}
	eta := start.Add(time.Duration(len(journey)-1) * c.Step)
	status.EstimatedDelivery = &eta
	if status.IsDelivered {
		ts := last.Timestamp
		status.ConfirmedDelivery = &ts
	}

	return carrier.TrackingInfo{Success: true, OrderStatus: status, Events: events}, nil
}

func hash(parts ...string) uint32 {
	h := fnv.New32a()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte("|"))
		}
		_, _ = h.Write([]byte(p))
	}
	return h.Sum32()
}
