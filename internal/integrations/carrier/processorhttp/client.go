package processorhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/TrackRecon/internal/integrations/carrier"
	"github.com/BearBump/TrackRecon/internal/models"
	"github.com/pkg/errors"
)

const actionGetTrackingInfo = "GET_TRACKING_INFO"

// Client calls the tracking processor, which wraps the 17track API.
type Client struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
}

func New(endpoint, apiKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = "http://localhost:9000/v1/tracking-info"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpc:    &http.Client{Timeout: timeout},
	}
}

type request struct {
	TrackingID  string `json:"trackingId"`
	CarrierCode string `json:"carrierCode"`
	Action      string `json:"action"`
}

func (c *Client) GetTrackingInfo(ctx context.Context, carrierRef, trackingNumber string) (carrier.TrackingInfo, error) {
	body, err := json.Marshal(request{
		TrackingID:  trackingNumber,
		CarrierCode: carrierRef,
		Action:      actionGetTrackingInfo,
	})
	if err != nil {
		return carrier.TrackingInfo{}, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return carrier.TrackingInfo{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return carrier.TrackingInfo{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return carrier.TrackingInfo{}, fmt.Errorf("tracking processor rate limit (429)")
	}
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return carrier.TrackingInfo{}, fmt.Errorf("tracking processor http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var rb response
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return carrier.TrackingInfo{}, errors.Wrap(err, "decode")
	}
	if err := rb.Validate(); err != nil {
		return carrier.TrackingInfo{}, errors.Wrap(err, "invalid tracking processor response")
	}

	return rb.toTrackingInfo(), nil
}

func (rb response) toTrackingInfo() carrier.TrackingInfo {
	info := carrier.TrackingInfo{
		Success: *rb.Success,
		Error:   rb.Error,
	}

	if s := rb.OrderStatus; s != nil {
		info.OrderStatus = &carrier.OrderStatus{
			Current:           s.Current,
			SubStatus:         s.SubStatus,
			IsDelivered:       s.IsDelivered,
			EstimatedDelivery: parseOptionalTime(s.EstimatedDelivery),
			ConfirmedDelivery: parseOptionalTime(s.ConfirmedDelivery),
		}
	}

	for _, e := range rb.Events {
		ev := carrier.Event{
			Timestamp:   parseTime(e.Timestamp),
			Status:      e.Status,
			SubStatus:   e.SubStatus,
			Stage:       e.Stage,
			Location:    e.Location,
			Description: e.Description,
		}
		switch c := e.Coordinates; {
		case c.inRange():
			ev.Coordinates = &models.Coordinates{Latitude: *c.Latitude, Longitude: *c.Longitude}
		case c != nil && c.Latitude != nil && c.Longitude != nil:
			slog.Warn("dropping out-of-range coordinates",
				"tracking_id", rb.TrackingID, "latitude", *c.Latitude, "longitude", *c.Longitude)
		}
		info.Events = append(info.Events, ev)
	}
	return info
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// parseTime returns the zero time for values it cannot read; such events are dropped later.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseOptionalTime(s string) *time.Time {
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}
