package processorhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_GetTrackingInfo_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/tracking-info", r.URL.Path)
		require.Equal(t, "k", r.Header.Get("X-Api-Key"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, map[string]string{
			"trackingId":  "LX123456789CN",
			"carrierCode": "190271",
			"action":      "GET_TRACKING_INFO",
		}, req)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "success": true,
  "trackingId": "LX123456789CN",
  "orderStatus": {"current": "InTransit", "subStatus": "InTransit_Arrival", "isDelivered": false, "estimatedDelivery": "2026-03-05T00:00:00Z"},
  "events": [
    {"timestamp": "2026-03-01T10:15:30.250Z", "status": "InTransit", "subStatus": "InTransit_Arrival", "location": "Leipzig", "description": "Arrived", "coordinates": {"latitude": 51.34, "longitude": 12.37}},
    {"timestamp": "2026-02-28 08:00:00", "status": "InfoReceived", "location": "", "description": "", "stage": "InfoReceived"},
    {"timestamp": "yesterday", "status": "InTransit", "location": "?", "description": "?"}
  ]
}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1/tracking-info", "k", time.Second)
	info, err := c.GetTrackingInfo(context.Background(), "190271", "LX123456789CN")
	require.NoError(t, err)
	require.True(t, info.Success)
	require.True(t, info.HasCurrentStatus())
	require.Equal(t, "InTransit_Arrival", info.OrderStatus.SubStatus)
	require.NotNil(t, info.OrderStatus.EstimatedDelivery)
	require.Nil(t, info.OrderStatus.ConfirmedDelivery)

	require.Len(t, info.Events, 3)
	require.Equal(t, time.Date(2026, 3, 1, 10, 15, 30, 250_000_000, time.UTC), info.Events[0].Timestamp)
	require.NotNil(t, info.Events[0].Coordinates)
	require.InDelta(t, 12.37, info.Events[0].Coordinates.Longitude, 1e-9)
	require.Equal(t, time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC), info.Events[1].Timestamp)
	require.Equal(t, "InfoReceived", info.Events[1].MainStatus())
	require.Nil(t, info.Events[1].Coordinates)
	require.True(t, info.Events[2].Timestamp.IsZero())
}

func TestClient_GetTrackingInfo_Unsuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "trackingId": "X", "error": "tracking number not registered"}`))
	}))
	defer srv.Close()

	info, err := New(srv.URL, "", time.Second).GetTrackingInfo(context.Background(), "1", "X")
	require.NoError(t, err)
	require.False(t, info.Success)
	require.Equal(t, "tracking number not registered", info.Error)
}

func TestClient_GetTrackingInfo_InvalidPayload(t *testing.T) {
	cases := map[string]string{
		"missing success": `{"trackingId": "X"}`,
		"event status":    `{"success": true, "events": [{"timestamp": "2026-03-01T10:00:00Z", "status": ""}]}`,
		"not json":        `<html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, "", time.Second).GetTrackingInfo(context.Background(), "1", "X")
			require.Error(t, err)
		})
	}
}

func TestClient_GetTrackingInfo_OutOfRangeCoordinatesOnlyDropCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
  "success": true,
  "trackingId": "X",
  "events": [
    {"timestamp": "2026-03-01T10:00:00Z", "status": "InTransit", "location": "Leipzig", "coordinates": {"latitude": 51.34, "longitude": 12.37}},
    {"timestamp": "2026-03-01T12:00:00Z", "status": "Exception", "subStatus": "Exception_Lost", "location": "Halle", "coordinates": {"latitude": 95.0, "longitude": 10.0}},
    {"timestamp": "2026-03-01T13:00:00Z", "status": "InTransit", "location": "Halle", "coordinates": {"latitude": 51.0, "longitude": 181.0}}
  ]
}`))
	}))
	defer srv.Close()

	info, err := New(srv.URL, "", time.Second).GetTrackingInfo(context.Background(), "1", "X")
	require.NoError(t, err)
	require.True(t, info.Success)
	require.Len(t, info.Events, 3)
	require.NotNil(t, info.Events[0].Coordinates)
	require.Nil(t, info.Events[1].Coordinates)
	require.Equal(t, "Exception_Lost", info.Events[1].SubStatus)
	require.Nil(t, info.Events[2].Coordinates)
}

func TestClient_GetTrackingInfo_HTTPErrors(t *testing.T) {
	for _, code := range []int{http.StatusTooManyRequests, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		_, err := New(srv.URL, "", time.Second).GetTrackingInfo(context.Background(), "1", "X")
		require.Error(t, err)
		srv.Close()
	}
}
