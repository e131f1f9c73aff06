package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmesh/broker/broker"
	"github.com/toolmesh/broker/registry"
)

// newNWSServer serves canned NWS responses for alerts and forecasts.
// alertFeatures is raw JSON for the alerts features array.
func newNWSServer(t *testing.T, alertFeatures string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/alerts/active/area/", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "toolmesh-broker")
		fmt.Fprintf(w, `{"features":%s}`, alertFeatures)
	})
	mux.HandleFunc("/points/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"properties":{"forecast":"%s/gridpoints/OKX/33,35/forecast"}}`, server.URL)
	})
	mux.HandleFunc("/gridpoints/OKX/33,35/forecast", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties":{"periods":[
			{"name":"Tonight","temperature":62,"temperatureUnit":"F","windSpeed":"5 mph","windDirection":"SW","detailedForecast":"Partly cloudy."},
			{"name":"Tomorrow","temperature":75,"temperatureUnit":"F","windSpeed":"10 mph","windDirection":"W","detailedForecast":"Sunny."}
		]}}`)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGetAlertsNone(t *testing.T) {
	server := newNWSServer(t, `[]`)
	client := NewClient(WithBaseURL(server.URL))

	got, err := client.GetAlerts(context.Background(), "NY")
	require.NoError(t, err)
	assert.Equal(t, "No active alerts for this state.", got)
}

func TestGetAlertsActive(t *testing.T) {
	server := newNWSServer(t, `[{"properties":{
		"event":"Flood Warning",
		"areaDesc":"Kings County",
		"severity":"Moderate",
		"description":"River flooding expected.",
		"instruction":"Avoid low-lying areas."
	}}]`)
	client := NewClient(WithBaseURL(server.URL))

	got, err := client.GetAlerts(context.Background(), "ny")
	require.NoError(t, err)
	assert.Contains(t, got, "Event: Flood Warning")
	assert.Contains(t, got, "Area: Kings County")
	assert.Contains(t, got, "Instructions: Avoid low-lying areas.")
}

func TestGetAlertsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	got, err := client.GetAlerts(context.Background(), "NY")
	require.NoError(t, err, "upstream failure must not be a handler error")
	assert.Equal(t, "Unable to fetch alerts or no alerts found.", got)
}

func TestGetForecast(t *testing.T) {
	server := newNWSServer(t, `[]`)
	client := NewClient(WithBaseURL(server.URL))

	got, err := client.GetForecast(context.Background(), 40.7128, -74.0060)
	require.NoError(t, err)
	assert.Contains(t, got, "Tonight:")
	assert.Contains(t, got, "Temperature: 62°F")
	assert.Contains(t, got, "Wind: 10 mph W")
}

func TestGetForecastUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	got, err := client.GetForecast(context.Background(), 40.7128, -74.0060)
	require.NoError(t, err)
	assert.Equal(t, "Unable to fetch forecast data for this location.", got)
}

func TestGetForecastPeriodLimit(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/points/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"properties":{"forecast":"%s/forecast"}}`, server.URL)
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		var periods []string
		for i := 0; i < 10; i++ {
			periods = append(periods, fmt.Sprintf(
				`{"name":"Period %d","temperature":70,"temperatureUnit":"F","windSpeed":"5 mph","windDirection":"N","detailedForecast":"Clear."}`, i))
		}
		fmt.Fprintf(w, `{"properties":{"periods":[%s]}}`, strings.Join(periods, ","))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	got, err := client.GetForecast(context.Background(), 40.7128, -74.0060)
	require.NoError(t, err)
	assert.Contains(t, got, "Period 4")
	assert.NotContains(t, got, "Period 5")
}

func TestToolsRegistration(t *testing.T) {
	server := newNWSServer(t, `[]`)
	client := NewClient(WithBaseURL(server.URL))

	reg := registry.New(nil)
	require.NoError(t, reg.RegisterAll(Tools(client)...))

	assert.Equal(t, []string{"get_alerts", "get_forecast"}, reg.Names())

	alerts, ok := reg.Get("get_alerts")
	require.True(t, ok)
	assert.Contains(t, alerts.InputSchema().Required, "state")
}

func TestToolsThroughBroker(t *testing.T) {
	server := newNWSServer(t, `[]`)
	client := NewClient(WithBaseURL(server.URL))

	reg := registry.New(nil)
	require.NoError(t, reg.RegisterAll(Tools(client)...))

	b, err := broker.New(reg)
	require.NoError(t, err)

	t.Run("alerts scenario", func(t *testing.T) {
		res := b.Invoke(context.Background(), broker.Request{
			CorrelationID: "c1",
			Tool:          "get_alerts",
			Arguments:     map[string]any{"state": "NY"},
		})
		require.True(t, res.OK, "error: %s", res.ErrorMessage)
		assert.Equal(t, "c1", res.CorrelationID)
		assert.Equal(t, "No active alerts for this state.", res.Payload)
	})

	t.Run("integer coordinates", func(t *testing.T) {
		// Schema validation accepts Go integer values for number fields,
		// so the handler must too.
		res := b.Invoke(context.Background(), broker.Request{
			CorrelationID: "c4",
			Tool:          "get_forecast",
			Arguments:     map[string]any{"latitude": 40, "longitude": -74},
		})
		require.True(t, res.OK, "error: %s", res.ErrorMessage)
		assert.Contains(t, res.Payload, "Tonight:")
	})

	t.Run("latitude out of range", func(t *testing.T) {
		res := b.Invoke(context.Background(), broker.Request{
			CorrelationID: "c2",
			Tool:          "get_forecast",
			Arguments:     map[string]any{"latitude": 140.0, "longitude": -74.0},
		})
		require.False(t, res.OK)
		assert.Contains(t, res.ErrorKind, "INVALID_ARGUMENTS")
	})

	t.Run("state length enforced", func(t *testing.T) {
		res := b.Invoke(context.Background(), broker.Request{
			CorrelationID: "c3",
			Tool:          "get_alerts",
			Arguments:     map[string]any{"state": "New York"},
		})
		require.False(t, res.OK)
		assert.Equal(t, "INVALID_ARGUMENTS", res.ErrorKind)
	})
}
