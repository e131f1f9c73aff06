// Package weather provides reference tools backed by the National Weather
// Service API (api.weather.gov).
//
// The handlers follow the documented convention for handler-level domain
// failures: an unreachable or failing upstream produces a descriptive
// string inside a successful result, not a handler error. Requesters see
// "Unable to fetch..." text rather than a failed invocation.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.weather.gov"
	userAgent      = "toolmesh-broker/1.0 (weather tools)"
	requestTimeout = 15 * time.Second

	// maxForecastPeriods limits how many periods a forecast answer carries.
	maxForecastPeriods = 5
)

// Client calls the National Weather Service API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the NWS endpoint, mainly for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a National Weather Service API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET against the NWS API and decodes the JSON response.
func (c *Client) get(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

type alertsResponse struct {
	Features []struct {
		Properties struct {
			Event       string `json:"event"`
			AreaDesc    string `json:"areaDesc"`
			Severity    string `json:"severity"`
			Description string `json:"description"`
			Instruction string `json:"instruction"`
		} `json:"properties"`
	} `json:"features"`
}

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []struct {
			Name             string `json:"name"`
			Temperature      int    `json:"temperature"`
			TemperatureUnit  string `json:"temperatureUnit"`
			WindSpeed        string `json:"windSpeed"`
			WindDirection    string `json:"windDirection"`
			DetailedForecast string `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

// GetAlerts returns active weather alerts for a two-letter US state code
// as formatted text. Upstream failures yield the descriptive fallback
// string with a nil error.
func (c *Client) GetAlerts(ctx context.Context, state string) (string, error) {
	url := fmt.Sprintf("%s/alerts/active/area/%s", c.baseURL, strings.ToUpper(state))

	var alerts alertsResponse
	if err := c.get(ctx, url, &alerts); err != nil {
		return "Unable to fetch alerts or no alerts found.", nil
	}

	if len(alerts.Features) == 0 {
		return "No active alerts for this state.", nil
	}

	sections := make([]string, 0, len(alerts.Features))
	for _, f := range alerts.Features {
		p := f.Properties
		sections = append(sections, fmt.Sprintf(
			"Event: %s\nArea: %s\nSeverity: %s\nDescription: %s\nInstructions: %s",
			p.Event, p.AreaDesc, p.Severity, p.Description, p.Instruction,
		))
	}

	return strings.Join(sections, "\n---\n"), nil
}

// GetForecast returns the forecast for a coordinate pair as formatted
// text. The NWS API requires two calls: the points endpoint maps the
// coordinates to a gridded forecast URL, which is then fetched. Upstream
// failures yield the descriptive fallback string with a nil error.
func (c *Client) GetForecast(ctx context.Context, latitude, longitude float64) (string, error) {
	pointsURL := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, latitude, longitude)

	var points pointsResponse
	if err := c.get(ctx, pointsURL, &points); err != nil {
		return "Unable to fetch forecast data for this location.", nil
	}
	if points.Properties.Forecast == "" {
		return "Unable to fetch forecast data for this location.", nil
	}

	var forecast forecastResponse
	if err := c.get(ctx, points.Properties.Forecast, &forecast); err != nil {
		return "Unable to fetch detailed forecast.", nil
	}

	periods := forecast.Properties.Periods
	if len(periods) > maxForecastPeriods {
		periods = periods[:maxForecastPeriods]
	}
	if len(periods) == 0 {
		return "Unable to fetch detailed forecast.", nil
	}

	sections := make([]string, 0, len(periods))
	for _, p := range periods {
		sections = append(sections, fmt.Sprintf(
			"%s:\nTemperature: %d°%s\nWind: %s %s\nForecast: %s",
			p.Name, p.Temperature, p.TemperatureUnit, p.WindSpeed, p.WindDirection, p.DetailedForecast,
		))
	}

	return strings.Join(sections, "\n---\n"), nil
}
