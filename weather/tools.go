package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/toolmesh/broker/schema"
	"github.com/toolmesh/broker/tool"
)

// Tools builds the weather tool set against the given client. A nil
// client uses the public NWS API.
func Tools(client *Client) []tool.Tool {
	if client == nil {
		client = NewClient()
	}
	return []tool.Tool{
		alertsTool(client),
		forecastTool(client),
	}
}

func alertsTool(client *Client) tool.Tool {
	t, err := tool.New(tool.NewConfig().
		SetName("get_alerts").
		SetDescription("Get active weather alerts for a US state").
		SetTags([]string{"weather"}).
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"state": withLength(schema.StringWithDesc("Two-letter US state code (e.g. NY, CA)"), 2, 2),
		}, "state")).
		SetTimeouts(tool.TimeoutConfig{Default: 20 * time.Second}).
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			state, ok := args["state"].(string)
			if !ok {
				return nil, fmt.Errorf("state must be a string")
			}
			return client.GetAlerts(ctx, state)
		}))
	if err != nil {
		panic(err)
	}
	return t
}

func forecastTool(client *Client) tool.Tool {
	t, err := tool.New(tool.NewConfig().
		SetName("get_forecast").
		SetDescription("Get the weather forecast for a coordinate pair").
		SetTags([]string{"weather"}).
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"latitude":  withBounds(schema.NumberWithDesc("Latitude in decimal degrees"), -90, 90),
			"longitude": withBounds(schema.NumberWithDesc("Longitude in decimal degrees"), -180, 180),
		}, "latitude", "longitude")).
		SetTimeouts(tool.TimeoutConfig{Default: 20 * time.Second}).
		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
			latitude, ok := schema.AsNumber(args["latitude"])
			if !ok {
				return nil, fmt.Errorf("latitude must be a number")
			}
			longitude, ok := schema.AsNumber(args["longitude"])
			if !ok {
				return nil, fmt.Errorf("longitude must be a number")
			}
			return client.GetForecast(ctx, latitude, longitude)
		}))
	if err != nil {
		panic(err)
	}
	return t
}

func withBounds(s schema.JSON, min, max float64) schema.JSON {
	s.Minimum = &min
	s.Maximum = &max
	return s
}

func withLength(s schema.JSON, min, max int) schema.JSON {
	s.MinLength = &min
	s.MaxLength = &max
	return s
}
