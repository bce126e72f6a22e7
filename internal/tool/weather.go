package tool

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"regenie/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const defaultWeatherEndpoint = "https://api.open-meteo.com/v1/forecast"

// WeatherTool reports current conditions from the Open-Meteo forecast API.
type WeatherTool struct {
	client   *resty.Client
	endpoint string
}

func NewWeatherTool(endpoint string) *WeatherTool {
	if endpoint == "" {
		endpoint = defaultWeatherEndpoint
	}
	return &WeatherTool{
		client:   resty.New().SetTimeout(15 * time.Second),
		endpoint: endpoint,
	}
}

func (t *WeatherTool) Name() string        { return "get_weather" }
func (t *WeatherTool) Description() string { return "Get the current weather at a location" }
func (t *WeatherTool) Parameters() jsonschema.Definition {
	return ToolParameters(
		map[string]Param{
			"latitude":  {Type: jsonschema.Number, Description: "Latitude of the location"},
			"longitude": {Type: jsonschema.Number, Description: "Longitude of the location"},
			"city":      {Type: jsonschema.String, Description: "City name, echoed back in the result"},
		},
		[]string{"latitude", "longitude", "city"},
	)
}

// WeatherReport is the result handed back to the model.
type WeatherReport struct {
	Temperature float64 `json:"temperature"`
	WeatherCode int     `json:"weatherCode"`
	Humidity    float64 `json:"humidity"`
	City        string  `json:"city"`
}

type openMeteoResponse struct {
	Current *struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weathercode"`
		Humidity    float64 `json:"relativehumidity_2m"`
	} `json:"current"`
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]any, status domain.StatusFunc) (any, error) {
	lat, okLat := ArgsFloat(args, "latitude")
	lon, okLon := ArgsFloat(args, "longitude")
	if !okLat || !okLon {
		return nil, fmt.Errorf("latitude and longitude are required numbers")
	}
	city := ArgsString(args, "city")

	status.Emit(ctx, fmt.Sprintf("is getting weather for %s...", city))

	var out openMeteoResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":  strconv.FormatFloat(lat, 'f', -1, 64),
			"longitude": strconv.FormatFloat(lon, 'f', -1, 64),
			"current":   "temperature_2m,weathercode,relativehumidity_2m",
			"timezone":  "auto",
		}).
		SetResult(&out).
		Get(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("weather API returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	if out.Current == nil {
		return nil, fmt.Errorf("weather API response has no current conditions")
	}

	return WeatherReport{
		Temperature: out.Current.Temperature,
		WeatherCode: out.Current.WeatherCode,
		Humidity:    out.Current.Humidity,
		City:        city,
	}, nil
}
