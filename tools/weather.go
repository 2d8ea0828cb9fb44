package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/registry"
)

const (
	WeatherID = "displayWeather"

	DefaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
)

// WeatherConfig configures the Open-Meteo backed weather tool.
type WeatherConfig struct {
	GeocodeURL  string
	ForecastURL string
	// RequestsPerSecond throttles outbound calls. Zero means unlimited.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Weather looks up current conditions for a place name.
type Weather struct {
	geocodeURL  string
	forecastURL string
	client      *http.Client
	limiter     *rate.Limiter
}

// NewWeather returns a weather tool using cfg, falling back to the public
// Open-Meteo endpoints.
func NewWeather(cfg WeatherConfig) *Weather {
	w := &Weather{
		geocodeURL:  cfg.GeocodeURL,
		forecastURL: cfg.ForecastURL,
		client:      cfg.HTTPClient,
		limiter:     rate.NewLimiter(rate.Inf, 1),
	}
	if w.geocodeURL == "" {
		w.geocodeURL = DefaultGeocodeURL
	}
	if w.forecastURL == "" {
		w.forecastURL = DefaultForecastURL
	}
	if w.client == nil {
		w.client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.RequestsPerSecond > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return w
}

// Definition describes the tool for the registry.
func (w *Weather) Definition() registry.Definition {
	return registry.Definition{
		ID:   WeatherID,
		Name: "Weather",
		Description: "Use this tool to get real-time weather information for any location worldwide. " +
			"Returns current temperature, weather conditions, humidity, wind speed, and feels-like temperature. " +
			"Call this whenever a user asks about weather, temperature, or current conditions in a city or location.",
		Icon:     "🌤️",
		Category: "utility",
		Parameters: registry.Schema{Fields: []registry.Field{{
			Name:        "location",
			Type:        registry.TypeString,
			Description: "The city name or location to get weather for (e.g., 'London', 'New York', 'Tokyo', 'Paris, France')",
			Required:    true,
		}}},
		Execute:  w.Execute,
		Parallel: true,
	}
}

// Coordinates is a geographic position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// WeatherReport is the tool output.
type WeatherReport struct {
	Location        string      `json:"location"`
	Coordinates     Coordinates `json:"coordinates"`
	Temperature     float64     `json:"temperature"`
	FeelsLike       float64     `json:"feelsLike"`
	TemperatureUnit string      `json:"temperatureUnit"`
	Humidity        float64     `json:"humidity"`
	WindSpeed       float64     `json:"windSpeed"`
	WindSpeedUnit   string      `json:"windSpeedUnit"`
	Weather         string      `json:"weather"`
	WeatherCode     int         `json:"weatherCode"`
	Timestamp       string      `json:"timestamp"`
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Time                string  `json:"time"`
		Temperature         float64 `json:"temperature_2m"`
		RelativeHumidity    float64 `json:"relative_humidity_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		WeatherCode         int     `json:"weather_code"`
		WindSpeed10M        float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

// Execute geocodes the location and fetches its current conditions. An
// unknown location is reported as a failure payload, not an error.
func (w *Weather) Execute(ctx context.Context, input map[string]any) (any, error) {
	location, _ := input["location"].(string)
	location = strings.TrimSpace(location)
	if location == "" {
		return chatcore.FailureOutput{Error: true, Message: "location is required"}, nil
	}

	var geo geocodeResponse
	q := url.Values{"name": {location}, "count": {"1"}, "language": {"en"}, "format": {"json"}}
	if err := w.getJSON(ctx, w.geocodeURL, q, &geo); err != nil {
		return nil, fmt.Errorf("failed to geocode location: %w", err)
	}
	if len(geo.Results) == 0 {
		return chatcore.FailureOutput{Error: true, Message: fmt.Sprintf("Location %q not found", location)}, nil
	}
	place := geo.Results[0]

	var fc forecastResponse
	q = url.Values{
		"latitude":  {strconv.FormatFloat(place.Latitude, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(place.Longitude, 'f', -1, 64)},
		"current":   {"temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,wind_speed_10m"},
		"timezone":  {"auto"},
	}
	if err := w.getJSON(ctx, w.forecastURL, q, &fc); err != nil {
		return nil, fmt.Errorf("failed to fetch weather data: %w", err)
	}

	name := place.Name
	if place.Country != "" {
		name += ", " + place.Country
	}
	return WeatherReport{
		Location:        name,
		Coordinates:     Coordinates{Latitude: place.Latitude, Longitude: place.Longitude},
		Temperature:     fc.Current.Temperature,
		FeelsLike:       fc.Current.ApparentTemperature,
		TemperatureUnit: "°C",
		Humidity:        fc.Current.RelativeHumidity,
		WindSpeed:       fc.Current.WindSpeed10M,
		WindSpeedUnit:   "km/h",
		Weather:         DescribeWeatherCode(fc.Current.WeatherCode),
		WeatherCode:     fc.Current.WeatherCode,
		Timestamp:       fc.Current.Time,
	}, nil
}

func (w *Weather) getJSON(ctx context.Context, base string, q url.Values, dst any) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// DescribeWeatherCode maps a WMO weather code to a description.
func DescribeWeatherCode(code int) string {
	if d, ok := weatherCodes[code]; ok {
		return d
	}
	return "Unknown"
}
