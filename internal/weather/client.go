package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"agriguard/internal/config"
	"agriguard/internal/models"
)

// Reading is one point-in-time observation fetched from the provider.
type Reading struct {
	Timestamp   int64   `json:"dt"`
	Temperature float64 `json:"temp"`
	Rainfall    float64 `json:"rain"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// Fetcher is the weather provider boundary consumed by the automation loop.
type Fetcher interface {
	FetchLatest(ctx context.Context, latitude, longitude float64) (*Reading, []byte, error)
}

// Client fetches current conditions from the OpenWeatherMap One Call API.
// Fetch failures are transient: the loop retries with backoff and skips the
// cycle, they never reach the ledger.
type Client struct {
	cfg        config.WeatherConfig
	httpClient *http.Client
}

func NewClient(cfg config.WeatherConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
	}
}

type oneCallResponse struct {
	Current struct {
		Dt        int64   `json:"dt"`
		Temp      float64 `json:"temp"`
		Humidity  float64 `json:"humidity"`
		WindSpeed float64 `json:"wind_speed"`
		Rain      struct {
			OneHour float64 `json:"1h"`
		} `json:"rain"`
	} `json:"current"`
}

// FetchLatest returns the parsed reading plus the raw provider payload, which
// the loop anchors byte-for-byte in durable storage.
func (c *Client) FetchLatest(ctx context.Context, latitude, longitude float64) (*Reading, []byte, error) {
	if c.cfg.APIKey == "" {
		return nil, nil, &models.TransientError{Op: "weather fetch", Err: fmt.Errorf("API key not configured")}
	}

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(latitude, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(longitude, 'f', 6, 64))
	query.Set("appid", c.cfg.APIKey)
	query.Set("units", "metric")
	query.Set("exclude", "minutely,hourly,daily,alerts")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &models.TransientError{Op: "weather fetch", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &models.TransientError{Op: "weather fetch", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, &models.TransientError{
			Op:  "weather fetch",
			Err: fmt.Errorf("provider returned status %d", resp.StatusCode),
		}
	}

	var parsed oneCallResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, nil, &models.TransientError{Op: "weather parse", Err: err}
	}

	reading := &Reading{
		Timestamp:   parsed.Current.Dt,
		Temperature: parsed.Current.Temp,
		Rainfall:    parsed.Current.Rain.OneHour,
		Humidity:    parsed.Current.Humidity,
		WindSpeed:   parsed.Current.WindSpeed,
	}
	return reading, body, nil
}
