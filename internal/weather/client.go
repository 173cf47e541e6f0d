// Package weather fetches current conditions from the OpenWeather API.
// The lookup is optional: a missing key or any failure means "no weather
// data" and must never fail the caller.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/powerpulse/backend/internal/logger"
	"github.com/powerpulse/backend/internal/models"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(log *logger.Logger) *Client {
	baseURL := os.Getenv("OPENWEATHER_API_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     os.Getenv("OPENWEATHER_API_KEY"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Fetch returns current conditions for a free-text location. A nil result
// with nil error means the lookup is not configured.
func (c *Client) Fetch(ctx context.Context, location string) (*models.Weather, error) {
	if c.apiKey == "" {
		c.log.Warn("weather.not_configured")
		return nil, nil
	}

	query := url.Values{}
	query.Set("q", location)
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var payload struct {
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %v", err)
	}

	w := &models.Weather{
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		Humidity:    payload.Main.Humidity,
		Location:    payload.Name,
	}
	if len(payload.Weather) > 0 {
		w.Description = payload.Weather[0].Description
	}
	return w, nil
}
