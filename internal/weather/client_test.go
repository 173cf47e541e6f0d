package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerpulse/backend/internal/logger"
)

func TestFetchSuccess(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{
			"main": {"temp": 32.4, "feels_like": 36.1, "humidity": 64},
			"weather": [{"description": "clear sky"}],
			"name": "Mumbai"
		}`))
	}))
	defer server.Close()

	t.Setenv("OPENWEATHER_API_KEY", "test-key")
	t.Setenv("OPENWEATHER_API_URL", server.URL)

	got, err := NewClient(logger.NewNop()).Fetch(context.Background(), "Mumbai")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 32.4, got.Temperature)
	assert.Equal(t, 36.1, got.FeelsLike)
	assert.Equal(t, 64, got.Humidity)
	assert.Equal(t, "clear sky", got.Description)
	assert.Equal(t, "Mumbai", got.Location)

	assert.Contains(t, gotQuery, "q=Mumbai")
	assert.Contains(t, gotQuery, "units=metric")
	assert.Contains(t, gotQuery, "appid=test-key")
}

func TestFetchUnconfigured(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")

	got, err := NewClient(logger.NewNop()).Fetch(context.Background(), "Mumbai")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFetchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "city not found", http.StatusNotFound)
	}))
	defer server.Close()

	t.Setenv("OPENWEATHER_API_KEY", "test-key")
	t.Setenv("OPENWEATHER_API_URL", server.URL)

	_, err := NewClient(logger.NewNop()).Fetch(context.Background(), "Nowhere")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
