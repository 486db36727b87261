package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"agriguard/internal/config"
	"agriguard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.WeatherConfig {
	return config.WeatherConfig{APIKey: "test-key", BaseURL: baseURL}
}

func TestFetchLatest_ParsesReadingAndReturnsRawBody(t *testing.T) {
	payload := `{"current":{"dt":1700000000,"temp":45.2,"humidity":60,"wind_speed":3.4,"rain":{"1h":12.5}}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	reading, raw, err := client.FetchLatest(context.Background(), 21.03, 105.85)

	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), reading.Timestamp)
	assert.Equal(t, 45.2, reading.Temperature)
	assert.Equal(t, 12.5, reading.Rainfall)
	assert.Equal(t, payload, string(raw), "raw body must round-trip untouched for anchoring")
}

func TestFetchLatest_ProviderErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, _, err := client.FetchLatest(context.Background(), 21.03, 105.85)

	var transient *models.TransientError
	require.ErrorAs(t, err, &transient)
}

func TestFetchLatest_MissingAPIKey(t *testing.T) {
	client := NewClient(config.WeatherConfig{BaseURL: "http://localhost"})

	_, _, err := client.FetchLatest(context.Background(), 21.03, 105.85)

	var transient *models.TransientError
	require.ErrorAs(t, err, &transient)
}
