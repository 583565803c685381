package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.DatabaseURI)
	assert.Equal(t, "ptes", cfg.DatabaseName)
	assert.Equal(t, 100, cfg.NumberOfLocations)
	assert.Equal(t, 500, cfg.NumberOfRoutes)
	assert.Equal(t, 1000, cfg.NumberOfJourneys)
	assert.Equal(t, 113.8, cfg.BoundingBox.MinLongitude)
	assert.Equal(t, 114.4, cfg.BoundingBox.MaxLongitude)
	assert.Equal(t, 22.25, cfg.BoundingBox.MinLatitude)
	assert.Equal(t, 22.55, cfg.BoundingBox.MaxLatitude)
	assert.Equal(t, StopSampleCap, cfg.StopSamplePolicy)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yml")
	yml := `
database_uri: sqlite://fixture.db
number_of_locations: 10
number_of_routes: 5
stage_timeout: 45s
bounding_box:
  min_longitude: 2.0
  max_longitude: 2.3
  min_latitude: 41.3
  max_latitude: 41.5
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	t.Setenv("NUMBER_OF_ROUTES", "7")
	t.Setenv("SEED", "42")
	t.Setenv("CONNECT_TIMEOUT", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite://fixture.db", cfg.DatabaseURI)
	assert.Equal(t, 10, cfg.NumberOfLocations)
	assert.Equal(t, 7, cfg.NumberOfRoutes, "environment should win over the file")
	assert.Equal(t, 1000, cfg.NumberOfJourneys, "unset keys keep their defaults")
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 45*time.Second, cfg.StageTimeout)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 2.3, cfg.BoundingBox.MaxLongitude)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"inverted longitude", map[string]string{"MIN_LONGITUDE": "114.5", "MAX_LONGITUDE": "114.0"}},
		{"latitude out of range", map[string]string{"MAX_LATITUDE": "95"}},
		{"negative routes", map[string]string{"NUMBER_OF_ROUTES": "-1"}},
		{"inverted stop range", map[string]string{"MIN_STOPS_PER_ROUTE": "8", "MAX_STOPS_PER_ROUTE": "4"}},
		{"unknown policy", map[string]string{"STOP_SAMPLE_POLICY": "replace"}},
		{"unknown log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"bad amqp url", map[string]string{"NOTIFY_AMQP_URL": "not a url"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yml")
	require.NoError(t, os.WriteFile(path, []byte("invalid: yaml: content: [[["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestBoundingBoxContains(t *testing.T) {
	box := Default().BoundingBox

	assert.True(t, box.Contains(114.0, 22.4))
	assert.True(t, box.Contains(box.MinLongitude, box.MaxLatitude), "edges are inside")
	assert.False(t, box.Contains(113.79, 22.4))
	assert.False(t, box.Contains(114.0, 22.56))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_TIMEOUT", "1m30s")
	assert.Equal(t, 90*time.Second, getEnvDuration("X_TIMEOUT", time.Second))

	t.Setenv("X_TIMEOUT", "garbage")
	assert.Equal(t, time.Second, getEnvDuration("X_TIMEOUT", time.Second))
}
