package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  fleet_events_topic_name: "fleet.events"
redis:
  host: "localhost"
  port: 6379
fleetbox:
  http_addr: ":8080"
  kafka_consumer_group: "fleet-api"
  vehicle_state_ttl_seconds: 600
  route_distance_km: 500
  rate_limit_per_minute: 120
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "fleet.events", cfg.Kafka.FleetEventsTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.FleetBox.HTTPAddr)
	require.Equal(t, 500.0, cfg.FleetBox.RouteDistanceKm)
	require.Equal(t, 120, cfg.FleetBox.RateLimitPerMinute)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/cfg.yaml")
	require.Error(t, err)
}
