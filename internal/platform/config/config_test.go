package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registrar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
runner:
  batch_size: 25
  drain_interval: 1m
privacy:
  max_sources_per_publisher: 10
  information_gain:
    navigation: 9.5
kafka:
  brokers: ["kafka-1:9092"]
`), 0o600))

	t.Setenv("REGISTRAR_BATCH_SIZE", "7")
	t.Setenv("REGISTRAR_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("REGISTRAR_DEBUG_KEY_ALLOWLIST", "E1,E2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 7, cfg.Runner.BatchSize, "env wins over file")
	assert.Equal(t, time.Minute, cfg.Runner.DrainInterval)
	assert.Equal(t, 10, cfg.Privacy.MaxSourcesPerPublisher)
	assert.Equal(t, 9.5, cfg.Privacy.InformationGain.Navigation)
	assert.Equal(t, 6.5, cfg.Privacy.InformationGain.Event, "untouched keys keep defaults")
	assert.Equal(t, 1024, cfg.Privacy.MaxTriggersPerDestination)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"E1", "E2"}, cfg.Fetcher.DebugKeyAllowlist)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Runner, cfg.Runner)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("REGISTRAR_DRAIN_INTERVAL", "soon")
	_, err := Load("")
	require.ErrorContains(t, err, "REGISTRAR_DRAIN_INTERVAL")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Runner.BatchSize = 0
	cfg.Privacy.MaxTriggersPerDestination = -1
	cfg.Server.JWTSigningKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "runner.batch_size")
	assert.ErrorContains(t, err, "privacy.max_triggers_per_destination")
	assert.ErrorContains(t, err, "jwt_signing_key")
}

func TestValidateFetchTimeoutBelowTxTimeout(t *testing.T) {
	tests := []struct {
		name    string
		fetch   time.Duration
		tx      time.Duration
		wantErr string
	}{
		{name: "shorter", fetch: 10 * time.Second, tx: 30 * time.Second},
		{name: "equal", fetch: 30 * time.Second, tx: 30 * time.Second, wantErr: "must be shorter than runner.tx_timeout"},
		{name: "longer", fetch: time.Minute, tx: 30 * time.Second, wantErr: "must be shorter than runner.tx_timeout"},
		{name: "zero tx", fetch: time.Second, tx: 0, wantErr: "runner.tx_timeout must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Fetcher.Timeout = tt.fetch
			cfg.Runner.TxTimeout = tt.tx
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadTxTimeoutFromEnv(t *testing.T) {
	t.Setenv("REGISTRAR_TX_TIMEOUT", "45s")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Runner.TxTimeout)
}
