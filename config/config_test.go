package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
RPCAddress = ":9090"
DataBackend = "boltdb"
RPCRateLimit = 10

[oracle]
Endpoint = "http://oracle.local/prices"
APIKey = "secret"

[collateral]
LiquidatorAddress = "fy1qqqsyqcyq5rqwzqfpg9scrgwpugpzysn2n2vvn6"
CollateralDenom = "uatom"
CounterDenom = "uusdc"
SyntheticSymbol = "fyusdc"
LiquidationThresholdBps = 8000
LiquidationPenaltyBps = 1000
RedemptionDeadline = 2000000
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.RPCAddress)
	require.Equal(t, BackendBoltDB, cfg.DataBackend)
	require.Equal(t, 10, cfg.RPCRateLimit)
	require.Equal(t, "http://oracle.local/prices", cfg.Oracle.Endpoint)
	require.Equal(t, "uatom", cfg.Collateral.CollateralDenom)
	require.EqualValues(t, 2000000, cfg.Collateral.RedemptionDeadline)
	// Untouched fields pick up defaults.
	require.Equal(t, "./fylend-data", cfg.DataDir)
	require.EqualValues(t, 1<<20, cfg.MaxRequestBytes)
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, BackendLevelDB, cfg.DataBackend)

	// The default file lands on disk and round-trips.
	_, err = os.Stat(path)
	require.NoError(t, err)
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, reloaded.RPCAddress)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
DataBackend = "cassandra"

[oracle]
Endpoint = "http://oracle.local/prices"
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
