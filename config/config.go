package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"fylend/native/collateral"
)

// Backend names accepted for the DataBackend field.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBoltDB  = "boltdb"
)

// Oracle configures the upstream price feed consulted by the lending engine.
type Oracle struct {
	Endpoint string `toml:"Endpoint"`
	APIKey   string `toml:"APIKey"`
}

type Config struct {
	RPCAddress        string `toml:"RPCAddress"`
	DataDir           string `toml:"DataDir"`
	DataBackend       string `toml:"DataBackend"`
	Environment       string `toml:"Environment"`
	RPCRateLimit      int    `toml:"RPCRateLimit"`
	LiquidatorAPIKey  string `toml:"LiquidatorAPIKey"`
	MaxRequestBytes   int64  `toml:"MaxRequestBytes"`
	ReadHeaderTimeout int64  `toml:"ReadHeaderTimeout"`

	Oracle     Oracle            `toml:"oracle"`
	Collateral collateral.Config `toml:"collateral"`
}

// Load reads the configuration from the given path. A missing file yields a
// default configuration written back to that path so operators have a
// template to edit.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./fylend-data"
	}
	if strings.TrimSpace(c.DataBackend) == "" {
		c.DataBackend = BackendLevelDB
	}
	if c.RPCRateLimit <= 0 {
		c.RPCRateLimit = 50
	}
	if c.MaxRequestBytes <= 0 {
		c.MaxRequestBytes = 1 << 20
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 5
	}
}

// Validate checks the structural fields. Collateral parameters are validated
// separately when they are resolved into genesis params.
func (c *Config) Validate() error {
	switch c.DataBackend {
	case BackendMemory, BackendLevelDB, BackendBoltDB:
	default:
		return fmt.Errorf("config: unknown data backend %q", c.DataBackend)
	}
	if strings.TrimSpace(c.Oracle.Endpoint) == "" {
		return fmt.Errorf("config: oracle endpoint required")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  ":8080",
		DataDir:     "./fylend-data",
		DataBackend: BackendLevelDB,
		Oracle: Oracle{
			Endpoint: "http://localhost:9555/prices",
		},
		Collateral: collateral.Config{
			CollateralDenom:         "uatom",
			CounterDenom:            "uusdc",
			SyntheticSymbol:         "fyusdc",
			LiquidationThresholdBps: 8000,
			LiquidationPenaltyBps:   1000,
		},
	}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
