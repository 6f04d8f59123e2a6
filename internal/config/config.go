// Package config loads the deployment configuration from the environment,
// an optional .env file and an optional contradeploy.toml project file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/mod/semver"
)

// UndefinedParam is substituted for required string settings that are absent.
// A config carrying it loads fine and fails later, when the value is used.
const UndefinedParam = "Parameter not defined"

// Environment variables read by the loader.
const (
	EnvAccountPrivateKey   = "ACCOUNT_PRIVATE_KEY"
	EnvMumbaiURL           = "POLYGON_MUMBAI_URL"
	EnvMumbaiEtherscanKey  = "POLYGON_MUMBAI_ETHERSCAN_API_KEY"
	EnvReportGas           = "REPORT_GAS"
	EnvLocalhostURL        = "LOCALHOST_URL"
	EnvSQLitePath          = "CONTRADEPLOY_SQLITE_PATH"
	DefaultContractName    = "ChainBattles"
	DefaultNetworkName     = "localhost"
	DefaultArtifactsDir    = "artifacts"
	DefaultSourcesDir      = "contracts"
	mumbaiExplorerKey      = "polygonMumbai"
	mumbaiExplorerURL      = "https://api-testnet.polygonscan.com/api"
	localhostURL           = "http://127.0.0.1:8545"
	localhostChainID       = 31337
	mumbaiChainID          = 80001
	defaultOptimizerSteps  = "dhfoDgvulfnTUtnIf"
	defaultSolidityVersion = "0.8.10"
	DefaultSQLitePath      = ".contradeploy/deployments.db"
)

// ErrUnknownNetwork is returned by Validate and Network for a name with no definition.
var ErrUnknownNetwork = errors.New("unknown network")

// Config holds everything the deploy tool needs
type Config struct {
	Solidity       SolidityConfig
	DefaultNetwork string
	Networks       map[string]NetworkConfig
	GasReporter    GasReporterConfig
	Etherscan      EtherscanConfig
	Paths          PathsConfig

	// Contract is the contract deployed when none is named on the command line
	Contract       string
	Builder        string // "" = detect
	CompileCommand string // "" = builder default

	Logging LoggingConfig
	Storage StorageConfig
	Metrics MetricsConfig
	Server  ServerConfig
}

// SolidityConfig holds compiler settings
type SolidityConfig struct {
	Version   string          `yaml:"version"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// OptimizerConfig holds optimizer settings
type OptimizerConfig struct {
	Enabled bool             `yaml:"enabled"`
	Runs    int              `yaml:"runs"`
	Details OptimizerDetails `yaml:"details"`
}

// OptimizerDetails holds the yul optimizer toggles
type OptimizerDetails struct {
	Yul        bool       `yaml:"yul"`
	YulDetails YulDetails `yaml:"yulDetails"`
}

// YulDetails holds yul optimizer details
type YulDetails struct {
	StackAllocation bool   `yaml:"stackAllocation"`
	OptimizerSteps  string `yaml:"optimizerSteps"`
}

// NetworkConfig describes one target network
type NetworkConfig struct {
	URL     string `yaml:"url"`
	ChainID int64  `yaml:"chainId,omitempty"`
	// Accounts holds hex private keys. Empty means use the node's unlocked accounts.
	Accounts    []string `yaml:"accounts"`
	ExplorerKey string   `yaml:"explorerKey,omitempty"`
	ExplorerURL string   `yaml:"explorerUrl,omitempty"`
}

// IsLocal reports whether the network points at a development node
func (n NetworkConfig) IsLocal() bool {
	return n.ChainID == localhostChainID || strings.Contains(n.URL, "127.0.0.1") || strings.Contains(n.URL, "localhost")
}

// GasReporterConfig holds gas report settings
type GasReporterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Currency string `yaml:"currency"`
}

// EtherscanConfig holds block-explorer credentials keyed by explorer name
type EtherscanConfig struct {
	APIKey map[string]string `yaml:"apiKey"`
}

// PathsConfig holds project layout settings
type PathsConfig struct {
	Root      string `yaml:"root"`
	Artifacts string `yaml:"artifacts"`
	Sources   string `yaml:"sources"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// StorageConfig holds deployment ledger settings
type StorageConfig struct {
	Type     string // "sqlite", "postgres" or "none"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool
	// TextFile is written after every CLI run when set (node_exporter textfile format)
	TextFile string
}

// ServerConfig holds settings for the ledger HTTP API
type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	IdleTimeout    int // seconds
	RateLimitRPM   int
	RateLimitBurst int
}

// Load loads configuration from the environment. The .env file in root
// (the working directory when root is empty) is read first; variables
// already set take precedence. Absent variables never cause an error, a
// malformed .env does.
func Load(root string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	return FromEnv(), nil
}

// FromEnv builds the configuration from the current process environment only
func FromEnv() *Config {
	cfg := &Config{
		Solidity: SolidityConfig{
			Version: defaultSolidityVersion,
			Optimizer: OptimizerConfig{
				Enabled: true,
				Runs:    200,
				Details: OptimizerDetails{
					Yul: true,
					YulDetails: YulDetails{
						StackAllocation: true,
						OptimizerSteps:  defaultOptimizerSteps,
					},
				},
			},
		},
		DefaultNetwork: DefaultNetworkName,
		Networks: map[string]NetworkConfig{
			"localhost": {
				URL:     getEnv(EnvLocalhostURL, localhostURL),
				ChainID: localhostChainID,
			},
			"mumbai": {
				URL:         getEnv(EnvMumbaiURL, UndefinedParam),
				ChainID:     mumbaiChainID,
				Accounts:    accountsFromEnv(),
				ExplorerKey: mumbaiExplorerKey,
				ExplorerURL: mumbaiExplorerURL,
			},
		},
		GasReporter: GasReporterConfig{
			Enabled:  isSet(EnvReportGas),
			Currency: "USD",
		},
		Etherscan: EtherscanConfig{
			APIKey: map[string]string{
				mumbaiExplorerKey: getEnv(EnvMumbaiEtherscanKey, UndefinedParam),
			},
		},
		Paths: PathsConfig{
			Root:      ".",
			Artifacts: DefaultArtifactsDir,
			Sources:   DefaultSourcesDir,
		},
		Contract: DefaultContractName,
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Storage: StorageConfig{
			Type: getEnv("CONTRADEPLOY_STORAGE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv(EnvSQLitePath, DefaultSQLitePath),
			},
		},
		Metrics: MetricsConfig{
			Enabled:  getEnvBool("METRICS_ENABLED", true),
			TextFile: getEnv("CONTRADEPLOY_METRICS_FILE", ""),
		},
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8090),
			Host:           getEnv("HOST", "127.0.0.1"),
			ReadTimeout:    getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:    getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 300),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 50),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	return cfg
}

// accountsFromEnv returns the private key list. A present but empty
// variable still yields a one-element list, matching the loader this
// replaces; only an absent variable yields no accounts.
func accountsFromEnv() []string {
	if key, ok := os.LookupEnv(EnvAccountPrivateKey); ok {
		return []string{key}
	}
	return []string{}
}

// Network returns the named network, or the default network when name is empty
func (c *Config) Network(name string) (string, NetworkConfig, error) {
	if name == "" {
		name = c.DefaultNetwork
	}
	n, ok := c.Networks[name]
	if !ok {
		return name, NetworkConfig{}, fmt.Errorf("%w: %s (known: %s)", ErrUnknownNetwork, name, strings.Join(c.NetworkNames(), ", "))
	}
	return name, n, nil
}

// NetworkNames returns the configured network names in sorted order
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExplorerAPIKey returns the block-explorer key for a network, or UndefinedParam
func (c *Config) ExplorerAPIKey(n NetworkConfig) string {
	if n.ExplorerKey == "" {
		return UndefinedParam
	}
	if key, ok := c.Etherscan.APIKey[n.ExplorerKey]; ok && key != "" {
		return key
	}
	return UndefinedParam
}

// Validate checks settings that would make every command fail. Missing
// URLs and keys are not checked here.
func (c *Config) Validate() error {
	if !semver.IsValid("v" + strings.TrimPrefix(c.Solidity.Version, "v")) {
		return fmt.Errorf("invalid solidity version %q", c.Solidity.Version)
	}
	if c.Solidity.Optimizer.Runs < 0 {
		return fmt.Errorf("optimizer runs must not be negative")
	}
	if _, ok := c.Networks[c.DefaultNetwork]; !ok {
		return fmt.Errorf("%w: default network %s", ErrUnknownNetwork, c.DefaultNetwork)
	}
	for name, n := range c.Networks {
		if n.ChainID < 0 {
			return fmt.Errorf("network %s: chain ID must not be negative", name)
		}
	}
	return nil
}

func isSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}
