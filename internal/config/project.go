package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ProjectConfigFiles is the search order for project config files
var ProjectConfigFiles = []string{"contradeploy.toml", "cd.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	DefaultNetwork string                 `toml:"default_network,omitempty"`
	Contract       string                 `toml:"contract,omitempty"`
	Builder        string                 `toml:"builder,omitempty"`
	CompileCommand string                 `toml:"compile_command,omitempty"`
	ArtifactsDir   string                 `toml:"artifacts_dir,omitempty"`
	Solidity       SolidityTOML           `toml:"solidity,omitempty"`
	Networks       map[string]NetworkTOML `toml:"networks,omitempty"`
	Etherscan      map[string]string      `toml:"etherscan,omitempty"`
	GasReporter    GasReporterTOML        `toml:"gas_reporter,omitempty"`
}

// SolidityTOML overrides compiler settings
type SolidityTOML struct {
	Version string `toml:"version,omitempty"`
	Runs    *int   `toml:"runs,omitempty"`
}

// NetworkTOML adds or overrides a network
type NetworkTOML struct {
	URL         string   `toml:"url,omitempty"`
	ChainID     int64    `toml:"chain_id,omitempty"`
	Accounts    []string `toml:"accounts,omitempty"`
	ExplorerKey string   `toml:"explorer_key,omitempty"`
	ExplorerURL string   `toml:"explorer_url,omitempty"`
}

// GasReporterTOML overrides gas report settings
type GasReporterTOML struct {
	Currency string `toml:"currency,omitempty"`
}

// FindProjectConfig returns the first project config file present in dir,
// or "" when there is none.
func FindProjectConfig(dir string) string {
	for _, name := range ProjectConfigFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadProjectConfig decodes a project config file
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pc ProjectConfig
	if _, err := toml.Decode(string(data), &pc); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	return &pc, nil
}

// Apply overlays the project file onto the config. Values that came from
// the environment (RPC URL, private key, explorer key) are not replaced by
// the file unless the environment left them at their fallback.
func (c *Config) Apply(pc *ProjectConfig) {
	if pc == nil {
		return
	}
	if pc.DefaultNetwork != "" {
		c.DefaultNetwork = pc.DefaultNetwork
	}
	if pc.Contract != "" {
		c.Contract = pc.Contract
	}
	if pc.Builder != "" {
		c.Builder = pc.Builder
	}
	if pc.CompileCommand != "" {
		c.CompileCommand = pc.CompileCommand
	}
	if pc.ArtifactsDir != "" {
		c.Paths.Artifacts = pc.ArtifactsDir
	}
	if pc.Solidity.Version != "" {
		c.Solidity.Version = pc.Solidity.Version
	}
	if pc.Solidity.Runs != nil {
		c.Solidity.Optimizer.Runs = *pc.Solidity.Runs
	}
	if pc.GasReporter.Currency != "" {
		c.GasReporter.Currency = pc.GasReporter.Currency
	}

	if c.Etherscan.APIKey == nil {
		c.Etherscan.APIKey = make(map[string]string)
	}
	if c.Networks == nil {
		c.Networks = make(map[string]NetworkConfig)
	}

	for key, value := range pc.Etherscan {
		if current, ok := c.Etherscan.APIKey[key]; ok && current != UndefinedParam {
			continue
		}
		c.Etherscan.APIKey[key] = value
	}

	for name, nt := range pc.Networks {
		n := c.Networks[name]
		if nt.URL != "" && !urlFromEnv(name) {
			n.URL = nt.URL
		}
		if nt.ChainID != 0 {
			n.ChainID = nt.ChainID
		}
		if len(nt.Accounts) > 0 && len(n.Accounts) == 0 {
			n.Accounts = nt.Accounts
		}
		if nt.ExplorerKey != "" {
			n.ExplorerKey = nt.ExplorerKey
		}
		if nt.ExplorerURL != "" {
			n.ExplorerURL = nt.ExplorerURL
		}
		c.Networks[name] = n
	}
}

// networkURLEnv names the variable that sets each built-in network's URL
var networkURLEnv = map[string]string{
	"localhost": EnvLocalhostURL,
	"mumbai":    EnvMumbaiURL,
}

// urlFromEnv reports whether the network's URL was set by its environment
// variable. Only those win over the project file.
func urlFromEnv(network string) bool {
	key, ok := networkURLEnv[network]
	return ok && os.Getenv(key) != ""
}

// LoadWithProject loads the environment config and overlays the project
// file at path, or the first one found in root when path is empty.
// A missing project file is not an error.
func LoadWithProject(path, root string) (*Config, string, error) {
	cfg, err := Load(root)
	if err != nil {
		return nil, "", err
	}
	if root != "" {
		cfg.Paths.Root = root
	}
	// the ledger lives with the project it records
	if !filepath.IsAbs(cfg.Storage.SQLite.Path) {
		cfg.Storage.SQLite.Path = filepath.Join(cfg.Paths.Root, cfg.Storage.SQLite.Path)
	}

	if path == "" {
		path = FindProjectConfig(cfg.Paths.Root)
	}
	if path == "" {
		return cfg, "", nil
	}

	pc, err := LoadProjectConfig(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg.Apply(pc)
	return cfg, path, nil
}

// effectiveView is the YAML shape printed by `config show`
type effectiveView struct {
	Solidity       SolidityConfig           `yaml:"solidity"`
	DefaultNetwork string                   `yaml:"defaultNetwork"`
	Networks       map[string]NetworkConfig `yaml:"networks"`
	GasReporter    GasReporterConfig        `yaml:"gasReporter"`
	Etherscan      EtherscanConfig          `yaml:"etherscan"`
	Paths          PathsConfig              `yaml:"paths"`
	Contract       string                   `yaml:"contract"`
	Builder        string                   `yaml:"builder,omitempty"`
	CompileCommand string                   `yaml:"compileCommand,omitempty"`
}

// YAML renders the effective configuration. Private keys and API keys are masked.
func (c *Config) YAML() ([]byte, error) {
	view := effectiveView{
		Solidity:       c.Solidity,
		DefaultNetwork: c.DefaultNetwork,
		Networks:       make(map[string]NetworkConfig, len(c.Networks)),
		GasReporter:    c.GasReporter,
		Etherscan:      EtherscanConfig{APIKey: make(map[string]string, len(c.Etherscan.APIKey))},
		Paths:          c.Paths,
		Contract:       c.Contract,
		Builder:        c.Builder,
		CompileCommand: c.CompileCommand,
	}
	for name, n := range c.Networks {
		masked := make([]string, len(n.Accounts))
		for i, key := range n.Accounts {
			masked[i] = MaskSecret(key)
		}
		n.Accounts = masked
		view.Networks[name] = n
	}
	for name, key := range c.Etherscan.APIKey {
		view.Etherscan.APIKey[name] = MaskSecret(key)
	}
	return yaml.Marshal(view)
}

// MaskSecret hides all but the edges of a secret. The placeholder is shown as is.
func MaskSecret(s string) string {
	if s == UndefinedParam || s == "" {
		return s
	}
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) <= 8 {
		return "****"
	}
	return trimmed[:4] + "..." + trimmed[len(trimmed)-4:]
}
