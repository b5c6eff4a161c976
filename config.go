package marketsdk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChainID represents a blockchain chain ID
type ChainID int64

const (
	ChainIDMainnet ChainID = 1
	ChainIDSepolia ChainID = 11155111
)

// SupportedChainIDs lists all supported chain IDs
var SupportedChainIDs = []ChainID{ChainIDMainnet, ChainIDSepolia}

// ExchangeDeployment holds the exchange address and deployment block for a
// chain. Event scans start at the deployment block.
type ExchangeDeployment struct {
	Address     string
	DeployBlock uint64
}

// DefaultExchangeDeployments maps chain IDs to their exchange deployments.
var DefaultExchangeDeployments = map[ChainID]ExchangeDeployment{
	ChainIDMainnet: {
		Address:     "0x7C4b2B3C94a5C6fD45a7cB6798bA712337E5AB01",
		DeployBlock: 18744210,
	},
	ChainIDSepolia: {
		Address:     "0x3De1c9DD48a8Ba7517d2fD19c8941bD7b9E46C30",
		DeployBlock: 4892133,
	},
}

// Config holds everything needed to construct a Client. It can be built in
// code or loaded from a yaml file with env-var overrides for secrets.
type Config struct {
	Chain struct {
		ID         int64  `yaml:"id"`
		RPCURL     string `yaml:"rpc_url"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"chain"`

	Exchange struct {
		Address     string `yaml:"address"`
		DeployBlock uint64 `yaml:"deploy_block"`
	} `yaml:"exchange"`

	Events struct {
		LogWindow  uint64 `yaml:"log_window"`
		MaxWindows int    `yaml:"max_windows"`
	} `yaml:"events"`

	Cart struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"cart"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses a yaml config file, applies env-var
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv lets secrets come from the environment instead of the
// config file.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("MARKET_RPC_URL"); url != "" {
		cfg.Chain.RPCURL = url
	}
	if key := os.Getenv("MARKET_PRIVATE_KEY"); key != "" {
		cfg.Chain.PrivateKey = key
	}
}

// ApplyDefaults fills in the exchange deployment for known chains and the
// event scan bounds when unset.
func (c *Config) ApplyDefaults() {
	if deployment, ok := DefaultExchangeDeployments[ChainID(c.Chain.ID)]; ok {
		if c.Exchange.Address == "" {
			c.Exchange.Address = deployment.Address
		}
		if c.Exchange.DeployBlock == 0 {
			c.Exchange.DeployBlock = deployment.DeployBlock
		}
	}
	if c.Events.LogWindow == 0 {
		c.Events.LogWindow = 5000
	}
	if c.Events.MaxWindows == 0 {
		c.Events.MaxWindows = 200
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	supported := false
	for _, id := range SupportedChainIDs {
		if ChainID(c.Chain.ID) == id {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("chain id must be one of %v, got %d", SupportedChainIDs, c.Chain.ID)
	}
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain rpc_url is required")
	}
	if c.Chain.PrivateKey == "" {
		return fmt.Errorf("chain private_key is required")
	}
	if c.Exchange.Address == "" {
		return fmt.Errorf("exchange address is required for chain %d", c.Chain.ID)
	}
	if c.Events.MaxWindows < 1 {
		return fmt.Errorf("events max_windows must be positive")
	}
	return nil
}
