package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"invoice-pay/pkg/network"
	"invoice-pay/pkg/wallet"
)

// Config holds the application configuration
type Config struct {
	APIURL       string        `mapstructure:"api_url" validate:"required,url"`
	APIToken     string        `mapstructure:"api_token"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=100ms"`
	LogLevel     string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	AutoConfirm  bool          `mapstructure:"auto_confirm"`
	OneClick     OneClick      `mapstructure:"oneclick"`
	Wallet       Wallet        `mapstructure:"wallet"`
	Tracing      Tracing       `mapstructure:"tracing"`
	Metrics      Metrics       `mapstructure:"metrics"`
}

// OneClick configures the 1Click token catalog
type OneClick struct {
	JWTToken string `mapstructure:"jwt_token"`
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`
}

// Wallet configures the local signing wallet
type Wallet struct {
	PrivateKey     string             `mapstructure:"private_key"`
	DefaultNetwork string             `mapstructure:"default_network"`
	Networks       map[string]Network `mapstructure:"networks" validate:"dive"`
}

// Network is one EVM network entry under wallet.networks
type Network struct {
	ChainID  int64   `mapstructure:"chain_id"`
	RPCUrl   string  `mapstructure:"rpc_url" validate:"omitempty,url"`
	GasLimit *uint64 `mapstructure:"gas_limit"`
	GasPrice *int64  `mapstructure:"gas_price"`
}

// Tracing configures the OTLP exporter. Empty endpoint disables tracing.
type Tracing struct {
	Endpoint string `mapstructure:"endpoint"`
}

// Metrics configures the Prometheus listener. Empty addr disables it.
type Metrics struct {
	Addr string `mapstructure:"addr"`
}

// ErrNoWallet is returned when a command needs a wallet and none is configured
var ErrNoWallet = errors.New("wallet private key not found. Please set INVOICE_PAY_WALLET_PRIVATE_KEY or wallet.private_key in .invoice-pay.yaml")

var validate = validator.New()

// public RPC endpoints used when a network has no rpc_url of its own
var defaultRPC = map[string]string{
	"mainnet":  "https://eth.llamarpc.com",
	"base":     "https://mainnet.base.org",
	"arbitrum": "https://arb1.arbitrum.io/rpc",
	"optimism": "https://mainnet.optimism.io",
	"matic":    "https://polygon-rpc.com",
}

// Load reads configuration from environment variables and config file.
// path overrides the config file search when set.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".invoice-pay")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	// Set default values
	v.SetDefault("api_url", "https://api.easyinvoice.io")
	v.SetDefault("api_token", "")
	v.SetDefault("poll_interval", "3s")
	v.SetDefault("log_level", "warn")
	v.SetDefault("auto_confirm", false)
	v.SetDefault("oneclick.jwt_token", "")
	v.SetDefault("oneclick.base_url", "https://1click.chaindefuser.com")
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.default_network", "base")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("metrics.addr", "")
	for name, url := range defaultRPC {
		v.SetDefault("wallet.networks."+name+".rpc_url", url)
	}

	// Read from environment variables
	v.SetEnvPrefix("INVOICE_PAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// WalletNetworks converts wallet.networks into wallet entries. A missing
// chain_id is filled from the known network names.
func (c *Config) WalletNetworks() ([]wallet.Network, error) {
	names := make([]string, 0, len(c.Wallet.Networks))
	for name := range c.Wallet.Networks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]wallet.Network, 0, len(names))
	for _, name := range names {
		n := c.Wallet.Networks[name]
		id := n.ChainID
		if id == 0 {
			known, ok := network.ChainID(name)
			if !ok {
				return nil, fmt.Errorf("network %s needs a chain_id", name)
			}
			id = known
		}
		if n.RPCUrl == "" {
			continue
		}
		out = append(out, wallet.Network{
			Name:     name,
			ChainID:  id,
			RPCUrl:   n.RPCUrl,
			GasLimit: n.GasLimit,
			GasPrice: n.GasPrice,
		})
	}
	return out, nil
}

// DefaultChainID resolves wallet.default_network, zero when unset
func (c *Config) DefaultChainID() (int64, error) {
	name := c.Wallet.DefaultNetwork
	if name == "" {
		return 0, nil
	}
	if n, ok := c.Wallet.Networks[name]; ok && n.ChainID != 0 {
		return n.ChainID, nil
	}
	id, ok := network.ChainID(name)
	if !ok {
		return 0, fmt.Errorf("unknown default network: %s", name)
	}
	return id, nil
}
