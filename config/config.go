package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// TLSConfig holds paths to the PEM files needed for mTLS between nodes.
// When nil or all paths are empty, LoadTLSConfig returns no TLS config;
// p2p.Node has no plain-TCP mode, so cmd/node then generates certificates.
type TLSConfig struct {
	CACert   string `mapstructure:"ca_cert"`
	NodeCert string `mapstructure:"node_cert"`
	NodeKey  string `mapstructure:"node_key"`
}

// Config holds all node configuration, bound from CLI flags and environment
// variables, in that precedence order. No config file is read.
type Config struct {
	DataDir        string   `mapstructure:"data_dir"`
	Host           string   `mapstructure:"host"`
	P2PPort        int      `mapstructure:"p2p_port"`
	APIPort        int      `mapstructure:"api_port"`
	BootstrapPeers []string `mapstructure:"bootstrap_peers"`
	IdentityPath   string   `mapstructure:"identity"`
	IdentityPass   string   `mapstructure:"identity_password"`
	SharedKeys     bool     `mapstructure:"shared_keys"`
	LogLevel       string   `mapstructure:"log_level"`
	Debug          bool     `mapstructure:"debug"`

	TLS *TLSConfig `mapstructure:"-"`
}

// BindFlags registers spec.md §6's mandatory and optional CLI flags on fs,
// using defaults matching the spec's stated ones.
func BindFlags(fs *pflag.FlagSet) {
	fs.Int("p2p-port", 7100, "P2P listen port")
	fs.Int("api-port", 8100, "HTTP API listen port")
	fs.String("host", "127.0.0.1", "bind address")
	fs.StringArray("bootstrap-peer", nil, "bootstrap peer address (repeatable)")
	fs.String("data-dir", "./data", "directory for chain data, identity, and certificates")
	fs.String("identity", "", "path to a PKCS#1 PEM private key (default: <data-dir>/identity.pem)")
	fs.String("identity-password", "", "if set, the identity file is AES-GCM encrypted at rest under this password")
	fs.Bool("shared-keys", false, "test-only: reuse a well-known keypair instead of generating one")
}

// Load builds a Config from fs (already parsed) and the process environment.
// Flags take precedence over environment variables, which take precedence
// over the viper defaults set in BindFlags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix("axiom")
	_ = v.BindEnv("data-dir", "AXIOM_DATA_DIR")
	_ = v.BindEnv("shared-keys", "AXIOM_SHARED_KEYS")
	_ = v.BindEnv("log_level", "AXIOM_LOG_LEVEL")
	_ = v.BindEnv("debug", "AXIOM_DEBUG")
	_ = v.BindEnv("identity-password", "AXIOM_IDENTITY_PASSWORD")

	cfg := &Config{
		DataDir:        v.GetString("data-dir"),
		Host:           v.GetString("host"),
		P2PPort:        v.GetInt("p2p-port"),
		APIPort:        v.GetInt("api-port"),
		BootstrapPeers: v.GetStringSlice("bootstrap-peer"),
		IdentityPath:   v.GetString("identity"),
		IdentityPass:   v.GetString("identity-password"),
		SharedKeys:     v.GetBool("shared-keys"),
		LogLevel:       v.GetString("log_level"),
		Debug:          v.GetBool("debug"),
	}
	if cfg.IdentityPath == "" {
		cfg.IdentityPath = cfg.DataDir + "/identity.pem"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.TLS = &TLSConfig{
		CACert:   cfg.DataDir + "/tls/ca.crt",
		NodeCert: cfg.DataDir + "/tls/node.crt",
		NodeKey:  cfg.DataDir + "/tls/node.key",
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data-dir must not be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.P2PPort <= 0 || c.P2PPort > 65535 {
		return fmt.Errorf("p2p-port must be 1-65535, got %d", c.P2PPort)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("api-port must be 1-65535, got %d", c.APIPort)
	}
	if c.P2PPort == c.APIPort {
		return fmt.Errorf("p2p-port and api-port must not be the same (%d)", c.P2PPort)
	}
	return nil
}
