// Package config loads the process configuration, adapted from
// config/config.go's
// load-or-create-default behaviour: a missing file gets a generated
// default written back, and any secret left blank in an existing file is
// generated once and persisted rather than regenerated on every start.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full set of process-wide settings for one agentd
// instance.
type Config struct {
	ServiceName string `toml:"ServiceName"`
	Environment string `toml:"Environment"`
	DataDir     string `toml:"DataDir"`

	DBDriver string `toml:"DBDriver"`
	DBDSN    string `toml:"DBDSN"`

	AdapterURL       string `toml:"AdapterURL"`
	AdapterAPIKey    string `toml:"AdapterAPIKey"`
	AdapterAPISecret string `toml:"AdapterAPISecret"`

	ApprovalListenAddress string `toml:"ApprovalListenAddress"`
	AdminListenAddress    string `toml:"AdminListenAddress"`
	AdminToken            string `toml:"AdminToken"`

	SessionSecretHex string `toml:"SessionSecretHex"`
	MasterKeyHex     string `toml:"MasterKeyHex"`

	EvmRPCURL          string `toml:"EvmRPCURL"`
	EvmStableContract  string `toml:"EvmStableContract"`
	SuiRPCURL          string `toml:"SuiRPCURL"`
	SuiCoinType        string `toml:"SuiCoinType"`
	OrderBookURL       string `toml:"OrderBookURL"`
	CustodialURL       string `toml:"CustodialURL"`
	StateChannelURL    string `toml:"StateChannelURL"`
	NameResolverDNS    string `toml:"NameResolverDNS"`
	ApprovalPublicURL  string `toml:"ApprovalPublicURL"`

	SchedulerIntervalSeconds   int `toml:"SchedulerIntervalSeconds"`
	ExecutorIntervalSeconds    int `toml:"ExecutorIntervalSeconds"`
	ConditionalIntervalSeconds int `toml:"ConditionalIntervalSeconds"`

	ReconcileOutputDir     string `toml:"ReconcileOutputDir"`
	ReconcileIntervalHours int    `toml:"ReconcileIntervalHours"`

	LogFilePath string `toml:"LogFilePath"`

	TracingEnabled  bool   `toml:"TracingEnabled"`
	TracingEndpoint string `toml:"TracingEndpoint"`
	TracingInsecure bool   `toml:"TracingInsecure"`
}

// Load loads the configuration from path, creating a default file with
// freshly generated secrets if none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	dirty := false
	if cfg.SessionSecretHex == "" {
		secret, err := randomHex(32)
		if err != nil {
			return nil, err
		}
		cfg.SessionSecretHex = secret
		dirty = true
	}
	if cfg.MasterKeyHex == "" {
		key, err := randomHex(32)
		if err != nil {
			return nil, err
		}
		cfg.MasterKeyHex = key
		dirty = true
	}
	if cfg.AdminToken == "" {
		token, err := randomHex(24)
		if err != nil {
			return nil, err
		}
		cfg.AdminToken = token
		dirty = true
	}
	applyDefaults(cfg)

	if dirty {
		if err := writeTo(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	sessionSecret, err := randomHex(32)
	if err != nil {
		return nil, err
	}
	masterKey, err := randomHex(32)
	if err != nil {
		return nil, err
	}
	adminToken, err := randomHex(24)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServiceName:           "dwagent",
		Environment:           "development",
		DataDir:               "./dwagent-data",
		DBDriver:              "sqlite",
		DBDSN:                 "./dwagent-data/dwagent.db",
		ApprovalListenAddress: ":8081",
		AdminListenAddress:    ":8082",
		AdminToken:            adminToken,
		SessionSecretHex:      sessionSecret,
		MasterKeyHex:          masterKey,
		TracingEndpoint:       "localhost:4318",
		TracingInsecure:       true,
	}
	applyDefaults(cfg)

	if err := writeTo(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SchedulerIntervalSeconds <= 0 {
		cfg.SchedulerIntervalSeconds = 30
	}
	if cfg.ExecutorIntervalSeconds <= 0 {
		cfg.ExecutorIntervalSeconds = 5
	}
	if cfg.ConditionalIntervalSeconds <= 0 {
		cfg.ConditionalIntervalSeconds = 30
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite"
	}
	if cfg.ReconcileIntervalHours <= 0 {
		cfg.ReconcileIntervalHours = 24
	}
	if cfg.ReconcileOutputDir == "" {
		cfg.ReconcileOutputDir = "./dwagent-data/reconcile"
	}
}

func writeTo(path string, cfg *Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("config: generate random secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SessionSecret decodes SessionSecretHex to raw bytes for JWT signing.
func (c *Config) SessionSecret() ([]byte, error) {
	return hex.DecodeString(c.SessionSecretHex)
}

// MasterKey decodes MasterKeyHex to raw bytes for keyvault.New.
func (c *Config) MasterKey() ([]byte, error) {
	return hex.DecodeString(c.MasterKeyHex)
}
