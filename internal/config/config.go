// Package config holds the gateway configuration. Values come from (in order of
// priority) command line flags, GATEWAY_* environment variables, an optional YAML
// file and the defaults registered here.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/evidenceledger/ledgergateway/internal/errl"
)

// EnvPrefix is the prefix of every environment variable read by the gateway,
// e.g. GATEWAY_TOKEN_SECRET for token.secret.
const EnvPrefix = "GATEWAY"

// Config is the configuration for the gateway
type Config struct {
	Server   ServerConfig
	Token    TokenConfig
	Crypto   CryptoConfig
	Network  NetworkConfig
	Wallet   WalletConfig
	Metadata MetadataConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string
	Port string
	// OpsPort serves /health and /metrics outside the bearer gate
	OpsPort         string
	ResponseTimeout time.Duration
}

type TokenConfig struct {
	Secret string
	TTL    time.Duration
}

// CryptoConfig describes the layout of the cryptogen output tree holding the
// per-organization credential material.
type CryptoConfig struct {
	Dir         string
	Domain      string
	DefaultUser string
}

type NetworkConfig struct {
	Profile string
	// GoPath is the root Go chaincode paths are resolved under on install
	GoPath string
}

type WalletConfig struct {
	Backend    string
	SQLitePath string
}

type MetadataConfig struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	CacheTTL     time.Duration
	// FileRoot allows file:// locators below this directory. Empty disables them.
	FileRoot string
	// MaxPixels is the largest image, in pixels, decoded for its perceptual hash
	MaxPixels int64
}

type LogConfig struct {
	Level string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "4000")
	v.SetDefault("server.opsPort", "9443")
	v.SetDefault("server.responseTimeout", 240*time.Second)

	v.SetDefault("token.ttl", 36000*time.Second)

	v.SetDefault("crypto.dir", "./artifacts/channel/crypto-config")
	v.SetDefault("crypto.domain", "example.com")
	v.SetDefault("crypto.defaultUser", "User1")

	v.SetDefault("network.profile", "./artifacts/network-config.yaml")
	v.SetDefault("network.goPath", "./artifacts")

	v.SetDefault("wallet.backend", "filesystem")
	v.SetDefault("wallet.sqlitePath", "./data/wallets.db")

	v.SetDefault("metadata.fetchTimeout", 30*time.Second)
	v.SetDefault("metadata.maxBytes", int64(32<<20))
	v.SetDefault("metadata.cacheTTL", 10*time.Minute)
	v.SetDefault("metadata.fileRoot", "")
	v.SetDefault("metadata.maxPixels", int64(40_000_000))

	v.SetDefault("log.level", "debug")
}

// New returns a viper instance with defaults and environment binding in place.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and builds the Config from v.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errl.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetString("server.port"),
			OpsPort:         v.GetString("server.opsPort"),
			ResponseTimeout: v.GetDuration("server.responseTimeout"),
		},
		Token: TokenConfig{
			Secret: v.GetString("token.secret"),
			TTL:    v.GetDuration("token.ttl"),
		},
		Crypto: CryptoConfig{
			Dir:         v.GetString("crypto.dir"),
			Domain:      v.GetString("crypto.domain"),
			DefaultUser: v.GetString("crypto.defaultUser"),
		},
		Network: NetworkConfig{
			Profile: v.GetString("network.profile"),
			GoPath:  v.GetString("network.goPath"),
		},
		Wallet: WalletConfig{
			Backend:    v.GetString("wallet.backend"),
			SQLitePath: v.GetString("wallet.sqlitePath"),
		},
		Metadata: MetadataConfig{
			FetchTimeout: v.GetDuration("metadata.fetchTimeout"),
			MaxBytes:     v.GetInt64("metadata.maxBytes"),
			CacheTTL:     v.GetDuration("metadata.cacheTTL"),
			FileRoot:     v.GetString("metadata.fileRoot"),
			MaxPixels:    v.GetInt64("metadata.maxPixels"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the gateway cannot start without
func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return errl.Errorf("token secret required. Set %s_TOKEN_SECRET environment variable", EnvPrefix)
	}
	if c.Token.TTL <= 0 {
		return errl.Errorf("token ttl must be positive, got %s", c.Token.TTL)
	}
	if c.Server.Port == "" {
		return errl.Errorf("server port required")
	}
	switch c.Wallet.Backend {
	case "filesystem", "sqlite", "leveldb":
	default:
		return errl.Errorf("unknown wallet backend %q", c.Wallet.Backend)
	}
	return nil
}
