package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/warden"
	"github.com/sagarc03/warden/database"
	wardenhttp "github.com/sagarc03/warden/http"
	"github.com/sagarc03/warden/keybackend"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for warden.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Session   SessionConfig   `mapstructure:"session"`
	Privilege PrivilegeConfig `mapstructure:"privilege"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Content   ContentConfig   `mapstructure:"content"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
	Env       string          `mapstructure:"env" validate:"required,oneof=dev prod"`
}

// ServerConfig holds protocol server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxConnections int64         `mapstructure:"max_connections" validate:"min=1"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" validate:"min=1ms"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"min=1ms"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" validate:"min=1"`
}

// Addr returns the host:port the server listens on.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StoreConfig selects and configures the user store.
type StoreConfig struct {
	Type  string `mapstructure:"type" validate:"required,oneof=json sqlite postgres"`
	Path  string `mapstructure:"path" validate:"required_if=Type json"`
	DSN   string `mapstructure:"dsn" validate:"required_unless=Type json"`
	Table string `mapstructure:"table" validate:"required"`
}

// Database returns the SQL store configuration. Only meaningful for sqlite and postgres.
func (c StoreConfig) Database() database.Config {
	return database.Config{
		Type:   c.Type,
		DSN:    c.DSN,
		Tables: warden.Tables{Users: c.Table},
	}
}

// SessionConfig holds login session configuration.
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl" validate:"min=1s"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"min=1s"`
}

// PrivilegeConfig holds privilege grant configuration.
type PrivilegeConfig struct {
	TTL  time.Duration         `mapstructure:"ttl" validate:"min=1s"`
	Keys keybackend.KeysConfig `mapstructure:"keys"`
}

// AuthConfig holds credential configuration.
type AuthConfig struct {
	PasswordPolicy bool `mapstructure:"password_policy"`
	BcryptCost     int  `mapstructure:"bcrypt_cost" validate:"min=4,max=31"`
}

// ContentConfig holds image serving configuration.
type ContentConfig struct {
	Root             string `mapstructure:"root" validate:"required"`
	RequirePrivilege bool   `mapstructure:"require_privilege"`
	MaxFileBytes     int64  `mapstructure:"max_file_bytes" validate:"min=1"`
}

// AdminConfig holds admin API configuration.
type AdminConfig struct {
	Enabled bool                  `mapstructure:"enabled"`
	Port    int                   `mapstructure:"port" validate:"required,min=1,max=65535"`
	CORS    wardenhttp.CORSConfig `mapstructure:"cors"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"store-type":   "store.type",
	"store-path":   "store.path",
	"store-dsn":    "store.dsn",
	"content-root": "content.root",
	"admin":        "admin.enabled",
	"admin-port":   "admin.port",
	"log-level":    "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_connections", 256)
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("store.type", "json")
	v.SetDefault("store.path", "./data/users.json")
	v.SetDefault("store.dsn", "warden.db")
	v.SetDefault("store.table", "warden_users")

	v.SetDefault("session.ttl", "1h")
	v.SetDefault("session.sweep_interval", "1m")

	v.SetDefault("privilege.ttl", "1h")
	v.SetDefault("privilege.keys.file", "")
	v.SetDefault("privilege.keys.active", "")

	v.SetDefault("auth.password_policy", false)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("content.root", "./images")
	v.SetDefault("content.require_privilege", true)
	v.SetDefault("content.max_file_bytes", warden.DefaultMaxFileBytes)

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.port", 5710)
	v.SetDefault("admin.cors.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("env", "dev")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Store.Type != "json" {
		if err := cfg.Store.Database().Tables.Validate(); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}

	return &cfg, nil
}
