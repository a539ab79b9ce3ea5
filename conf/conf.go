// Package conf loads the application configuration from clienthub.yml and
// CLIENTHUB_* environment variables, environment winning. Struct fields bind
// through their conf tags.
package conf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/guard"
	"github.com/fernhill/clienthub/internal/log"
	"github.com/fernhill/clienthub/internal/metrics"
	"github.com/fernhill/clienthub/internal/pkg/xcache"
	"github.com/fernhill/clienthub/internal/profile"
	"github.com/fernhill/clienthub/internal/server"
	"github.com/fernhill/clienthub/internal/server/db"
)

// Config is the root configuration tree.
type Config struct {
	APIServer server.Config     `conf:"server" yaml:"server" json:"server"`
	DB        db.Config         `conf:"db" yaml:"db" json:"db"`
	Log       log.Config        `conf:"log" yaml:"log" json:"log"`
	Auth      credential.Config `conf:"auth" yaml:"auth" json:"auth"`
	Cache     xcache.Config     `conf:"cache" yaml:"cache" json:"cache"`
	Resolver  profile.Config    `conf:"resolver" yaml:"resolver" json:"resolver"`
	Routes    guard.Routes      `conf:"routes" yaml:"routes" json:"routes"`
	Metrics   metrics.Config    `conf:"metrics" yaml:"metrics" json:"metrics"`
}

// Load reads clienthub.yml from the working directory or /etc/clienthub,
// overlays CLIENTHUB_* environment variables, and decodes into Config.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("clienthub")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/clienthub")

	v.SetEnvPrefix("CLIENTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config

	err := v.Unmarshal(&config, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "conf"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.name", "ClientHub")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.debug", false)

	v.SetDefault("db.dialect", "sqlite")
	v.SetDefault("db.dsn", "file:clienthub.db?_pragma=foreign_keys(1)")

	v.SetDefault("log.name", "clienthub")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("auth.access_ttl", "1h")
	v.SetDefault("auth.refresh_ttl", "720h")

	v.SetDefault("cache.mode", xcache.ModeMemory)
	v.SetDefault("cache.memory.expiration", "5m")
	v.SetDefault("cache.memory.cleanup_interval", "10m")

	v.SetDefault("resolver.retry_delay", "300ms")

	routes := guard.DefaultRoutes()
	v.SetDefault("routes.team_login", routes.TeamLogin)
	v.SetDefault("routes.client_login", routes.ClientLogin)
	v.SetDefault("routes.team_home", routes.TeamHome)
	v.SetDefault("routes.client_home", routes.ClientHome)
	v.SetDefault("routes.public_root", routes.PublicRoot)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.interval", "1m")
}

// Providers exposes the sub-configurations to the fx graph so constructors
// depend on exactly the slice they need.
func Providers() fx.Option {
	return fx.Provide(
		func(c Config) server.Config { return c.APIServer },
		func(c Config) db.Config { return c.DB },
		func(c Config) log.Config { return c.Log },
		func(c Config) credential.Config { return c.Auth },
		func(c Config) xcache.Config { return c.Cache },
		func(c Config) profile.Config { return c.Resolver },
		func(c Config) guard.Routes { return c.Routes },
		func(c Config) metrics.Config { return c.Metrics },
	)
}
