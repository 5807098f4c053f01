// Package conf loads the application configuration from YAML files and
// SCOPEGATE_-prefixed environment variables.
package conf

import (
	"errors"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/scopegate/scopegate/internal/log"
	"github.com/scopegate/scopegate/internal/permissions"
	"github.com/scopegate/scopegate/internal/server"
	"github.com/scopegate/scopegate/internal/server/biz"
	"github.com/scopegate/scopegate/internal/server/rest"
	"github.com/scopegate/scopegate/internal/storage"
)

// Config is the root configuration. It doubles as an fx result object so
// that each section is individually available to constructors.
type Config struct {
	fx.Out `yaml:"-" json:"-"`

	Log     log.Config     `conf:"log" yaml:"log" json:"log"`
	Server  server.Config  `conf:"server" yaml:"server" json:"server"`
	Storage storage.Config `conf:"storage" yaml:"storage" json:"storage"`
	Auth    biz.AuthConfig `conf:"auth" yaml:"auth" json:"auth"`

	// Permissions maps held permission groups to (permission, scope)
	// grants. Defaults to the built-in table when absent.
	Permissions permissions.Table `conf:"permissions" yaml:"permissions" json:"permissions"`
}

// Load reads scopegate.yml from the working directory, /etc/scopegate, or
// $HOME/.scopegate, applying environment variable overrides on top.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("scopegate")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/scopegate")
	v.AddConfigPath("$HOME/.scopegate")

	v.SetEnvPrefix("SCOPEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var config Config

	err := v.Unmarshal(&config, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "conf"
	})
	if err != nil {
		return Config{}, err
	}

	if len(config.Permissions) == 0 {
		config.Permissions = rest.DefaultPermissionTable()
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("server.name", "scopegate")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.request_timeout", "30s")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "file:scopegate.db?_pragma=foreign_keys(1)")
}
