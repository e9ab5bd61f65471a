package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xraph/stepwise/extension"
)

const envPrefix = "STEPWISE"

// loadConfig reads the config file, if any, and the environment into an
// extension.Config.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (extension.Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stepwise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return extension.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg extension.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return extension.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper) {
	d := extension.DefaultConfig()
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("disable_migrate", d.DisableMigrate)
	v.SetDefault("definitions_dir", d.DefinitionsDir)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// No defaults: an unset key must stay nil so the engine default holds.
	_ = v.BindEnv("engine.conflict_retries")
	_ = v.BindEnv("engine.audit_dry_runs")
	v.SetDefault("engine.default_list_limit", 0)
	v.SetDefault("engine.backoff", "")
	v.SetDefault("engine.backoff_initial", "0s")
	v.SetDefault("engine.backoff_max", "0s")
	v.SetDefault("engine.operation_timeout", "0s")
}
