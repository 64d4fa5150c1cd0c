package main

import (
	"fmt"

	"github.com/spf13/viper"
)

// daemonConfig is the process-level configuration for the routerproxy
// daemon: where the device-list YAML lives and where the durable queue
// database should be opened. Everything about individual devices lives in
// the YAML file itself (pkg/config.YAMLStore), not here.
type daemonConfig struct {
	DevicesFile string `mapstructure:"devices_file"`
	QueueDB     string `mapstructure:"queue_db"`
	LogFile     string `mapstructure:"log_file"`
}

func defaultDaemonConfig() *daemonConfig {
	return &daemonConfig{
		DevicesFile: "devices.yaml",
		QueueDB:     "routerproxy.db",
		LogFile:     "",
	}
}

// loadDaemonConfig reads routerproxy.yaml (if present) from the current
// directory or /etc/routerproxy, then applies ROUTERPROXY_* environment
// overrides. An explicit configFile replaces the directory search.
func loadDaemonConfig(configFile string) (*daemonConfig, error) {
	cfg := defaultDaemonConfig()
	v := viper.New()

	v.SetDefault("devices_file", cfg.DevicesFile)
	v.SetDefault("queue_db", cfg.QueueDB)
	v.SetDefault("log_file", cfg.LogFile)

	v.SetEnvPrefix("ROUTERPROXY")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("routerproxy")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/routerproxy")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("routerproxy: read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("routerproxy: parse config: %w", err)
	}
	return cfg, nil
}
