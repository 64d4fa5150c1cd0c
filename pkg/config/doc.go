// Package config defines the device and service configuration this proxy
// reads, and a YAML-backed Store (which also supports adding, updating and
// removing devices) for standalone/dev use.
//
// The real mikrotik_devices/service_config/users tables are owned by an
// external system in production; YAMLStore exists so the rest of this
// repo, and its tests, can run against a config.Store without that
// external dependency. gopkg.in/yaml.v3 and spf13/viper, both already in
// the teacher's go.mod, back the file loading and CLI-flag/env-var
// overlay respectively.
package config
