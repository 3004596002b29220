// Package config loads and validates the caseflow TOML configuration.
//
// Configuration is resolved from an explicit --config path, then
// ~/.config/caseflow/config.toml, then ./caseflow.toml. Credentials may be
// supplied through environment variables so the config file can be committed
// without secrets.
package config
