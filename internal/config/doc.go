// Package config defines the application's configuration structure and
// loading logic. Configuration is sourced from defaults, an optional
// hearthd.yaml file, and HEARTH_-prefixed environment variables, in
// increasing order of precedence, and validated before use.
package config
