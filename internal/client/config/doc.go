// Package config holds the CLI settings: defaults, then an optional JSON
// file (-c/-config), then CITYGATE_* environment variables. Command-line
// flags are applied last by the cobra commands.
package config
