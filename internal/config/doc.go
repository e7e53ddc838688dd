// Package config handles configuration loading, parsing, and validation
// from various sources (defaults, a YAML or JSON file, command-line flags and
// environment variables). It provides type-safe access to the settings needed
// by the batch coordinator and its collaborators while keeping configuration
// details separate from the orchestration logic.
package config
