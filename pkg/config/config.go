// Package config handles run configuration via environment variables.
//
// Configuration is loaded with LoadFromEnv and validated with Validate
// before use, mirroring how the rest of the ambient stack favors
// environment-driven settings over config files: no config file format
// needs to be chosen, versioned, or parsed, and container deployments get
// overrides for free.
//
// Example:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strings"
)

// Strictness governs whether a non-required property's coercion failure is
// fatal or merely warned about (spec §4.3/§7: required fields are always
// fatal; non-required fields follow this setting).
type Strictness string

const (
	// StrictnessWarn logs a warning for a non-required property whose
	// coercion fails and stores the property as null.
	StrictnessWarn Strictness = "warn"
	// StrictnessFail treats every coercion failure as fatal, regardless of
	// whether the property was declared required.
	StrictnessFail Strictness = "fail"
)

// RunConfig holds the settings a CLI invocation needs before it can load a
// schema and start building a graph.
type RunConfig struct {
	// SchemaPath is the metadata document describing entities and
	// relationships.
	SchemaPath string
	// RulesPath is the transformations document applied after the base
	// graph is built. Empty means "skip rule application".
	RulesPath string
	// SourceBaseDir is prepended to every entity's relative source path.
	SourceBaseDir string
	// Strictness controls non-required property coercion failures.
	Strictness Strictness
	// LogLevel is one of "debug", "info", "warn".
	LogLevel string
}

// LoadFromEnv loads a RunConfig from environment variables, falling back to
// defaults for anything unset. All LPGRAPH_-prefixed variables are optional;
// a CLI flag always overrides its corresponding value after loading.
func LoadFromEnv() *RunConfig {
	return &RunConfig{
		SchemaPath:    getEnv("LPGRAPH_SCHEMA", ""),
		RulesPath:     getEnv("LPGRAPH_RULES", ""),
		SourceBaseDir: getEnv("LPGRAPH_SOURCE_BASE_DIR", "."),
		Strictness:    Strictness(getEnv("LPGRAPH_STRICTNESS", string(StrictnessWarn))),
		LogLevel:      getEnv("LPGRAPH_LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration for logical errors before it drives a
// run: a bad path or an unknown strictness level should surface as a
// startup error, not a confusing failure mid-build.
func (c *RunConfig) Validate() error {
	if c.SchemaPath == "" {
		return fmt.Errorf("schema path is required")
	}
	switch c.Strictness {
	case StrictnessWarn, StrictnessFail:
	default:
		return fmt.Errorf("unknown strictness %q (want %q or %q)", c.Strictness, StrictnessWarn, StrictnessFail)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn":
	default:
		return fmt.Errorf("unknown log level %q (want debug, info, or warn)", c.LogLevel)
	}
	return nil
}

// String returns a representation safe for logging — a RunConfig carries no
// secrets, so unlike most config structs nothing here needs to be redacted.
func (c *RunConfig) String() string {
	return fmt.Sprintf("RunConfig{Schema: %s, Rules: %s, SourceBaseDir: %s, Strictness: %s, LogLevel: %s}",
		c.SchemaPath, c.RulesPath, c.SourceBaseDir, c.Strictness, c.LogLevel)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
