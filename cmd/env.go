package cmd

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides holds settings that may come from the environment when the
// matching flag is absent.
type envOverrides struct {
	LogLevel  string `env:"EPISIM_LOG_LEVEL"`
	OutputDir string `env:"EPISIM_OUTPUT_DIR"`
}

// parseEnv loads envOverrides from environment variables.
func parseEnv() (envOverrides, error) {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return o, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

// resolveSetting returns the flag value when the flag was set explicitly or
// the environment has nothing, otherwise the environment value.
func resolveSetting(flagValue string, flagChanged bool, envValue string) string {
	if flagChanged || envValue == "" {
		return flagValue
	}
	return envValue
}
