package config

import "os"

// HomeDir resolves the process's configuration and data directory:
// SYNCSPIRIT_HOME if set, otherwise the given fallback.
func HomeDir(fallback string) string {
	if v := os.Getenv("SYNCSPIRIT_HOME"); v != "" {
		return v
	}
	return fallback
}

// ApplyEnv overrides logging-related options from the environment,
// taking precedence over whatever was loaded from the config file.
func ApplyEnv(opts *OptionsConfiguration) {
	if v := os.Getenv("SYNCSPIRIT_LOG_LEVEL"); v != "" {
		opts.LogLevel = v
	}
	if v := os.Getenv("SYNCSPIRIT_LOG_FORMAT"); v != "" {
		opts.LogFormat = v
	}
}
