package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every variable name declared in Config's env tags.
const EnvPrefix = "PAPERCLIP_"

// loadDotEnv is a seam so tests do not pick up a developer's .env file.
var loadDotEnv = func() { _ = godotenv.Load() }

// parseEnv overlays PAPERCLIP_* variables (and a .env file in the working
// directory, if any) onto config. Unset variables leave fields untouched.
func parseEnv(config *Config) error {
	loadDotEnv()
	return env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix})
}
