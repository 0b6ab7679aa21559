package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sweeney/bell-scheduler/internal/alert"
)

// Environment keys for the alert credentials.
const (
	EnvToken = "ALERTS_TOKEN"
	EnvUID   = "ALERT_UID"
)

// DefaultEnvFile is read when no --env-file flag is given.
const DefaultEnvFile = ".env"

// Env holds credential overrides.
type Env map[string]string

// LoadEnv reads a dotenv file and overlays the process environment on top.
// A missing file is not an error.
func LoadEnv(path string) (Env, error) {
	env := Env{}
	if path != "" {
		vals, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return env, fmt.Errorf("failed to read env file %s: %w", path, err)
		}
		for k, v := range vals {
			env[k] = v
		}
	}
	for _, k := range []string{EnvToken, EnvUID} {
		if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
			env[k] = v
		}
	}
	return env, nil
}

// Credentials merges file and environment. Non-empty environment values win.
func (f File) Credentials(env Env) alert.Credentials {
	c := alert.Credentials{Token: strings.TrimSpace(f.AlertsToken), UID: string(f.AlertUID)}
	if v := strings.TrimSpace(env[EnvToken]); v != "" {
		c.Token = v
	}
	if v := strings.TrimSpace(env[EnvUID]); v != "" && v != "0" {
		c.UID = v
	}
	return c
}
