// Package config reads process settings from the environment. Command-line
// flags default to these values.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Server struct {
	Addr    string `env:"TYCOON_ADDR" envDefault:":8080"`
	DataDir string `env:"TYCOON_DATA_DIR" envDefault:"./data"`
	// ConfigsDir holds businesses.json and managers.json; empty selects the built-in catalog.
	ConfigsDir string `env:"TYCOON_CONFIGS"`
	// TuningPath is optional; tuning defaults apply without it.
	TuningPath string `env:"TYCOON_TUNING"`

	LogLevel  string `env:"TYCOON_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TYCOON_LOG_FORMAT" envDefault:"json"`

	EnableAdminHTTP bool `env:"TYCOON_ENABLE_ADMIN_HTTP" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadServer() (Server, error) {
	var s Server
	err := ParseEnv(&s)
	return s, err
}

// DBPath is the SQLite file holding the save blob.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "tycoon.sqlite")
}
