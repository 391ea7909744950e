package tuning

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// TickMs is the completion-check cadence; it is the only cadence that mutates state.
	TickMs int `yaml:"tick_ms" validate:"gte=10,lte=60000"`
	// RefreshMs is the read-only progress refresh cadence for observers.
	RefreshMs int `yaml:"refresh_ms" validate:"gte=10,lte=60000"`

	StartingBalance    float64 `yaml:"starting_balance" validate:"gte=0"`
	AutosaveEveryTicks int     `yaml:"autosave_every_ticks" validate:"gte=0"`
	StateKey           string  `yaml:"state_key" validate:"required"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	ActionsPerSecond float64 `yaml:"actions_per_second" validate:"gt=0"`
	Burst            int     `yaml:"burst" validate:"gte=1"`
}

func Defaults() Tuning {
	return Tuning{
		TickMs:             1000,
		RefreshMs:          100,
		StartingBalance:    0,
		AutosaveEveryTicks: 30,
		StateKey:           "gameState",
		RateLimits: RateLimits{
			ActionsPerSecond: 20,
			Burst:            40,
		},
	}
}

// Load reads a tuning file. Keys absent from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

var validate = validator.New()

func (t Tuning) Validate() error {
	return validate.Struct(t)
}

func (t Tuning) TickInterval() time.Duration {
	return time.Duration(t.TickMs) * time.Millisecond
}

func (t Tuning) RefreshInterval() time.Duration {
	return time.Duration(t.RefreshMs) * time.Millisecond
}
