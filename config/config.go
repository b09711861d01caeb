// Package config aggregates the engine's tuning surface. Every constant the
// decay and fee models depend on is a named parameter here; the documented
// defaults are starting points subject to simulation-driven tuning, not final
// protocol values. Misconfiguration is a fatal startup error: a nonsensical
// decay or fee surface is exploitable, so nothing below falls back silently.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/bothonetwork/go-clustertax/decay"
	"github.com/bothonetwork/go-clustertax/fees"
	"github.com/bothonetwork/go-clustertax/ring"
)

// Config is the top-level configuration of the provenance tag engine.
type Config struct {
	Decay decay.Config       `mapstructure:"decay"`
	Fees  fees.Config        `mapstructure:"fees"`
	Decoy ring.DecoyGuidance `mapstructure:"decoy"`
}

// DefaultConfig returns the documented defaults of every subsystem.
func DefaultConfig() Config {
	return Config{
		Decay: decay.DefaultConfig(),
		Fees:  fees.DefaultConfig(),
		Decoy: ring.DefaultDecoyGuidance(),
	}
}

// Validate rejects economically nonsensical parameter combinations.
func (c Config) Validate() error {
	if err := c.Decay.Validate(); err != nil {
		return fmt.Errorf("decay: %w", err)
	}
	if err := c.Fees.Validate(); err != nil {
		return fmt.Errorf("fees: %w", err)
	}
	if err := c.Decoy.Validate(); err != nil {
		return fmt.Errorf("decoy: %w", err)
	}
	return nil
}

// Load reads a config file over the defaults and validates the result. An
// empty path yields the validated defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	vip := viper.New()
	vip.SetConfigFile(path)
	if err := vip.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := vip.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}
