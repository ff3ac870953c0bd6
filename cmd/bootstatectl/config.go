package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/goliatone/go-bootstate/controls"
	"github.com/goliatone/go-bootstate/rules"
)

// bootstatectl config.toml keys.
type fileConfig struct {
	Variant         string `toml:"variant"`
	Registry        string `toml:"registry"`
	Evaluator       string `toml:"evaluator"`
	UnknownControls string `toml:"unknown_controls"`
	Verbose         bool   `toml:"verbose"`
}

type cliConfig struct {
	Variant         string
	Registry        string
	Evaluator       string
	UnknownControls string
	Verbose         bool
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		Variant:         "explore",
		Evaluator:       rules.EngineExpr,
		UnknownControls: "reject",
	}
}

// loadFileConfig overlays the keys defined in path onto cfg.
func loadFileConfig(path string, cfg cliConfig) (cliConfig, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cliConfig{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cliConfig{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("variant") {
		cfg.Variant = strings.TrimSpace(raw.Variant)
	}
	if meta.IsDefined("registry") {
		cfg.Registry = strings.TrimSpace(raw.Registry)
	}
	if meta.IsDefined("evaluator") {
		cfg.Evaluator = strings.TrimSpace(raw.Evaluator)
	}
	if meta.IsDefined("unknown_controls") {
		cfg.UnknownControls = strings.TrimSpace(raw.UnknownControls)
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}
	return cfg, nil
}

// resolveConfig layers defaults < config file < flags set on the command line.
func resolveConfig(flags *pflag.FlagSet, fromFlags cliConfig, configPath string) (cliConfig, error) {
	cfg := defaultCLIConfig()
	if configPath != "" {
		var err error
		if cfg, err = loadFileConfig(configPath, cfg); err != nil {
			return cliConfig{}, err
		}
	}
	if flags.Changed("variant") {
		cfg.Variant = fromFlags.Variant
	}
	if flags.Changed("registry") {
		cfg.Registry = fromFlags.Registry
	}
	if flags.Changed("evaluator") {
		cfg.Evaluator = fromFlags.Evaluator
	}
	if flags.Changed("unknown-controls") {
		cfg.UnknownControls = fromFlags.UnknownControls
	}
	if flags.Changed("verbose") {
		cfg.Verbose = fromFlags.Verbose
	}
	if _, err := cfg.unknownPolicy(); err != nil {
		return cliConfig{}, err
	}
	return cfg, nil
}

func (c cliConfig) unknownPolicy() (controls.UnknownControlPolicy, error) {
	switch strings.ToLower(c.UnknownControls) {
	case "", "reject":
		return controls.Reject, nil
	case "ignore":
		return controls.Ignore, nil
	default:
		return controls.Reject, fmt.Errorf("unknown_controls must be reject or ignore, got %q", c.UnknownControls)
	}
}
