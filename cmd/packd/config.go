package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"parkourcap.ai/internal/pack"
)

type Config struct {
	Listen       string      `yaml:"listen"`
	DataDir      string      `yaml:"data_dir"`
	WindowLength int         `yaml:"window_length"`
	IndexDB      string      `yaml:"index_db"` // empty disables indexing
	Compress     bool        `yaml:"compress"`
	KeepRaw      bool        `yaml:"keep_raw"` // also keep the raw run JSON next to each artifact
	Quantizer    pack.Params `yaml:"quantizer"`
}

func loadConfig(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("packd.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("packd.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Listen:       ":8080",
		DataDir:      "./data/runs",
		WindowLength: 4,
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.WindowLength <= 0 {
		return fmt.Errorf("window_length must be positive, got %d", c.WindowLength)
	}
	return c.Quantizer.Validate()
}
