// Package config provides defaults and YAML loading for model.Config.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/August26/proxyscout/internal/checker"
	"github.com/August26/proxyscout/internal/discovery"
	"github.com/August26/proxyscout/internal/geo"
	"github.com/August26/proxyscout/internal/model"
)

// Default returns the configuration used when nothing is specified.
func Default() model.Config {
	return model.Config{
		ProxyType:         string(model.ProtocolHTTP),
		ReportFormat:      "json",
		Concurrency:       checker.DefaultConcurrency,
		TimeoutSeconds:    int(checker.DefaultCheckTimeout.Seconds()),
		GeoTimeoutSeconds: 5,
		ProbeURL:          checker.DefaultProbeURL,
		ProbeAddr:         checker.DefaultProbeAddr,
		GeoURL:            geo.DefaultIPAPIURL,
		SearchURL:         discovery.DefaultSearchURL,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file leave cfg untouched.
func LoadFile(path string, cfg *model.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports the first setting that cannot work.
func Validate(cfg model.Config) error {
	if _, err := model.ParseProtocol(cfg.ProxyType); err != nil {
		return err
	}
	if cfg.InputFile == "" && !cfg.Discover {
		return fmt.Errorf("--input is required unless --discover is set")
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", cfg.TimeoutSeconds)
	}
	if cfg.BatchTimeoutSeconds < 0 || cfg.Retries < 0 {
		return fmt.Errorf("batch_timeout and retries must not be negative")
	}
	if cfg.ReportFile != "" && cfg.ReportFormat != "json" && cfg.ReportFormat != "csv" {
		return fmt.Errorf("unsupported report format %q (want json | csv)", cfg.ReportFormat)
	}
	return nil
}
