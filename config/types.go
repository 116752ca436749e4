// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package config loads the producer and consumer configuration trees from
// YAML, with environment-variable substitution and override. Loaded values
// are not range-checked.
package config

import (
	"github.com/sage-x-project/audioslice/consumer"
	"github.com/sage-x-project/audioslice/producer"
)

// Config is the top-level configuration tree for either peer. A producer
// deployment populates Producer; a consumer deployment populates Consumer;
// a combined demo binary may populate both.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Producer    producer.Config `yaml:"producer" json:"producer"`
	Consumer    consumer.Config `yaml:"consumer" json:"consumer"`
	Logging     LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig   `yaml:"metrics" json:"metrics"`
	Health      HealthConfig    `yaml:"health" json:"health"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig controls the health-check HTTP endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// Default returns a Config populated with every field's spec-mandated
// default.
func Default() *Config {
	return &Config{
		Environment: "development",
		Producer:    producer.DefaultConfig(),
		Consumer:    consumer.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Enabled: true,
			Addr:    ":9091",
			Path:    "/healthz",
		},
	}
}
