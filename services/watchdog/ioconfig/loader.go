// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ioconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog/datatypes"
)

// Canonical file names for the per-component configuration files. The same
// names are used in the build and latest directories.
const (
	SystemConfigFileName     = "system_resource_overuse_configuration.yaml"
	VendorConfigFileName     = "vendor_resource_overuse_configuration.yaml"
	ThirdPartyConfigFileName = "third_party_resource_overuse_configuration.yaml"
)

// Default directories. Build configs ship read-only with the image; latest
// configs are written at runtime by OEM pushes through the admin API.
const (
	DefaultBuildConfigDir  = "/etc/carwatchdog"
	DefaultLatestConfigDir = "/var/lib/carwatchdog"
)

// ConfigParser turns one on-disk configuration file into a record. It is a
// constructor dependency of the engine so tests can substitute canned records
// for the filesystem.
type ConfigParser interface {
	Parse(path string) (*datatypes.ResourceOveruseConfiguration, error)
}

// ConfigPaths names the six well-known configuration files: one build file
// and one latest file per component.
type ConfigPaths struct {
	BuildDir  string
	LatestDir string
}

// DefaultConfigPaths returns the production directories.
func DefaultConfigPaths() ConfigPaths {
	return ConfigPaths{BuildDir: DefaultBuildConfigDir, LatestDir: DefaultLatestConfigDir}
}

func componentFiles(dir string) map[datatypes.ComponentType]string {
	return map[datatypes.ComponentType]string{
		datatypes.ComponentSystem:     filepath.Join(dir, SystemConfigFileName),
		datatypes.ComponentVendor:     filepath.Join(dir, VendorConfigFileName),
		datatypes.ComponentThirdParty: filepath.Join(dir, ThirdPartyConfigFileName),
	}
}

func (p ConfigPaths) buildFiles() map[datatypes.ComponentType]string {
	return componentFiles(p.BuildDir)
}

func (p ConfigPaths) latestFiles() map[datatypes.ComponentType]string {
	return componentFiles(p.LatestDir)
}

// ===== YAML schema =====

// The on-disk schema is a flat YAML document per component. Field names stay
// close to the record model; validator tags reject structurally broken files
// before the engine sees them. Semantic validation (threshold tagging,
// permission filtering, metadata conflicts) stays in the engine.

type yamlPerStateBytes struct {
	ForegroundBytes int64 `yaml:"foreground_bytes" validate:"gte=0"`
	BackgroundBytes int64 `yaml:"background_bytes" validate:"gte=0"`
	GarageModeBytes int64 `yaml:"garage_mode_bytes" validate:"gte=0"`
}

type yamlPackageThreshold struct {
	Name          string            `yaml:"name" validate:"required"`
	PerStateBytes yamlPerStateBytes `yaml:"per_state_bytes" validate:"required"`
}

type yamlAlertThreshold struct {
	DurationSeconds int64 `yaml:"duration_seconds" validate:"gt=0"`
	WrittenBytes    int64 `yaml:"written_bytes" validate:"gt=0"`
}

type yamlIoOveruseConfig struct {
	ComponentLevelThreshold    yamlPackageThreshold   `yaml:"component_level_threshold" validate:"required"`
	PackageSpecificThresholds  []yamlPackageThreshold `yaml:"package_specific_thresholds" validate:"dive"`
	CategorySpecificThresholds []yamlPackageThreshold `yaml:"category_specific_thresholds" validate:"dive"`
	SystemWideAlertThresholds  []yamlAlertThreshold   `yaml:"system_wide_alert_thresholds" validate:"dive"`
}

type yamlPackageMetadata struct {
	PackageName string `yaml:"package_name" validate:"required"`
	AppCategory string `yaml:"app_category" validate:"required"`
}

type yamlConfigFile struct {
	Component             string                `yaml:"component" validate:"required"`
	SafeToKillPackages    []string              `yaml:"safe_to_kill_packages"`
	VendorPackagePrefixes []string              `yaml:"vendor_package_prefixes"`
	PackageMetadata       []yamlPackageMetadata `yaml:"package_metadata" validate:"dive"`
	IoOveruse             *yamlIoOveruseConfig  `yaml:"io_overuse" validate:"required"`
}

// YAMLParser is the production ConfigParser. It reads the YAML schema above,
// validates it structurally, and converts it to a configuration record.
type YAMLParser struct {
	validate *validator.Validate
}

// NewYAMLParser returns a ready parser. The validator instance caches struct
// metadata, so one parser should be reused across files.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Parse reads and converts the configuration file at path.
//
// # Outputs
//
//   - *ResourceOveruseConfiguration: the converted record; nil on error.
//   - error: read, decode, schema, or enum-name failures, wrapped with the
//     file path.
func (p *YAMLParser) Parse(path string) (*datatypes.ResourceOveruseConfiguration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var file yamlConfigFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := p.validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}

	record, err := convertConfigFile(&file)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", path, err)
	}
	return record, nil
}

func convertConfigFile(file *yamlConfigFile) (*datatypes.ResourceOveruseConfiguration, error) {
	component, err := datatypes.ParseComponentType(file.Component)
	if err != nil {
		return nil, err
	}

	ioConfig := datatypes.IoOveruseConfig{
		ComponentLevelThreshold:    convertPackageThreshold(file.IoOveruse.ComponentLevelThreshold),
		PackageSpecificThresholds:  convertPackageThresholds(file.IoOveruse.PackageSpecificThresholds),
		CategorySpecificThresholds: convertPackageThresholds(file.IoOveruse.CategorySpecificThresholds),
	}
	for _, alert := range file.IoOveruse.SystemWideAlertThresholds {
		ioConfig.SystemWideAlertThresholds = append(ioConfig.SystemWideAlertThresholds,
			datatypes.AlertThreshold{
				DurationSeconds: alert.DurationSeconds,
				WrittenBytes:    alert.WrittenBytes,
			})
	}

	record := &datatypes.ResourceOveruseConfiguration{
		ComponentType:           component,
		SafeToKillPackages:      file.SafeToKillPackages,
		VendorPackagePrefixes:   file.VendorPackagePrefixes,
		ResourceSpecificConfigs: []datatypes.ResourceSpecificConfig{{IoOveruse: &ioConfig}},
	}
	for _, meta := range file.PackageMetadata {
		category, err := datatypes.ParseApplicationCategory(meta.AppCategory)
		if err != nil {
			return nil, fmt.Errorf("package %q: %w", meta.PackageName, err)
		}
		record.PackageMetadata = append(record.PackageMetadata, datatypes.PackageMetadata{
			PackageName: meta.PackageName,
			AppCategory: category,
		})
	}
	return record, nil
}

func convertPackageThreshold(threshold yamlPackageThreshold) datatypes.PackageThreshold {
	return datatypes.PackageThreshold{
		Name: threshold.Name,
		PerStateBytes: datatypes.PerStateBytes{
			ForegroundBytes: threshold.PerStateBytes.ForegroundBytes,
			BackgroundBytes: threshold.PerStateBytes.BackgroundBytes,
			GarageModeBytes: threshold.PerStateBytes.GarageModeBytes,
		},
	}
}

func convertPackageThresholds(thresholds []yamlPackageThreshold) []datatypes.PackageThreshold {
	if len(thresholds) == 0 {
		return nil
	}
	out := make([]datatypes.PackageThreshold, 0, len(thresholds))
	for _, threshold := range thresholds {
		out = append(out, convertPackageThreshold(threshold))
	}
	return out
}
