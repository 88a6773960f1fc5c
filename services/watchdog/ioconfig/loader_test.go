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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog/datatypes"
)

const vendorConfigYAML = `
component: VENDOR
safe_to_kill_packages:
  - vendorPackageA
vendor_package_prefixes:
  - vendorPackage
package_metadata:
  - package_name: vendorMediaPackage
    app_category: MEDIA
io_overuse:
  component_level_threshold:
    name: VENDOR
    per_state_bytes:
      foreground_bytes: 1100
      background_bytes: 300
      garage_mode_bytes: 700
  package_specific_thresholds:
    - name: vendorPackageA
      per_state_bytes:
        foreground_bytes: 800
        background_bytes: 300
        garage_mode_bytes: 500
  category_specific_thresholds:
    - name: MAPS
      per_state_bytes:
        foreground_bytes: 700
        background_bytes: 900
        garage_mode_bytes: 1300
`

const systemConfigYAML = `
component: SYSTEM
io_overuse:
  component_level_threshold:
    name: SYSTEM
    per_state_bytes:
      foreground_bytes: 1200
      background_bytes: 1100
      garage_mode_bytes: 1500
  system_wide_alert_thresholds:
    - duration_seconds: 10
      written_bytes: 200
`

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestYAMLParserParsesVendorConfig(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), VendorConfigFileName, vendorConfigYAML)

	record, err := NewYAMLParser().Parse(path)
	require.NoError(t, err)

	assert.Equal(t, datatypes.ComponentVendor, record.ComponentType)
	assert.Equal(t, []string{"vendorPackageA"}, record.SafeToKillPackages)
	assert.Equal(t, []string{"vendorPackage"}, record.VendorPackagePrefixes)
	assert.Equal(t, []datatypes.PackageMetadata{
		{PackageName: "vendorMediaPackage", AppCategory: datatypes.CategoryMedia},
	}, record.PackageMetadata)

	io, err := record.IoOveruseConfiguration()
	require.NoError(t, err)
	assert.Equal(t, "VENDOR", io.ComponentLevelThreshold.Name)
	assert.Equal(t, perState(1100, 300, 700), io.ComponentLevelThreshold.PerStateBytes)
	require.Len(t, io.PackageSpecificThresholds, 1)
	assert.Equal(t, perState(800, 300, 500), io.PackageSpecificThresholds[0].PerStateBytes)
	require.Len(t, io.CategorySpecificThresholds, 1)
	assert.Equal(t, "MAPS", io.CategorySpecificThresholds[0].Name)
}

func TestYAMLParserParsesSystemConfig(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), SystemConfigFileName, systemConfigYAML)

	record, err := NewYAMLParser().Parse(path)
	require.NoError(t, err)

	io, err := record.IoOveruseConfiguration()
	require.NoError(t, err)
	assert.Equal(t, []datatypes.AlertThreshold{{DurationSeconds: 10, WrittenBytes: 200}},
		io.SystemWideAlertThresholds)
}

func TestYAMLParserRejectsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "{{{"},
		{"missing component", "io_overuse:\n  component_level_threshold:\n    name: SYSTEM\n"},
		{"missing io section", "component: SYSTEM\n"},
		{"unknown component", "component: KERNEL\nio_overuse:\n  component_level_threshold:\n    name: KERNEL\n    per_state_bytes:\n      foreground_bytes: 1\n      background_bytes: 1\n      garage_mode_bytes: 1\n"},
		{"negative bytes", "component: SYSTEM\nio_overuse:\n  component_level_threshold:\n    name: SYSTEM\n    per_state_bytes:\n      foreground_bytes: -5\n      background_bytes: 1\n      garage_mode_bytes: 1\n"},
		{"zero alert duration", systemConfigYAML + "    - duration_seconds: 0\n      written_bytes: 5\n"},
		{"unknown metadata category", "component: SYSTEM\npackage_metadata:\n  - package_name: pkg\n    app_category: GAMES\nio_overuse:\n  component_level_threshold:\n    name: SYSTEM\n    per_state_bytes:\n      foreground_bytes: 1\n      background_bytes: 1\n      garage_mode_bytes: 1\n"},
	}
	parser := NewYAMLParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, dir, "broken.yaml", tt.content)
			_, err := parser.Parse(path)
			assert.Error(t, err)
		})
	}
}

func TestYAMLParserMissingFile(t *testing.T) {
	_, err := NewYAMLParser().Parse(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewIoOveruseConfigsFromRealFiles(t *testing.T) {
	buildDir := t.TempDir()
	latestDir := t.TempDir()
	writeConfigFile(t, buildDir, SystemConfigFileName, systemConfigYAML)
	writeConfigFile(t, latestDir, VendorConfigFileName, vendorConfigYAML)

	configs := NewIoOveruseConfigs(NewYAMLParser(),
		ConfigPaths{BuildDir: buildDir, LatestDir: latestDir})

	assert.Equal(t, perState(1200, 1100, 1500), configs.FetchThreshold(
		identity("someApp", datatypes.UidApplication, datatypes.ComponentSystem, datatypes.CategoryOthers)))
	assert.Equal(t, perState(1100, 300, 700), configs.FetchThreshold(
		identity("vendorOther", datatypes.UidApplication, datatypes.ComponentVendor, datatypes.CategoryOthers)))
	assert.True(t, configs.IsSafeToKill(
		identity("vendorPackageA", datatypes.UidApplication, datatypes.ComponentVendor, datatypes.CategoryOthers)))
}
