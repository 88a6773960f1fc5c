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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog/datatypes"
)

func TestWatcherAppliesChangedLatestConfig(t *testing.T) {
	paths := ConfigPaths{BuildDir: t.TempDir(), LatestDir: t.TempDir()}
	engine := NewEmptyIoOveruseConfigs()

	watcher, err := NewWatcher(engine, NewYAMLParser(), paths)
	require.NoError(t, err)
	watcher.debounce = 50 * time.Millisecond
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeConfigFile(t, paths.LatestDir, VendorConfigFileName, vendorConfigYAML)

	assert.Eventually(t, func() bool {
		got := engine.FetchThreshold(
			identity("vendorOther", datatypes.UidApplication, datatypes.ComponentVendor, datatypes.CategoryOthers))
		return got == perState(1100, 300, 700)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcherIgnoresUnknownAndBrokenFiles(t *testing.T) {
	paths := ConfigPaths{BuildDir: t.TempDir(), LatestDir: t.TempDir()}
	engine := NewEmptyIoOveruseConfigs()

	watcher, err := NewWatcher(engine, NewYAMLParser(), paths)
	require.NoError(t, err)
	watcher.debounce = 50 * time.Millisecond
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	writeConfigFile(t, paths.LatestDir, "notes.yaml", vendorConfigYAML)
	writeConfigFile(t, paths.LatestDir, SystemConfigFileName, "{{{")

	// Neither file may configure anything.
	time.Sleep(500 * time.Millisecond)
	assert.Empty(t, engine.Get())
}

func TestWatcherRunFailsWithoutDirectory(t *testing.T) {
	paths := ConfigPaths{BuildDir: "/nonexistent", LatestDir: "/nonexistent/latest"}
	watcher, err := NewWatcher(NewEmptyIoOveruseConfigs(), NewYAMLParser(), paths)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.Error(t, watcher.Run(context.Background()))
}
