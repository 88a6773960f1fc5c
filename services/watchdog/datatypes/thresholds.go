// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the value types and configuration records used by
// the I/O overuse governance engine.
//
// The types mirror the resource overuse configuration exchanged with OEM
// tooling: per-state write-byte thresholds, system-wide rate alerts, and the
// per-component configuration records that carry them. All types are plain
// values; the engine in services/watchdog/ioconfig owns merging, validation,
// and concurrency.
package datatypes

// PerStateBytes holds disk write-byte counts keyed by the vehicle operating
// state during which the writes happened.
//
// A threshold expressed as PerStateBytes is considered valid when at least
// one state has a positive limit; an all-zero threshold would flag every
// write as overuse and is rejected during validation.
type PerStateBytes struct {
	// ForegroundBytes is the limit while the package runs in the foreground.
	ForegroundBytes int64 `json:"foreground_bytes"`

	// BackgroundBytes is the limit while the package runs in the background.
	BackgroundBytes int64 `json:"background_bytes"`

	// GarageModeBytes is the limit while the vehicle is in garage mode
	// (parked, charging, running maintenance jobs).
	GarageModeBytes int64 `json:"garage_mode_bytes"`
}

// IsValid reports whether at least one per-state count is positive.
func (p PerStateBytes) IsValid() bool {
	return p.ForegroundBytes > 0 || p.BackgroundBytes > 0 || p.GarageModeBytes > 0
}

// PackageThreshold pairs a name with a per-state threshold. The name is a
// package name in package-specific lists, an application category name in
// category-specific lists, and the owning component's name for the
// component-level entry.
type PackageThreshold struct {
	Name          string        `json:"name"`
	PerStateBytes PerStateBytes `json:"per_state_bytes"`
}

// AlertThreshold defines a system-wide disk write rate alert: writing more
// than WrittenBytes within DurationSeconds raises an alert.
type AlertThreshold struct {
	DurationSeconds int64 `json:"duration_seconds"`
	WrittenBytes    int64 `json:"written_bytes"`
}

// IsValid reports whether both the duration and the byte count are positive.
func (a AlertThreshold) IsValid() bool {
	return a.DurationSeconds > 0 && a.WrittenBytes > 0
}
