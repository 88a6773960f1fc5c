// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ioconfig implements the I/O overuse configuration engine: loading,
// merging, validating, and resolving per-package disk write thresholds.
//
// # Description
//
// The engine tracks one configuration per component (SYSTEM, VENDOR,
// THIRD_PARTY). Configurations arrive from two sources: the six well-known
// build/latest files read at construction time, and Update calls from the
// admin API at runtime. Every batch is validated and permission-filtered as a
// whole before any of it becomes visible; a failed batch leaves the previous
// state untouched.
//
// # Thread Safety
//
// IoOveruseConfigs is safe for concurrent use. A single RWMutex guards the
// resolved state: resolution calls (FetchThreshold, IsSafeToKill, accessors)
// take the read lock, Update takes the write lock only after the whole batch
// has been validated and assembled. Readers never observe a partially applied
// batch. All returned values are copies.
package ioconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog/datatypes"
)

// DefaultThreshold is returned by FetchThreshold for packages whose component
// has no configuration at all. The limits are effectively unbounded so that
// an unconfigured system never flags overuse.
var DefaultThreshold = datatypes.PerStateBytes{
	ForegroundBytes: math.MaxInt64,
	BackgroundBytes: math.MaxInt64,
	GarageModeBytes: math.MaxInt64,
}

// componentConfig is the resolved per-component state. Fields owned by a
// single component across the whole system (alert thresholds, category
// thresholds, vendor prefixes, package metadata) live on IoOveruseConfigs
// instead.
type componentConfig struct {
	componentLevelThreshold datatypes.PerStateBytes
	packageThresholds       map[string]datatypes.PerStateBytes
	safeToKillPackages      map[string]struct{}
}

// IoOveruseConfigs is the I/O overuse resource governance engine.
//
// Construct it with NewIoOveruseConfigs (loads the build/latest files) or
// NewEmptyIoOveruseConfigs (tests and callers that only use Update). One
// instance exists per watchdog process; it is passed explicitly to the
// resolution pipeline and the admin handlers.
type IoOveruseConfigs struct {
	mu sync.RWMutex

	// components holds the per-component state for every configured
	// component. Absence means "never configured"; resolution then falls
	// back to DefaultThreshold.
	components map[datatypes.ComponentType]*componentConfig

	// categoryThresholds is the vendor-owned category fallback table. It is
	// global: a third-party MAPS package resolves against it too.
	categoryThresholds map[datatypes.ApplicationCategory]datatypes.PerStateBytes

	// alertThresholds is the system-owned alert table, keyed by duration.
	alertThresholds map[int64]datatypes.AlertThreshold

	// vendorPrefixes identifies vendor packages by name prefix.
	vendorPrefixes []string

	// packagesToCategories is the merged package to application category
	// view across SYSTEM and VENDOR configurations.
	packagesToCategories map[string]datatypes.ApplicationCategory
}

// NewEmptyIoOveruseConfigs returns an engine with no configuration. Get
// returns an empty slice and FetchThreshold returns DefaultThreshold until
// the first successful Update.
func NewEmptyIoOveruseConfigs() *IoOveruseConfigs {
	return &IoOveruseConfigs{
		components:           make(map[datatypes.ComponentType]*componentConfig),
		categoryThresholds:   make(map[datatypes.ApplicationCategory]datatypes.PerStateBytes),
		alertThresholds:      make(map[int64]datatypes.AlertThreshold),
		packagesToCategories: make(map[string]datatypes.ApplicationCategory),
	}
}

// NewIoOveruseConfigs returns an engine initialized from the six well-known
// configuration files.
//
// # Description
//
// The three build files are applied as one batch, then the three latest files
// as a second batch; a latest record wholly replaces the same component's
// build record. Per-file failures (missing file, parse error, component slot
// mismatch) are logged and treated as absence; a batch that fails validation
// is logged and skipped. Afterwards, components still missing a configuration
// inherit the SYSTEM component-level threshold when SYSTEM was configured.
//
// # Inputs
//
//   - parser: file parser dependency; injected so tests can substitute
//     canned records for the filesystem.
//   - paths: the six candidate file paths.
//
// # Outputs
//
//   - *IoOveruseConfigs: ready engine; never nil. With no loadable files the
//     engine starts empty, which is not an error.
func NewIoOveruseConfigs(parser ConfigParser, paths ConfigPaths) *IoOveruseConfigs {
	c := NewEmptyIoOveruseConfigs()

	applyBatch := func(generation string, files map[datatypes.ComponentType]string) {
		var records []datatypes.ResourceOveruseConfiguration
		for _, component := range datatypes.Components {
			path := files[component]
			record, err := parser.Parse(path)
			if err != nil {
				slog.Debug("Skipping resource overuse config file",
					"generation", generation, "path", path, "error", err)
				continue
			}
			if record.ComponentType != component {
				slog.Error("Ignoring resource overuse config file with mismatched component",
					"generation", generation, "path", path,
					"expected", component.String(), "actual", record.ComponentType.String())
				continue
			}
			records = append(records, *record)
		}
		if len(records) == 0 {
			return
		}
		if err := c.Update(records); err != nil {
			slog.Error("Failed to apply resource overuse config batch",
				"generation", generation, "error", err)
		}
	}

	applyBatch("build", paths.buildFiles())
	applyBatch("latest", paths.latestFiles())
	c.deriveMissingComponentConfigs()
	return c
}

// deriveMissingComponentConfigs backfills VENDOR and THIRD_PARTY with the
// SYSTEM component-level threshold when their own files did not load. Without
// a SYSTEM configuration there is nothing to derive from and the missing
// components stay unconfigured.
func (c *IoOveruseConfigs) deriveMissingComponentConfigs() {
	c.mu.Lock()
	defer c.mu.Unlock()

	system, ok := c.components[datatypes.ComponentSystem]
	if !ok {
		return
	}
	for _, component := range []datatypes.ComponentType{datatypes.ComponentVendor, datatypes.ComponentThirdParty} {
		if _, ok := c.components[component]; ok {
			continue
		}
		c.components[component] = &componentConfig{
			componentLevelThreshold: system.componentLevelThreshold,
			packageThresholds:       make(map[string]datatypes.PerStateBytes),
			safeToKillPackages:      make(map[string]struct{}),
		}
		slog.Info("Derived component-level threshold from system configuration",
			"component", component.String())
	}
}

// pendingUpdate is a fully validated, permission-filtered batch, assembled
// outside the lock and swapped in atomically.
type pendingUpdate struct {
	components map[datatypes.ComponentType]*componentConfig

	hasSystem bool
	hasVendor bool

	alertThresholds      map[int64]datatypes.AlertThreshold
	categoryThresholds   map[datatypes.ApplicationCategory]datatypes.PerStateBytes
	vendorPrefixes       []string
	packagesToCategories map[string]datatypes.ApplicationCategory
}

// Update replaces the configurations of the components named in records.
//
// # Description
//
// The batch is all-or-nothing: any validation failure (duplicate component,
// missing or duplicated I/O overuse variant, invalid or mis-tagged
// component-level threshold, invalid alert threshold, conflicting package to
// category mappings) fails the whole call and leaves every component's live
// configuration unchanged. Fields a component is not permitted to set are
// silently dropped rather than rejected.
//
// Components absent from the batch keep their previous configuration.
//
// # Outputs
//
//   - error: the accumulated validation errors, or nil on success.
func (c *IoOveruseConfigs) Update(records []datatypes.ResourceOveruseConfiguration) error {
	pending, err := buildPendingUpdate(records)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for component, config := range pending.components {
		c.components[component] = config
	}
	if pending.hasSystem {
		c.alertThresholds = pending.alertThresholds
	}
	if pending.hasVendor {
		c.categoryThresholds = pending.categoryThresholds
		c.vendorPrefixes = pending.vendorPrefixes
	}
	// The metadata view is rebuilt from scratch whenever a batch contains a
	// component allowed to set it. A third-party-only batch leaves it alone.
	if pending.hasSystem || pending.hasVendor {
		c.packagesToCategories = pending.packagesToCategories
	}
	return nil
}

// buildPendingUpdate validates records and assembles the next state for the
// affected components. No engine state is read or written here.
func buildPendingUpdate(records []datatypes.ResourceOveruseConfiguration) (*pendingUpdate, error) {
	pending := &pendingUpdate{
		components:           make(map[datatypes.ComponentType]*componentConfig, len(records)),
		packagesToCategories: make(map[string]datatypes.ApplicationCategory),
	}

	var errs []error
	for i := range records {
		record := &records[i]
		component := record.ComponentType

		if component != datatypes.ComponentSystem && component != datatypes.ComponentVendor &&
			component != datatypes.ComponentThirdParty {
			errs = append(errs, fmt.Errorf("record %d carries unknown component type", i))
			continue
		}
		if _, dup := pending.components[component]; dup {
			errs = append(errs, fmt.Errorf("duplicate configuration for %s component", component))
			continue
		}

		ioConfig, err := record.IoOveruseConfiguration()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := validateComponentLevelThreshold(component, ioConfig.ComponentLevelThreshold); err != nil {
			errs = append(errs, err)
		}
		for _, alert := range ioConfig.SystemWideAlertThresholds {
			if !alert.IsValid() {
				errs = append(errs, fmt.Errorf(
					"%s config carries invalid alert threshold (duration %ds, %d bytes)",
					component, alert.DurationSeconds, alert.WrittenBytes))
			}
		}
		if err := mergeMetadata(pending.packagesToCategories, component, record.PackageMetadata); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			continue
		}

		config := &componentConfig{
			componentLevelThreshold: ioConfig.ComponentLevelThreshold.PerStateBytes,
			packageThresholds:       make(map[string]datatypes.PerStateBytes),
			safeToKillPackages:      make(map[string]struct{}),
		}

		// Permission filtering: fields a component may not set are dropped
		// here without failing the call.
		switch component {
		case datatypes.ComponentSystem:
			pending.hasSystem = true
			addPackageThresholds(config, ioConfig.PackageSpecificThresholds)
			addSafeToKill(config, record.SafeToKillPackages)
			pending.alertThresholds = dedupeAlertThresholds(ioConfig.SystemWideAlertThresholds)
		case datatypes.ComponentVendor:
			pending.hasVendor = true
			addPackageThresholds(config, ioConfig.PackageSpecificThresholds)
			addSafeToKill(config, record.SafeToKillPackages)
			pending.categoryThresholds = dedupeCategoryThresholds(ioConfig.CategorySpecificThresholds)
			pending.vendorPrefixes = deriveVendorPrefixes(record.VendorPackagePrefixes, config)
		case datatypes.ComponentThirdParty:
			// Third-party components may only set their component-level
			// threshold.
		}

		pending.components[component] = config
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return pending, nil
}

// validateComponentLevelThreshold checks that the component-level entry is
// tagged with the owning component's name and carries a usable limit.
func validateComponentLevelThreshold(component datatypes.ComponentType, threshold datatypes.PackageThreshold) error {
	tagged, err := datatypes.ParseComponentType(threshold.Name)
	if err != nil || tagged != component {
		return fmt.Errorf("%s config tags its component-level threshold %q", component, threshold.Name)
	}
	if !threshold.PerStateBytes.IsValid() {
		return fmt.Errorf("%s config carries an all-zero component-level threshold", component)
	}
	return nil
}

// mergeMetadata merges one record's package metadata into the batch view.
// Re-stating an existing mapping is idempotent; mapping the same package to a
// different category within the batch is an error. Metadata from third-party
// records is dropped.
func mergeMetadata(into map[string]datatypes.ApplicationCategory,
	component datatypes.ComponentType, metadata []datatypes.PackageMetadata) error {
	if component == datatypes.ComponentThirdParty {
		return nil
	}
	var errs []error
	for _, meta := range metadata {
		if existing, ok := into[meta.PackageName]; ok && existing != meta.AppCategory {
			errs = append(errs, fmt.Errorf(
				"package %q mapped to both %s and %s categories",
				meta.PackageName, existing, meta.AppCategory))
			continue
		}
		into[meta.PackageName] = meta.AppCategory
	}
	return errors.Join(errs...)
}

// addPackageThresholds indexes package-specific thresholds by package name.
// The last occurrence of a duplicated package wins.
func addPackageThresholds(config *componentConfig, thresholds []datatypes.PackageThreshold) {
	for _, threshold := range thresholds {
		config.packageThresholds[threshold.Name] = threshold.PerStateBytes
	}
}

func addSafeToKill(config *componentConfig, packages []string) {
	for _, name := range packages {
		config.safeToKillPackages[name] = struct{}{}
	}
}

// dedupeCategoryThresholds indexes category thresholds by parsed category,
// dropping entries naming an unknown category. The last occurrence of a
// duplicated category wins.
func dedupeCategoryThresholds(thresholds []datatypes.PackageThreshold) map[datatypes.ApplicationCategory]datatypes.PerStateBytes {
	out := make(map[datatypes.ApplicationCategory]datatypes.PerStateBytes)
	for _, threshold := range thresholds {
		category, err := datatypes.ParseApplicationCategory(threshold.Name)
		if err != nil || category == datatypes.CategoryOthers {
			slog.Warn("Dropping category threshold with unknown category", "name", threshold.Name)
			continue
		}
		out[category] = threshold.PerStateBytes
	}
	return out
}

// dedupeAlertThresholds indexes alert thresholds by duration. The first
// occurrence of a duplicated duration wins.
func dedupeAlertThresholds(thresholds []datatypes.AlertThreshold) map[int64]datatypes.AlertThreshold {
	out := make(map[int64]datatypes.AlertThreshold, len(thresholds))
	for _, alert := range thresholds {
		if _, ok := out[alert.DurationSeconds]; ok {
			continue
		}
		out[alert.DurationSeconds] = alert
	}
	return out
}

// deriveVendorPrefixes returns the supplied prefixes plus one prefix per
// vendor package (from package-specific thresholds and the safe-to-kill
// list) that no existing prefix covers. Without this, a vendor package that
// is configured individually but missed by every prefix would be
// misclassified as third-party by the accounting pipeline.
func deriveVendorPrefixes(supplied []string, config *componentConfig) []string {
	prefixes := make([]string, 0, len(supplied))
	prefixes = append(prefixes, supplied...)

	names := make([]string, 0, len(config.packageThresholds)+len(config.safeToKillPackages))
	for name := range config.packageThresholds {
		names = append(names, name)
	}
	for name := range config.safeToKillPackages {
		if _, ok := config.packageThresholds[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		covered := false
		for _, prefix := range prefixes {
			if strings.HasPrefix(name, prefix) {
				covered = true
				break
			}
		}
		if !covered {
			prefixes = append(prefixes, name)
		}
	}
	return prefixes
}

// FetchThreshold resolves the per-state write-byte threshold applicable to
// the given package.
//
// Resolution order: package-specific threshold under the package's component,
// then the global category threshold for the package's application category,
// then the component-level threshold. A component with no configuration at
// all resolves to DefaultThreshold.
func (c *IoOveruseConfigs) FetchThreshold(identity datatypes.PackageIdentity) datatypes.PerStateBytes {
	c.mu.RLock()
	defer c.mu.RUnlock()

	config, ok := c.components[identity.ComponentType]
	if !ok {
		return DefaultThreshold
	}
	if threshold, ok := config.packageThresholds[identity.PackageName]; ok {
		return threshold
	}
	if identity.AppCategory != datatypes.CategoryOthers {
		if threshold, ok := c.categoryThresholds[identity.AppCategory]; ok {
			return threshold
		}
	}
	return config.componentLevelThreshold
}

// IsSafeToKill reports whether the package may be terminated on overuse.
//
// Native daemons are never safe to kill. Third-party packages always are.
// System and vendor packages must be listed in their component's safe-to-kill
// set; an unconfigured component has an empty set.
func (c *IoOveruseConfigs) IsSafeToKill(identity datatypes.PackageIdentity) bool {
	if identity.UidType == datatypes.UidNative {
		return false
	}
	if identity.ComponentType == datatypes.ComponentThirdParty {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	config, ok := c.components[identity.ComponentType]
	if !ok {
		return false
	}
	_, safe := config.safeToKillPackages[identity.PackageName]
	return safe
}

// VendorPackagePrefixes returns a copy of the configured vendor package-name
// prefixes.
func (c *IoOveruseConfigs) VendorPackagePrefixes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, len(c.vendorPrefixes))
	copy(out, c.vendorPrefixes)
	return out
}

// SystemWideAlertThresholds returns a copy of the system-wide disk write
// alert thresholds, ordered by duration.
func (c *IoOveruseConfigs) SystemWideAlertThresholds() []datatypes.AlertThreshold {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedAlertThresholds(c.alertThresholds)
}

// PackagesToAppCategories returns a copy of the merged package to application
// category view across all configured components.
func (c *IoOveruseConfigs) PackagesToAppCategories() map[string]datatypes.ApplicationCategory {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]datatypes.ApplicationCategory, len(c.packagesToCategories))
	for name, category := range c.packagesToCategories {
		out[name] = category
	}
	return out
}

// Get returns a snapshot of every configured component's configuration.
//
// # Description
//
// The snapshot reconstructs full records from the resolved state: the SYSTEM
// record carries the alert thresholds, the VENDOR record carries the category
// thresholds and prefixes, and both carry the merged package metadata view.
// Components that were never configured (including the nothing-ever-loaded
// case, where the result is empty) are omitted. The returned records share no
// storage with the engine.
func (c *IoOveruseConfigs) Get() []datatypes.ResourceOveruseConfiguration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metadata := sortedMetadata(c.packagesToCategories)

	var out []datatypes.ResourceOveruseConfiguration
	for _, component := range datatypes.Components {
		config, ok := c.components[component]
		if !ok {
			continue
		}

		ioConfig := datatypes.IoOveruseConfig{
			ComponentLevelThreshold: datatypes.PackageThreshold{
				Name:          component.String(),
				PerStateBytes: config.componentLevelThreshold,
			},
			PackageSpecificThresholds: sortedPackageThresholds(config.packageThresholds),
		}

		record := datatypes.ResourceOveruseConfiguration{
			ComponentType:      component,
			SafeToKillPackages: sortedSet(config.safeToKillPackages),
		}

		switch component {
		case datatypes.ComponentSystem:
			ioConfig.SystemWideAlertThresholds = sortedAlertThresholds(c.alertThresholds)
			record.PackageMetadata = metadata
		case datatypes.ComponentVendor:
			ioConfig.CategorySpecificThresholds = sortedCategoryThresholds(c.categoryThresholds)
			record.VendorPackagePrefixes = append([]string(nil), c.vendorPrefixes...)
			record.PackageMetadata = metadata
		}

		record.ResourceSpecificConfigs = []datatypes.ResourceSpecificConfig{{IoOveruse: &ioConfig}}
		out = append(out, record)
	}
	return out
}

func sortedPackageThresholds(thresholds map[string]datatypes.PerStateBytes) []datatypes.PackageThreshold {
	if len(thresholds) == 0 {
		return nil
	}
	out := make([]datatypes.PackageThreshold, 0, len(thresholds))
	for name, bytes := range thresholds {
		out = append(out, datatypes.PackageThreshold{Name: name, PerStateBytes: bytes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedCategoryThresholds(thresholds map[datatypes.ApplicationCategory]datatypes.PerStateBytes) []datatypes.PackageThreshold {
	if len(thresholds) == 0 {
		return nil
	}
	out := make([]datatypes.PackageThreshold, 0, len(thresholds))
	for category, bytes := range thresholds {
		out = append(out, datatypes.PackageThreshold{Name: category.String(), PerStateBytes: bytes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedAlertThresholds(thresholds map[int64]datatypes.AlertThreshold) []datatypes.AlertThreshold {
	if len(thresholds) == 0 {
		return nil
	}
	out := make([]datatypes.AlertThreshold, 0, len(thresholds))
	for _, alert := range thresholds {
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationSeconds < out[j].DurationSeconds })
	return out
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sortedMetadata(mappings map[string]datatypes.ApplicationCategory) []datatypes.PackageMetadata {
	if len(mappings) == 0 {
		return nil
	}
	out := make([]datatypes.PackageMetadata, 0, len(mappings))
	for name, category := range mappings {
		out = append(out, datatypes.PackageMetadata{PackageName: name, AppCategory: category})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageName < out[j].PackageName })
	return out
}
