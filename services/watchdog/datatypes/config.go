// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ComponentType identifies the ownership tier of a package. Each tier has a
// distinct set of configuration fields it is permitted to update at runtime;
// the permission table lives in the ioconfig package.
type ComponentType int

const (
	// ComponentUnknown is the zero value; records carrying it fail validation.
	ComponentUnknown ComponentType = iota

	// ComponentSystem covers platform packages shipped on the system image.
	ComponentSystem

	// ComponentVendor covers OEM packages shipped on the vendor image.
	ComponentVendor

	// ComponentThirdParty covers everything installed by the user.
	ComponentThirdParty
)

// Components lists the three real component types in their fixed processing
// order. Iterating this slice instead of a map keeps merge results
// deterministic.
var Components = []ComponentType{ComponentSystem, ComponentVendor, ComponentThirdParty}

// String returns the canonical upper-case name used in configuration files
// and on the wire.
func (c ComponentType) String() string {
	switch c {
	case ComponentSystem:
		return "SYSTEM"
	case ComponentVendor:
		return "VENDOR"
	case ComponentThirdParty:
		return "THIRD_PARTY"
	default:
		return "UNKNOWN"
	}
}

// ParseComponentType parses a component name, case-insensitively.
func ParseComponentType(s string) (ComponentType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SYSTEM":
		return ComponentSystem, nil
	case "VENDOR":
		return ComponentVendor, nil
	case "THIRD_PARTY", "THIRDPARTY", "THIRD-PARTY":
		return ComponentThirdParty, nil
	default:
		return ComponentUnknown, fmt.Errorf("unknown component type %q", s)
	}
}

// MarshalJSON encodes the component as its canonical name.
func (c ComponentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a component name.
func (c *ComponentType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseComponentType(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ApplicationCategory is the coarse classification used for category-level
// threshold fallback. CategoryOthers means "no category"; only MAPS and MEDIA
// carry category-specific thresholds.
type ApplicationCategory int

const (
	// CategoryOthers is the default, unclassified category.
	CategoryOthers ApplicationCategory = iota

	// CategoryMaps covers navigation and mapping packages.
	CategoryMaps

	// CategoryMedia covers audio and video packages.
	CategoryMedia
)

// String returns the canonical category name.
func (a ApplicationCategory) String() string {
	switch a {
	case CategoryMaps:
		return "MAPS"
	case CategoryMedia:
		return "MEDIA"
	default:
		return "OTHERS"
	}
}

// ParseApplicationCategory parses a category name, case-insensitively.
// An empty string parses to CategoryOthers.
func ParseApplicationCategory(s string) (ApplicationCategory, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MAPS":
		return CategoryMaps, nil
	case "MEDIA":
		return CategoryMedia, nil
	case "OTHERS", "":
		return CategoryOthers, nil
	default:
		return CategoryOthers, fmt.Errorf("unknown application category %q", s)
	}
}

// MarshalJSON encodes the category as its canonical name.
func (a ApplicationCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a category name.
func (a *ApplicationCategory) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseApplicationCategory(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// UidType distinguishes application packages from native daemons. Native
// processes are never eligible for termination regardless of configuration.
type UidType int

const (
	// UidApplication marks a regular application package.
	UidApplication UidType = iota

	// UidNative marks a native platform daemon.
	UidNative
)

// String returns the canonical uid type name.
func (u UidType) String() string {
	if u == UidNative {
		return "NATIVE"
	}
	return "APPLICATION"
}

// ParseUidType parses a uid type name, case-insensitively. An empty string
// parses to UidApplication.
func ParseUidType(s string) (UidType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPLICATION", "":
		return UidApplication, nil
	case "NATIVE":
		return UidNative, nil
	default:
		return UidApplication, fmt.Errorf("unknown uid type %q", s)
	}
}

// IoOveruseConfig is one component's I/O overuse configuration.
type IoOveruseConfig struct {
	// ComponentLevelThreshold applies to every package of the component that
	// has no more specific threshold. Its Name must match the enclosing
	// record's component type.
	ComponentLevelThreshold PackageThreshold `json:"component_level_threshold"`

	// PackageSpecificThresholds overrides the component-level threshold for
	// individual packages. Settable by SYSTEM and VENDOR.
	PackageSpecificThresholds []PackageThreshold `json:"package_specific_thresholds,omitempty"`

	// CategorySpecificThresholds overrides per application category (MAPS,
	// MEDIA). Settable only by VENDOR; applies to packages of every
	// component during resolution.
	CategorySpecificThresholds []PackageThreshold `json:"category_specific_thresholds,omitempty"`

	// SystemWideAlertThresholds defines disk write rate alerts. Settable
	// only by SYSTEM.
	SystemWideAlertThresholds []AlertThreshold `json:"system_wide_alert_thresholds,omitempty"`
}

// ResourceSpecificConfig is a tagged variant holding one resource-specific
// configuration. I/O overuse is the only variant today; validation rejects
// records where the I/O variant is absent or appears more than once.
type ResourceSpecificConfig struct {
	IoOveruse *IoOveruseConfig `json:"io_overuse,omitempty"`
}

// PackageMetadata maps a package name to its application category.
type PackageMetadata struct {
	PackageName string              `json:"package_name"`
	AppCategory ApplicationCategory `json:"app_category"`
}

// ResourceOveruseConfiguration is the top-level per-component configuration
// record exchanged with the loader and the admin API.
type ResourceOveruseConfiguration struct {
	ComponentType ComponentType `json:"component_type"`

	// SafeToKillPackages lists packages of this component that may be
	// terminated as a corrective action. Settable by SYSTEM and VENDOR.
	SafeToKillPackages []string `json:"safe_to_kill_packages,omitempty"`

	// VendorPackagePrefixes lists package-name prefixes identifying vendor
	// packages. Settable only by VENDOR.
	VendorPackagePrefixes []string `json:"vendor_package_prefixes,omitempty"`

	// PackageMetadata maps packages to application categories. Settable by
	// SYSTEM and VENDOR; merged into a single cross-component view.
	PackageMetadata []PackageMetadata `json:"package_metadata,omitempty"`

	// ResourceSpecificConfigs carries the resource variants; exactly one
	// I/O overuse variant must be present.
	ResourceSpecificConfigs []ResourceSpecificConfig `json:"resource_specific_configs"`
}

// IoOveruseConfiguration returns the record's single I/O overuse variant, or
// an error when the variant is absent or duplicated.
func (r *ResourceOveruseConfiguration) IoOveruseConfiguration() (*IoOveruseConfig, error) {
	var found *IoOveruseConfig
	for i := range r.ResourceSpecificConfigs {
		if cfg := r.ResourceSpecificConfigs[i].IoOveruse; cfg != nil {
			if found != nil {
				return nil, fmt.Errorf("%s config defines multiple I/O overuse configurations", r.ComponentType)
			}
			found = cfg
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%s config defines no I/O overuse configuration", r.ComponentType)
	}
	return found, nil
}

// PackageIdentity is the resolution input supplied by the resource accounting
// pipeline for every tracked package.
type PackageIdentity struct {
	PackageName   string              `json:"package_name"`
	UidType       UidType             `json:"uid_type"`
	ComponentType ComponentType       `json:"component_type"`
	AppCategory   ApplicationCategory `json:"app_category"`
}
