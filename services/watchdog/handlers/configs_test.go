// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog/datatypes"
	"github.com/AleutianAI/AleutianVehicle/services/watchdog/ioconfig"
)

// =============================================================================
// Test Setup
// =============================================================================

func vendorRecord() datatypes.ResourceOveruseConfiguration {
	io := datatypes.IoOveruseConfig{
		ComponentLevelThreshold: datatypes.PackageThreshold{
			Name: "VENDOR",
			PerStateBytes: datatypes.PerStateBytes{
				ForegroundBytes: 1100, BackgroundBytes: 300, GarageModeBytes: 700,
			},
		},
		CategorySpecificThresholds: []datatypes.PackageThreshold{
			{Name: "MAPS", PerStateBytes: datatypes.PerStateBytes{
				ForegroundBytes: 700, BackgroundBytes: 900, GarageModeBytes: 1300,
			}},
		},
	}
	return datatypes.ResourceOveruseConfiguration{
		ComponentType:           datatypes.ComponentVendor,
		SafeToKillPackages:      []string{"vendorPackageA"},
		VendorPackagePrefixes:   []string{"vendorPackage"},
		ResourceSpecificConfigs: []datatypes.ResourceSpecificConfig{{IoOveruse: &io}},
	}
}

func newTestRouter(engine *ioconfig.IoOveruseConfigs) *gin.Engine {
	router := gin.New()
	router.GET("/configs", GetConfigs(engine))
	router.POST("/configs", UpdateConfigs(engine, nil))
	router.GET("/threshold", GetThreshold(engine, nil))
	return router
}

// =============================================================================
// GetConfigs Tests
// =============================================================================

func TestGetConfigs_EmptyEngine(t *testing.T) {
	router := newTestRouter(ioconfig.NewEmptyIoOveruseConfigs())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/configs", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response ConfigsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Empty(t, response.Configurations)
}

func TestGetConfigs_ReturnsConfiguredComponents(t *testing.T) {
	engine := ioconfig.NewEmptyIoOveruseConfigs()
	require.NoError(t, engine.Update([]datatypes.ResourceOveruseConfiguration{vendorRecord()}))
	router := newTestRouter(engine)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/configs", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response ConfigsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Configurations, 1)
	assert.Equal(t, datatypes.ComponentVendor, response.Configurations[0].ComponentType)
}

// =============================================================================
// UpdateConfigs Tests
// =============================================================================

func TestUpdateConfigs_AppliesValidBatch(t *testing.T) {
	engine := ioconfig.NewEmptyIoOveruseConfigs()
	router := newTestRouter(engine)

	payload, err := json.Marshal(UpdateConfigsRequest{
		Configurations: []datatypes.ResourceOveruseConfiguration{vendorRecord()},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/configs", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, engine.Get(), 1)
}

func TestUpdateConfigs_RejectsInvalidBatch(t *testing.T) {
	engine := ioconfig.NewEmptyIoOveruseConfigs()
	router := newTestRouter(engine)

	// A mis-tagged component-level threshold fails validation.
	record := vendorRecord()
	record.ResourceSpecificConfigs[0].IoOveruse.ComponentLevelThreshold.Name = "random name"
	payload, err := json.Marshal(UpdateConfigsRequest{
		Configurations: []datatypes.ResourceOveruseConfiguration{record},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/configs", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "component-level threshold")
	assert.Empty(t, engine.Get())
}

func TestUpdateConfigs_RejectsMalformedBody(t *testing.T) {
	router := newTestRouter(ioconfig.NewEmptyIoOveruseConfigs())

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{{{"},
		{"empty batch", `{"configurations": []}`},
		{"unknown component name", `{"configurations": [{"component_type": "KERNEL"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/configs", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

// =============================================================================
// GetThreshold Tests
// =============================================================================

func TestGetThreshold_ResolvesCategoryThreshold(t *testing.T) {
	engine := ioconfig.NewEmptyIoOveruseConfigs()
	require.NoError(t, engine.Update([]datatypes.ResourceOveruseConfiguration{vendorRecord()}))
	router := newTestRouter(engine)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET",
		"/threshold?package=com.vendor.maps&component=VENDOR&category=MAPS", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response ThresholdResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "com.vendor.maps", response.PackageName)
	assert.Equal(t, datatypes.ComponentVendor, response.ComponentType)
	assert.Equal(t, int64(700), response.Threshold.ForegroundBytes)
	assert.False(t, response.SafeToKill)
}

func TestGetThreshold_SafeToKillListedPackage(t *testing.T) {
	engine := ioconfig.NewEmptyIoOveruseConfigs()
	require.NoError(t, engine.Update([]datatypes.ResourceOveruseConfiguration{vendorRecord()}))
	router := newTestRouter(engine)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET",
		"/threshold?package=vendorPackageA&component=VENDOR", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response ThresholdResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.SafeToKill)
}

func TestGetThreshold_RejectsBadQueries(t *testing.T) {
	router := newTestRouter(ioconfig.NewEmptyIoOveruseConfigs())

	tests := []struct {
		name  string
		query string
	}{
		{"missing package", "component=VENDOR"},
		{"missing component", "package=foo"},
		{"unknown component", "package=foo&component=KERNEL"},
		{"unknown category", "package=foo&component=VENDOR&category=GAMES"},
		{"unknown uid type", "package=foo&component=VENDOR&uid_type=ROOT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/threshold?"+tt.query, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
