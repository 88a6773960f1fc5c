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
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog/datatypes"
)

// Watcher re-applies latest configuration files when they change on disk.
//
// # Description
//
// OEM tooling can drop updated latest configs into the latest directory
// instead of calling the admin API. The watcher observes the directory,
// debounces write bursts (editors and atomic-rename writers fire several
// events per save), re-parses each changed well-known file, and applies the
// result as one Update batch. Files that fail to parse, carry a mismatched
// component, or are not one of the three well-known names are skipped with a
// log line; a failed batch leaves the engine unchanged.
//
// # Thread Safety
//
// Run is single-goroutine internally; the engine's own locking covers
// concurrent Updates from the admin API.
type Watcher struct {
	engine   *IoOveruseConfigs
	parser   ConfigParser
	dir      string
	debounce time.Duration

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	// OnUpdate, when set before Run, is invoked after every applied or
	// rejected batch. Used for metrics.
	OnUpdate func(success bool)

	// byFile maps a well-known file name to its component slot.
	byFile map[string]datatypes.ComponentType
}

// NewWatcher creates a watcher over the latest config directory.
//
// # Inputs
//
//   - engine: the live engine to apply updates to.
//   - parser: same parser used at construction time.
//   - paths: only LatestDir is watched; build configs are immutable.
func NewWatcher(engine *IoOveruseConfigs, parser ConfigParser, paths ConfigPaths) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	byFile := make(map[string]datatypes.ComponentType, 3)
	for component, path := range paths.latestFiles() {
		byFile[filepath.Base(path)] = component
	}
	return &Watcher{
		engine:   engine,
		parser:   parser,
		dir:      paths.LatestDir,
		debounce: 500 * time.Millisecond,
		watcher:  fsw,
		done:     make(chan struct{}),
		byFile:   byFile,
	}, nil
}

// Run watches until the context is canceled or Stop is called. The watched
// directory must exist; create it before starting the daemon.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	slog.Info("Watching latest resource overuse configs", "dir", w.dir)

	pending := make(map[string]datatypes.ComponentType)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pending) > 0 {
			w.applyChanged(pending)
			pending = make(map[string]datatypes.ComponentType)
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()
		case <-w.done:
			flush()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			component, known := w.byFile[filepath.Base(event.Name)]
			if !known {
				continue
			}
			pending[event.Name] = component
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}

// Stop terminates Run. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// applyChanged re-parses the changed files and applies them as one batch.
func (w *Watcher) applyChanged(changed map[string]datatypes.ComponentType) {
	var records []datatypes.ResourceOveruseConfiguration
	for path, component := range changed {
		record, err := w.parser.Parse(path)
		if err != nil {
			slog.Warn("Skipping changed config file", "path", path, "error", err)
			continue
		}
		if record.ComponentType != component {
			slog.Error("Ignoring changed config file with mismatched component",
				"path", path, "expected", component.String(), "actual", record.ComponentType.String())
			continue
		}
		records = append(records, *record)
	}
	if len(records) == 0 {
		return
	}
	err := w.engine.Update(records)
	if w.OnUpdate != nil {
		w.OnUpdate(err == nil)
	}
	if err != nil {
		slog.Error("Failed to apply changed resource overuse configs", "error", err)
		return
	}
	slog.Info("Applied changed resource overuse configs", "count", len(records))
}
