// Copyright 2025 Chapel Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/internal/log"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/debugger"
	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/errors"
)

// fileWatcher reloads the macro into the engine whenever the file changes on
// disk. Changes are only applied between runs; a running or paused session is
// never swapped out from under the user.
type fileWatcher struct {
	path    string
	engine  *debugger.Engine
	output  io.Writer
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// newFileWatcher watches the macro file's directory rather than the file
// itself, since editors that save by rename would otherwise drop the watch.
func newFileWatcher(path string, engine *debugger.Engine, output io.Writer, logger *slog.Logger) (*fileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	return &fileWatcher{
		path:    absPath,
		engine:  engine,
		output:  output,
		logger:  log.WithComponent(logger, "filewatcher"),
		watcher: fsw,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching in the background.
func (w *fileWatcher) Start() {
	go w.eventLoop()
	w.logger.Debug("file watcher started", "path", w.path)
}

// Stop stops the watcher and releases resources.
func (w *fileWatcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

func (w *fileWatcher) eventLoop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", log.KeyError, err)
		}
	}
}

// handleEvent reloads the macro after a write or create of the watched file.
func (w *fileWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if w.engine.State() != debugger.StateIdle {
		w.logger.Debug("change ignored while a run is active", "path", w.path)
		return
	}

	source, err := os.ReadFile(w.path)
	if err != nil {
		fmt.Fprintf(w.output, "\nReload failed: %v\n", err)
		return
	}

	result, err := w.engine.LoadCode(string(source))
	if err != nil {
		// A run can start between the state check and the load. The old
		// code stays active; the next idle change will pick it up.
		var stateErr *errors.StateError
		if goerrors.As(err, &stateErr) {
			return
		}
		fmt.Fprintf(w.output, "\nReload failed: %v\n", err)
		return
	}

	fmt.Fprintf(w.output, "\nReloaded %s: %d executable lines, %d functions\n",
		w.path, len(result.EligibleLines), len(result.Functions))
}
