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
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/debugger"
)

// syncBuffer makes output safe to read while the watcher goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFileWatcherReloadsOnWrite(t *testing.T) {
	path := writeMacro(t, "var a = 1;")
	eng := newLoadedEngine(t, "var a = 1;")

	var out bytes.Buffer
	w, err := newFileWatcher(path, eng, &out, testLogger())
	require.NoError(t, err)
	defer w.watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte("var a = 1;\nvar b = 2;"), 0o644))
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})

	assert.Contains(t, out.String(), "Reloaded "+w.path)
	require.NotNil(t, eng.Loaded())
	assert.Len(t, eng.Loaded().EligibleLines, 2)
}

func TestFileWatcherIgnoresOtherFiles(t *testing.T) {
	path := writeMacro(t, "var a = 1;")
	eng := newLoadedEngine(t, "var a = 1;")

	var out bytes.Buffer
	w, err := newFileWatcher(path, eng, &out, testLogger())
	require.NoError(t, err)
	defer w.watcher.Close()

	w.handleEvent(fsnotify.Event{Name: path + ".bak", Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Chmod})

	assert.Empty(t, out.String())
}

func TestFileWatcherReportsBrokenReload(t *testing.T) {
	path := writeMacro(t, "var a = 1;")
	eng := newLoadedEngine(t, "var a = 1;")

	var out bytes.Buffer
	w, err := newFileWatcher(path, eng, &out, testLogger())
	require.NoError(t, err)
	defer w.watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte("var a = ;"), 0o644))
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})

	assert.Contains(t, out.String(), "Reload failed")
	assert.Len(t, eng.Loaded().EligibleLines, 1, "broken source must not replace the loaded code")
}

func TestFileWatcherSkipsActiveRun(t *testing.T) {
	path := writeMacro(t, "var a = 1;\nvar b = 2;")
	eng := newLoadedEngine(t, "var a = 1;\nvar b = 2;")
	_, err := eng.AddBreakpoint(1)
	require.NoError(t, err)

	paused := make(chan struct{}, 1)
	eng.On(debugger.EventPaused, func(debugger.Event) error {
		paused <- struct{}{}
		return nil
	})
	require.NoError(t, eng.Run(context.Background()))
	select {
	case <-paused:
	case <-time.After(5 * time.Second):
		t.Fatal("run never paused")
	}
	defer eng.Stop()

	var out bytes.Buffer
	w, err := newFileWatcher(path, eng, &out, testLogger())
	require.NoError(t, err)
	defer w.watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte("var changed = true;"), 0o644))
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})

	assert.NotContains(t, out.String(), "Reloaded")
	assert.Len(t, eng.Loaded().EligibleLines, 2, "the paused run keeps its code")
}

func TestFileWatcherEndToEnd(t *testing.T) {
	path := writeMacro(t, "var a = 1;")
	eng := newLoadedEngine(t, "var a = 1;")

	out := &syncBuffer{}
	w, err := newFileWatcher(path, eng, out, testLogger())
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("var a = 1;\nvar b = 2;"), 0o644))

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Reloaded")
	}, 5*time.Second, 10*time.Millisecond)
}
