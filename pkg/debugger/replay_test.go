package debugger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapelsoftware/iMacros-Remastered-sub004/pkg/breakpoint"
)

// fakeHost records everything the engine forwards to it.
type fakeHost struct {
	mu       sync.Mutex
	plays    []string
	sets     map[string]string
	extract  string
	errText  string
	playCode int
}

func newFakeHost() *fakeHost {
	return &fakeHost{sets: make(map[string]string), playCode: 1}
}

func (h *fakeHost) Play(macro string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.plays = append(h.plays, macro)
	return h.playCode
}

func (h *fakeHost) Set(name, value string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sets[name] = value
	return 1
}

func (h *fakeHost) LastExtract() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.extract
}

func (h *fakeHost) LastError() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errText
}

func (h *fakeHost) recorded() ([]string, map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	plays := append([]string(nil), h.plays...)
	sets := make(map[string]string, len(h.sets))
	for k, v := range h.sets {
		sets[k] = v
	}
	return plays, sets
}

func TestNormalizeVarName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"var1", "!VAR1"},
		{"VAR9", "!VAR9"},
		{"-var2", "!VAR2"},
		{"-!var1", "!VAR1"},
		{" var3 ", "!VAR3"},
		{"var10", "!VAR10"},
		{"extract", "!EXTRACT"},
		{"!extract", "!EXTRACT"},
		{"MyVar", "!MYVAR"},
		{"!TIMEOUT", "!TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeVarName(tt.in))
		})
	}
}

func TestEngineSetAndVariable(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, 1, e.Set("var1", "hello"))

	for _, spelling := range []string{"var1", "VAR1", "!VAR1", "-var1"} {
		value, ok := e.Variable(spelling)
		assert.True(t, ok, "spelling %q", spelling)
		assert.Equal(t, "hello", value)
	}

	_, ok := e.Variable("var2")
	assert.False(t, ok)
}

func TestEngineSetExtractUpdatesLastExtract(t *testing.T) {
	e := newTestEngine(t)

	e.Set("extract", "payload")
	assert.Equal(t, "payload", e.GetLastExtract())

	value, ok := e.Variable("!EXTRACT")
	assert.True(t, ok)
	assert.Equal(t, "payload", value)
}

func TestEnginePlayWithoutHost(t *testing.T) {
	e := newTestEngine(t)
	events := eventChan(e, EventPlayRequested)

	status := e.Play("CODE:TAG POS=1")
	assert.Equal(t, 1, status)

	ev := waitEvent(t, events, EventPlayRequested)
	assert.Equal(t, "CODE:TAG POS=1", ev.Data.(PlayData).Macro)
}

func TestEngineHostForwarding(t *testing.T) {
	host := newFakeHost()
	host.extract = "from host"
	host.errText = "timeout on page"
	host.playCode = -920

	e := newTestEngine(t, WithReplayHost(host))
	events := eventChan(e, EventPlayRequested)

	assert.Equal(t, -920, e.Play("Demo.iim"))
	e.Set("var1", "v")
	assert.Equal(t, "from host", e.GetLastExtract())
	assert.Equal(t, "timeout on page", e.GetLastError())

	plays, sets := host.recorded()
	assert.Equal(t, []string{"Demo.iim"}, plays)
	assert.Equal(t, "v", sets["!VAR1"], "forwarded names are normalized")

	// With a host configured, playRequested never fires.
	assertNoEvent(t, events, EventPlayRequested, 100*time.Millisecond)
}

func TestMacroIntegrationCalls(t *testing.T) {
	host := newFakeHost()
	host.extract = "payload"

	e := newTestEngine(t, WithReplayHost(host))
	events := eventChan(e, EventCompleted)

	mustLoad(t, e, `iimSet("var1", "alpha");
iimPlay("CODE:TAG POS=1 TYPE=A ATTR=TXT:More EXTRACT=TXT");
var extract = iimGetLastExtract();
extract;`)

	require.NoError(t, e.Run(context.Background()))
	completed := waitEvent(t, events, EventCompleted)
	data := completed.Data.(CompletionData)
	assert.True(t, data.Success)
	assert.Equal(t, "payload", data.ReturnValue)
	assert.Equal(t, "payload", data.Extract)

	plays, sets := host.recorded()
	require.Len(t, plays, 1)
	assert.Contains(t, plays[0], "EXTRACT=TXT")
	assert.Equal(t, "alpha", sets["!VAR1"])

	value, ok := e.Variable("var1")
	assert.True(t, ok)
	assert.Equal(t, "alpha", value)
}

func TestMacroPlayEmitsEventWithoutHost(t *testing.T) {
	e := newTestEngine(t)
	events := eventChan(e, EventPlayRequested, EventCompleted)

	mustLoad(t, e, `var status = iimPlay("Inner.iim");
status;`)

	require.NoError(t, e.Run(context.Background()))

	play := waitEvent(t, events, EventPlayRequested)
	assert.Equal(t, "Inner.iim", play.Data.(PlayData).Macro)
	assert.NotEmpty(t, play.RunID)

	completed := waitEvent(t, events, EventCompleted)
	assert.EqualValues(t, 1, completed.Data.(CompletionData).ReturnValue)
}

func TestBreakpointConditionCanQueryHost(t *testing.T) {
	host := newFakeHost()
	host.extract = "ready"

	e := newTestEngine(t, WithReplayHost(host))
	events := eventChan(e, EventPaused, EventCompleted)

	mustLoad(t, e, "var a = 1;\na = 2;\na;")
	_, err := e.AddBreakpoint(2, breakpoint.WithCondition(`getLastExtract() == "ready"`))
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background()))
	paused := waitEvent(t, events, EventPaused)
	assert.Equal(t, 2, paused.Data.(PauseData).Line)

	require.NoError(t, e.Run(context.Background()))
	waitEvent(t, events, EventCompleted)
}
