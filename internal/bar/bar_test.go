package bar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opd-ai/go-barstatus/internal/blocks"
	"github.com/opd-ai/go-barstatus/internal/config"
	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/signals"
	"github.com/opd-ai/go-barstatus/internal/themes"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

type scriptFunc func(ctx context.Context, api *blocks.API, events <-chan blocks.Event) error

type scriptBlock scriptFunc

func (s scriptBlock) Run(ctx context.Context, api *blocks.API, events <-chan blocks.Event) error {
	return s(ctx, api, events)
}

var flakyRuns atomic.Int32

// scripts are the behaviours of the test_script block, selected by its
// "script" option.
var scripts = map[string]scriptFunc{
	"hello": func(ctx context.Context, api *blocks.API, _ <-chan blocks.Event) error {
		if err := show(ctx, api, "hello"); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	},
	"silent": func(ctx context.Context, _ *blocks.API, _ <-chan blocks.Event) error {
		<-ctx.Done()
		return nil
	},
	"echo": func(ctx context.Context, api *blocks.API, events <-chan blocks.Event) error {
		if err := show(ctx, api, "ready"); err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				var text string
				switch ev.Kind {
				case blocks.EventClick:
					text = fmt.Sprintf("click %s %d", ev.Button, ev.Instance)
				case blocks.EventRefresh:
					text = "refreshed"
				case blocks.EventSignal:
					text = fmt.Sprintf("signal %d", ev.Signal)
				}
				if err := show(ctx, api, text); err != nil {
					return err
				}
			}
		}
	},
	"flaky": func(ctx context.Context, api *blocks.API, _ <-chan blocks.Event) error {
		if flakyRuns.Add(1) == 1 {
			return errors.New("boom")
		}
		if err := show(ctx, api, "recovered"); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	},
	"broken": func(context.Context, *blocks.API, <-chan blocks.Event) error {
		return &blocks.Error{Block: "broken", Message: "no device"}
	},
	"panics": func(context.Context, *blocks.API, <-chan blocks.Event) error {
		panic("oops")
	},
}

func show(ctx context.Context, api *blocks.API, text string) error {
	api.Show()
	api.SetText(text, "")
	return api.Flush(ctx)
}

func init() {
	blocks.Register("test_script", func(dec blocks.Decoder) (blocks.Block, error) {
		var c struct {
			Script string `toml:"script"`
		}
		if err := dec.Decode(&c); err != nil {
			return nil, err
		}
		run, ok := scripts[c.Script]
		if !ok {
			return nil, fmt.Errorf("unknown script %q", c.Script)
		}
		return scriptBlock(run), nil
	})
}

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

// lastLine returns the most recent status line.
func (b *syncBuffer) lastLine() string {
	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	return lines[len(lines)-1]
}

type harness struct {
	bar     *Bar
	metrics *Metrics
	out     *syncBuffer
	clicks  *io.PipeWriter
	sigs    chan signals.Signal
	errc    chan error
}

func startBar(t *testing.T, cfgText string, opts Options) *harness {
	t.Helper()
	cfg, err := config.Parse([]byte(cfgText))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	in, clicks := io.Pipe()
	h := &harness{
		metrics: NewMetrics(),
		out:     &syncBuffer{},
		clicks:  clicks,
		sigs:    make(chan signals.Signal),
		errc:    make(chan error, 1),
	}
	h.bar, err = New(ctx, cfg, opts, in, h.out, h.metrics)
	if err != nil {
		cancel()
		t.Fatalf("New: %v", err)
	}
	h.bar.listen = func(context.Context) <-chan signals.Signal { return h.sigs }

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		h.errc <- h.bar.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		clicks.Close()
		<-stopped
	})
	return h
}

func (h *harness) waitFor(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(h.out.lastLine(), want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status line never showed %q, last line: %s", want, h.out.lastLine())
}

func (h *harness) waitErr(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunPrintsBlocks(t *testing.T) {
	h := startBar(t, `
[[block]]
block = "test_script"
script = "silent"

[[block]]
block = "test_script"
script = "hello"
`, Options{})

	h.waitFor(t, `"full_text":" hello "`)
	out := h.out.String()
	if !strings.HasPrefix(out, `{"version": 1, "click_events": true}`+"\n[\n") {
		t.Errorf("missing protocol header: %q", out)
	}
	if strings.Contains(h.out.lastLine(), `"name":"0"`) {
		t.Errorf("hidden block was printed: %s", h.out.lastLine())
	}
	if !strings.Contains(h.out.lastLine(), `"name":"1"`) {
		t.Errorf("block id not carried in name: %s", h.out.lastLine())
	}
	if n := h.metrics.Snapshot().BlockStarts; n != 2 {
		t.Errorf("BlockStarts = %d, want 2", n)
	}
}

func TestRunNoInit(t *testing.T) {
	h := startBar(t, `
[[block]]
block = "test_script"
script = "hello"
`, Options{NoInit: true, NeverPause: true})

	h.waitFor(t, "hello")
	if strings.Contains(h.out.String(), "version") {
		t.Errorf("header written with NoInit: %q", h.out.String())
	}
}

func TestRunRestartsFailedBlock(t *testing.T) {
	flakyRuns.Store(0)
	h := startBar(t, `
[[block]]
block = "test_script"
script = "flaky"
error_interval = 0.05
`, Options{})

	h.waitFor(t, "recovered")
	if !strings.Contains(h.out.String(), "Error: boom") {
		t.Errorf("error widget never shown: %s", h.out.String())
	}
	snap := h.metrics.Snapshot()
	if snap.BlockErrors != 1 || snap.Restarts != 1 {
		t.Errorf("BlockErrors = %d, Restarts = %d, want 1 and 1", snap.BlockErrors, snap.Restarts)
	}
	if st := h.bar.slots[0].breaker.State(); st != CircuitClosed {
		t.Errorf("circuit = %s, want closed", st)
	}
}

func TestRunOpensCircuit(t *testing.T) {
	h := startBar(t, `
[[block]]
block = "test_script"
script = "broken"
error_interval = 0.01
`, Options{})

	h.waitFor(t, "Error: no device")
	deadline := time.Now().Add(5 * time.Second)
	for h.bar.slots[0].breaker.State() != CircuitOpen {
		if time.Now().After(deadline) {
			t.Fatal("circuit never opened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap := h.metrics.Snapshot()
	if snap.BlockErrors != 5 || snap.Restarts != 4 {
		t.Errorf("BlockErrors = %d, Restarts = %d, want 5 and 4", snap.BlockErrors, snap.Restarts)
	}
	if !strings.Contains(h.out.lastLine(), `"short_text":" X "`) {
		t.Errorf("error widget lacks short text: %s", h.out.lastLine())
	}
}

func TestRunRecoversPanics(t *testing.T) {
	h := startBar(t, `
[[block]]
block = "test_script"
script = "panics"
error_interval = 60
`, Options{})

	h.waitFor(t, "Error: panic: oops")
}

func TestRunExitOnError(t *testing.T) {
	h := startBar(t, `
[[block]]
block = "test_script"
script = "broken"
`, Options{ExitOnError: true})

	err := h.waitErr(t)
	var be *blocks.Error
	if !errors.As(err, &be) {
		t.Fatalf("Run() = %v, want a block error", err)
	}
	if !strings.Contains(err.Error(), "block 0 (test_script)") {
		t.Errorf("error %q does not name the block", err)
	}
}

func TestRunClicks(t *testing.T) {
	h := startBar(t, `
[[block]]
block = "test_script"
script = "hello"

[[block]]
block = "test_script"
script = "echo"

[[block.click]]
button = "right"
update = false
`, Options{})

	h.waitFor(t, "ready")
	_, err := io.WriteString(h.clicks, "[\n"+
		`{"name":"1","instance":"","button":3}`+"\n"+
		`,{"name":"7","button":1}`+"\n"+
		`,{"name":"1","instance":"2","button":1}`+"\n")
	if err != nil {
		t.Fatal(err)
	}
	h.waitFor(t, "click left 2")
	if strings.Contains(h.out.String(), "click right") {
		t.Error("right click reached the block although its entry does not update")
	}
	if n := h.metrics.Snapshot().Clicks; n != 2 {
		t.Errorf("Clicks = %d, want 2", n)
	}
}

func TestRunSignals(t *testing.T) {
	h := startBar(t, `
[[block]]
block = "test_script"
script = "echo"
`, Options{})

	h.waitFor(t, "ready")
	h.sigs <- signals.Signal{Kind: signals.Refresh}
	h.waitFor(t, "refreshed")
	h.sigs <- signals.Signal{Kind: signals.Custom, N: 4}
	h.waitFor(t, "signal 4")
	h.sigs <- signals.Signal{Kind: signals.Restart}
	if err := h.waitErr(t); !errors.Is(err, ErrRestart) {
		t.Errorf("Run() = %v, want ErrRestart", err)
	}
	if n := h.metrics.Snapshot().Signals; n != 3 {
		t.Errorf("Signals = %d, want 3", n)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     string
		blocks  int
		wantErr string
	}{
		{
			name: "if_command filters blocks",
			cfg: `
[[block]]
block = "test_script"
script = "hello"
if_command = "true"

[[block]]
block = "test_script"
script = "hello"
if_command = "false"
`,
			blocks: 1,
		},
		{
			name:    "unknown block",
			cfg:     "[[block]]\nblock = \"nope\"\n",
			wantErr: "nope",
		},
		{
			name:    "block config error",
			cfg:     "[[block]]\nblock = \"test_script\"\nscript = \"missing\"\n",
			wantErr: "unknown script",
		},
		{
			name:    "bad theme override",
			cfg:     "[[block]]\nblock = \"test_script\"\nscript = \"hello\"\ntheme_overrides = { idle_bg = \"nocolor\" }\n",
			wantErr: "block 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(tt.cfg))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			b, err := New(context.Background(), cfg, Options{}, strings.NewReader(""), io.Discard, nil)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("New() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if len(b.slots) != tt.blocks {
				t.Errorf("got %d blocks, want %d", len(b.slots), tt.blocks)
			}
			for i, s := range b.slots {
				if s.id != i {
					t.Errorf("slot %d has id %d", i, s.id)
				}
			}
		})
	}
}

func newTestSlot(t *testing.T) *slot {
	t.Helper()
	theme, err := themes.BuiltinTheme(themes.DefaultTheme)
	if err != nil {
		t.Fatal(err)
	}
	return &slot{id: 2, name: "test", theme: theme, widget: widget.New(2)}
}

func TestSlotApply(t *testing.T) {
	format, err := formatting.NewFormat("$x.str()", "")
	if err != nil {
		t.Fatal(err)
	}
	values := formatting.Values{"x": formatting.Text("hi")}

	tests := []struct {
		name    string
		cmds    []blocks.Cmd
		want    []string
		wantErr bool
	}{
		{
			name: "hidden by default",
			cmds: []blocks.Cmd{{Kind: blocks.CmdSetText, Full: "text"}},
		},
		{
			name: "text",
			cmds: []blocks.Cmd{{Kind: blocks.CmdShow}, {Kind: blocks.CmdSetText, Full: "text"}},
			want: []string{"text"},
		},
		{
			name: "render",
			cmds: []blocks.Cmd{
				{Kind: blocks.CmdShow},
				{Kind: blocks.CmdSetFormat, Format: format},
				{Kind: blocks.CmdSetValues, Values: values},
				{Kind: blocks.CmdRender},
			},
			want: []string{"hi"},
		},
		{
			name:    "render without format",
			cmds:    []blocks.Cmd{{Kind: blocks.CmdRender}},
			wantErr: true,
		},
		{
			name: "buttons",
			cmds: []blocks.Cmd{
				{Kind: blocks.CmdShow},
				{Kind: blocks.CmdSetText, Full: "main"},
				{Kind: blocks.CmdAddButton, Instance: 0, Icon: "<"},
				{Kind: blocks.CmdAddButton, Instance: 1, Icon: ">"},
				{Kind: blocks.CmdSetButton, Instance: 1, Icon: "}"},
			},
			want: []string{"main", "<", "}"},
		},
		{
			name: "collapsed",
			cmds: []blocks.Cmd{
				{Kind: blocks.CmdShow},
				{Kind: blocks.CmdSetIcon, Icon: "I"},
				{Kind: blocks.CmdSetText, Full: "text"},
				{Kind: blocks.CmdCollapse},
			},
			want: []string{"I"},
		},
		{
			name: "hide again",
			cmds: []blocks.Cmd{{Kind: blocks.CmdShow}, {Kind: blocks.CmdHide}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSlot(t)
			err := s.apply(tt.cmds)
			if (err != nil) != tt.wantErr {
				t.Fatalf("apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got := s.widgets()
			if len(got) != len(tt.want) {
				t.Fatalf("got %d widgets, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				if !strings.Contains(got[i].FullText, w) {
					t.Errorf("widget %d = %q, want it to contain %q", i, got[i].FullText, w)
				}
				if strings.Contains(tt.name, "collapsed") && strings.Contains(got[i].FullText, "text") {
					t.Errorf("collapsed widget shows its text: %q", got[i].FullText)
				}
			}
		})
	}
}

func TestSlotStateReachesButtons(t *testing.T) {
	s := newTestSlot(t)
	err := s.apply([]blocks.Cmd{
		{Kind: blocks.CmdShow},
		{Kind: blocks.CmdAddButton, Instance: 0, Icon: "b"},
		{Kind: blocks.CmdSetState, State: widget.StateWarning},
		{Kind: blocks.CmdAddButton, Instance: 1, Icon: "c"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.widget.State != widget.StateWarning {
		t.Errorf("widget state = %s", s.widget.State)
	}
	for _, btn := range s.buttons {
		if btn.State != widget.StateWarning {
			t.Errorf("button %d state = %s, want warning", btn.Instance, btn.State)
		}
	}
}

func TestSlotFailureWidget(t *testing.T) {
	s := newTestSlot(t)
	s.failure = "no device"
	got := s.widgets()
	if len(got) != 1 {
		t.Fatalf("got %d widgets, want 1", len(got))
	}
	if !strings.Contains(got[0].FullText, "Error: no device") || strings.TrimSpace(got[0].ShortText) != "X" {
		t.Errorf("failure widget = %q / %q", got[0].FullText, got[0].ShortText)
	}
}

func TestMinTick(t *testing.T) {
	rot, err := formatting.NewFormat("$x.rot-str(5,0.5)", "")
	if err != nil {
		t.Fatal(err)
	}
	static, err := formatting.NewFormat("$x.str()", "")
	if err != nil {
		t.Fatal(err)
	}

	a, b := newTestSlot(t), newTestSlot(t)
	bar := &Bar{slots: []*slot{a, b}}
	if d := bar.minTick(); d != 0 {
		t.Errorf("minTick() = %v with no animated format", d)
	}
	if err := a.apply([]blocks.Cmd{{Kind: blocks.CmdSetFormat, Format: rot}}); err != nil {
		t.Fatal(err)
	}
	if err := b.apply([]blocks.Cmd{{Kind: blocks.CmdSetFormat, Format: static}}); err != nil {
		t.Fatal(err)
	}
	if d := bar.minTick(); d != 500*time.Millisecond {
		t.Errorf("minTick() = %v, want 500ms", d)
	}
	a.failure = "gone"
	if d := bar.minTick(); d != 0 {
		t.Errorf("minTick() = %v with the animated block failed", d)
	}
}

func TestHealth(t *testing.T) {
	h := startBar(t, `
[[block]]
block = "test_script"
script = "hello"

[[block]]
block = "test_script"
script = "broken"
error_interval = 60
`, Options{})

	h.waitFor(t, "Error: no device")
	h.waitFor(t, "hello")

	check := h.bar.Health()
	if check.Status != HealthDegraded {
		t.Errorf("Status = %s, want degraded (%s)", check.Status, check.Message)
	}
	if len(check.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(check.Blocks))
	}
	tests := []struct {
		status  HealthStatus
		message string
	}{
		{HealthOK, ""},
		{HealthUnhealthy, "no device"},
	}
	for i, tt := range tests {
		got := check.Blocks[i]
		if got.Status != tt.status || got.Message != tt.message {
			t.Errorf("block %d = %s %q, want %s %q", i, got.Status, got.Message, tt.status, tt.message)
		}
		if got.Circuit != "closed" {
			t.Errorf("block %d circuit = %s, want closed", i, got.Circuit)
		}
	}
	if check.Blocks[0].LastUpdated.IsZero() {
		t.Error("running block has no update time")
	}
}

func TestHealthBeforeRun(t *testing.T) {
	cfg, err := config.Parse([]byte("[[block]]\nblock = \"test_script\"\nscript = \"hello\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(context.Background(), cfg, Options{}, strings.NewReader(""), io.Discard, nil)
	if err != nil {
		t.Fatal(err)
	}
	if check := b.Health(); check.Status != HealthUnhealthy || check.Uptime != 0 {
		t.Errorf("Health() = %s after %v, want unhealthy before Run", check.Status, check.Uptime)
	}
}
