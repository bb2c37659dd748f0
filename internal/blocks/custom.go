package blocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opd-ai/go-barstatus/internal/config"
	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/remote"
	"github.com/opd-ai/go-barstatus/internal/signals"
	"github.com/opd-ai/go-barstatus/internal/subprocess"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("custom", newCustom) }

type customConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	Command  *string   `toml:"command"`
	// Cycle is a list of commands run in turn, one per update.
	Cycle []string `toml:"cycle"`
	// JSON parses the output as {"text", "short_text", "state", "icon"}.
	JSON          bool   `toml:"json"`
	HideWhenEmpty bool   `toml:"hide_when_empty"`
	OneShot       bool   `toml:"one_shot"`
	Signal        *int   `toml:"signal"`
	Shell         string `toml:"shell"`
	// WatchFiles triggers an update whenever one of the files changes.
	WatchFiles []string       `toml:"watch_files"`
	Remote     *remote.Config `toml:"remote"`
}

// customOutput is the JSON schema of a json = true command.
type customOutput struct {
	Text      string `json:"text"`
	ShortText string `json:"short_text"`
	State     string `json:"state"`
	Icon      string `json:"icon"`
}

// runner runs a command line and returns its standard output.
type runner func(ctx context.Context, cmdline string) (string, error)

type customBlock struct {
	every         Interval
	formats       *Formats
	commands      []string
	next          int
	json          bool
	hideWhenEmpty bool
	signal        int
	hasSignal     bool
	watchFiles    []string
	run           runner
	remote        *remote.Conn
}

func newCustom(dec Decoder) (Block, error) {
	var cfg customConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.JSON && cfg.ShortFormat == nil {
		short := "{$short_text.str()}"
		cfg.ShortFormat = &short
	}
	formats, err := cfg.Build("$text.str()")
	if err != nil {
		return nil, err
	}
	b := &customBlock{
		every:         interval(cfg.Interval, 10),
		formats:       formats,
		commands:      cfg.Cycle,
		json:          cfg.JSON,
		hideWhenEmpty: cfg.HideWhenEmpty,
	}
	if len(b.commands) == 0 {
		if cfg.Command == nil {
			return nil, errors.New("either 'command' or 'cycle' must be specified")
		}
		b.commands = []string{*cfg.Command}
	}
	if cfg.OneShot {
		b.every = Once
	}
	if cfg.Signal != nil {
		if err := signals.Validate(*cfg.Signal); err != nil {
			return nil, err
		}
		b.signal, b.hasSignal = *cfg.Signal, true
	}

	shell := cfg.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	b.run = func(ctx context.Context, cmdline string) (string, error) {
		return subprocess.OutputShell(ctx, shell, cmdline)
	}
	if cfg.Remote != nil {
		if err := cfg.Remote.Validate(); err != nil {
			return nil, err
		}
		b.remote = remote.New(*cfg.Remote)
		b.run = b.remote.Run
	}

	for _, f := range cfg.WatchFiles {
		path, err := filepath.Abs(config.ExpandPath(f))
		if err != nil {
			return nil, fmt.Errorf("watch_files: %w", err)
		}
		b.watchFiles = append(b.watchFiles, path)
	}
	return b, nil
}

func (b *customBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if b.remote != nil {
		defer b.remote.Close()
	}

	var files fileWatch
	if len(b.watchFiles) > 0 {
		w, err := watchFiles(b.watchFiles)
		if err != nil {
			return fail("custom", "failed to watch files", err)
		}
		defer w.Close()
		files = fileWatch{names: make(map[string]bool), events: w.Events, errors: w.Errors}
		for _, f := range b.watchFiles {
			files.names[f] = true
		}
	}

	api.SetFormat(b.formats.Current())
	for {
		if err := b.update(ctx, api); err != nil {
			return err
		}
		if err := api.Flush(ctx); err != nil {
			return nil
		}
		if err := b.wait(ctx, api, events, &files); err != nil {
			return nil
		}
	}
}

// fileWatch is the fsnotify side of watch_files.
type fileWatch struct {
	names  map[string]bool
	events <-chan fsnotify.Event
	errors <-chan error
}

// watchFiles watches the directories holding files, so that files
// replaced by a rename keep being watched.
func watchFiles(files []string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dirs := make(map[string]bool)
	for _, f := range files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// wait blocks until the next update is due: the interval elapsed, a
// watched file changed, or an event for this block arrived. Other events
// do not restart the interval.
func (b *customBlock) wait(ctx context.Context, api *API, events <-chan Event, files *fileWatch) error {
	var timeout <-chan time.Time
	if d := b.every.Duration(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return nil
		case fe, ok := <-files.events:
			if !ok {
				files.events = nil
				continue
			}
			if files.names[filepath.Clean(fe.Name)] && fe.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				return nil
			}
		case err, ok := <-files.errors:
			if !ok {
				files.errors = nil
				continue
			}
			api.Log.Warn().Err(err).Msg("file watch error")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !b.wants(ev) {
				continue
			}
			if b.formats.HandleClick(ev) {
				api.SetFormat(b.formats.Current())
			}
			return nil
		}
	}
}

// wants reports whether ev triggers an update: clicks, refreshes and the
// block's own signal do.
func (b *customBlock) wants(ev Event) bool {
	switch ev.Kind {
	case EventClick, EventRefresh:
		return true
	case EventSignal:
		return b.hasSignal && ev.Signal == b.signal
	}
	return false
}

func (b *customBlock) update(ctx context.Context, api *API) error {
	cmdline := b.commands[b.next]
	b.next = (b.next + 1) % len(b.commands)

	out, err := b.run(ctx, cmdline)
	if err != nil {
		return fail("custom", "failed to run command", err)
	}
	out = strings.TrimSpace(out)

	if out == "" && b.hideWhenEmpty {
		api.Hide()
		return nil
	}
	if !b.json {
		api.Update(customOutput{Text: out}.values(), widget.StateIdle)
		return nil
	}

	var o customOutput
	if err := json.Unmarshal([]byte(out), &o); err != nil {
		return fail("custom", "invalid JSON", err)
	}
	if o.Text == "" && b.hideWhenEmpty {
		api.Hide()
		return nil
	}
	if err := api.SetIcon(o.Icon); err != nil {
		return fail("custom", fmt.Sprintf("unknown icon '%s'", o.Icon), err)
	}
	api.Update(o.values(), widget.ParseState(strings.ToLower(o.State)))
	return nil
}

func (o customOutput) values() formatting.Values {
	values := formatting.Values{"text": formatting.Text(o.Text)}
	if o.ShortText != "" {
		values["short_text"] = formatting.Text(o.ShortText)
	}
	return values
}
