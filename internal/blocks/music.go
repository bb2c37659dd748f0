package blocks

import (
	"context"
	"slices"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/monitor"
	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("music", newMusic) }

// Button instances of the music block.
const (
	musicPrev = iota
	musicPlay
	musicNext
)

var musicButtons = map[string]int{"prev": musicPrev, "play": musicPlay, "next": musicNext}

type musicConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	// Address is host:port or the path of a unix socket.
	Address  string `toml:"address"`
	Password string `toml:"password"`
	// HideWhenEmpty hides the block instead of collapsing it to its icon
	// while nothing is playing.
	HideWhenEmpty bool `toml:"hide_when_empty"`
	// Buttons lists the buttons shown after the title, from "prev",
	// "play" and "next".
	Buttons *[]string `toml:"buttons"`
}

// player is the part of monitor.MPDClient the block uses.
type player interface {
	Status(ctx context.Context) (monitor.MPDStats, error)
	Command(ctx context.Context, command string) error
	TogglePause(ctx context.Context) error
}

type musicBlock struct {
	every         Interval
	formats       *Formats
	hideWhenEmpty bool
	buttons       []int
	player        player
}

func newMusic(dec Decoder) (Block, error) {
	var cfg musicConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("{$artist.str() - }$title.rot-str(20)")
	if err != nil {
		return nil, err
	}
	b := &musicBlock{
		every:         interval(cfg.Interval, 5),
		formats:       formats,
		hideWhenEmpty: cfg.HideWhenEmpty,
		buttons:       []int{musicPrev, musicPlay, musicNext},
		player:        monitor.NewMPDClient(cfg.Address, cfg.Password),
	}
	if cfg.Buttons != nil {
		b.buttons = b.buttons[:0]
		for _, name := range *cfg.Buttons {
			id, ok := musicButtons[name]
			if !ok {
				return nil, &Error{Block: "music", Message: "unknown button '" + name + "'"}
			}
			b.buttons = append(b.buttons, id)
		}
	}
	return b, nil
}

func (b *musicBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	if err := api.SetIcon("music"); err != nil {
		return fail("music", "missing icon", err)
	}
	for _, id := range b.buttons {
		if err := api.AddButton(id, musicButtonIcon(id, false)); err != nil {
			return fail("music", "missing icon", err)
		}
	}
	return updater{every: b.every, formats: b.formats, update: b.update, handle: b.handle}.run(ctx, api, events)
}

func (b *musicBlock) update(ctx context.Context, api *API) error {
	stats, err := b.player.Status(ctx)
	if err != nil {
		api.Log.Debug().Err(err).Msg("player not reachable")
		stats = monitor.MPDStats{State: monitor.MPDStateStopped}
	}
	if stats.State == monitor.MPDStateStopped || stats.State == monitor.MPDStateUnknown {
		if b.hideWhenEmpty {
			api.Hide()
		} else {
			api.Collapse()
		}
		return nil
	}

	if slices.Contains(b.buttons, musicPlay) {
		if err := api.SetButton(musicPlay, musicButtonIcon(musicPlay, stats.IsPlaying())); err != nil {
			return fail("music", "missing icon", err)
		}
	}
	state := widget.StateIdle
	if stats.IsPlaying() {
		state = widget.StateInfo
	}
	api.Update(musicValues(stats), state)
	return nil
}

func musicValues(s monitor.MPDStats) formatting.Values {
	values := formatting.Values{
		"title":    formatting.Text(s.DisplayTitle()),
		"state":    formatting.Text(string(s.State)),
		"elapsed":  formatting.Number(s.Elapsed).Seconds(),
		"duration": formatting.Number(s.Length).Seconds(),
	}
	if s.Artist != "" {
		values["artist"] = formatting.Text(s.Artist)
	}
	if s.Album != "" {
		values["album"] = formatting.Text(s.Album)
	}
	if s.IsPlaying() {
		values["playing"] = formatting.Flag()
	}
	return values
}

// handle runs the clicked button's command. A failed command is logged
// and the block keeps running.
func (b *musicBlock) handle(ctx context.Context, api *API, ev Event) error {
	if ev.Kind != EventClick || ev.Button != protocol.ButtonLeft {
		return nil
	}
	var err error
	switch ev.Instance {
	case musicPrev:
		err = b.player.Command(ctx, "previous")
	case musicPlay:
		err = b.player.TogglePause(ctx)
	case musicNext:
		err = b.player.Command(ctx, "next")
	}
	if err != nil {
		api.Log.Warn().Err(err).Int("button", ev.Instance).Msg("player command failed")
	}
	return nil
}

func musicButtonIcon(id int, playing bool) string {
	switch id {
	case musicPrev:
		return "music_prev"
	case musicNext:
		return "music_next"
	}
	if playing {
		return "music_pause"
	}
	return "music_play"
}
