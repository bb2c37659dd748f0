package blocks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/subprocess"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

func init() { Register("pomodoro", newPomodoro) }

type pomodoroPhase int

const (
	phaseIdle pomodoroPhase = iota
	phaseWork
	phaseBreak
)

func (p pomodoroPhase) String() string {
	switch p {
	case phaseWork:
		return "work"
	case phaseBreak:
		return "break"
	}
	return "idle"
}

type pomodoroConfig struct {
	FormatOptions
	Interval *Interval `toml:"interval"`
	// TaskLength and BreakLength are in minutes.
	TaskLength   *float64 `toml:"task_length"`
	BreakLength  *float64 `toml:"break_length"`
	Pomodoros    *int     `toml:"pomodoros"`
	Message      *string  `toml:"message"`
	BreakMessage *string  `toml:"break_message"`
	// NotifyCmd is spawned at the end of every phase with {msg} replaced
	// by the message.
	NotifyCmd string `toml:"notify_cmd"`
}

// pomodoroBlock alternates work and break phases. A left click starts a
// session or pauses it, a middle click stops it.
type pomodoroBlock struct {
	every        Interval
	formats      *Formats
	task, rest   time.Duration
	total        int
	message      string
	breakMessage string
	notifyCmd    string
	now          func() time.Time
	notify       func(cmdline string) error

	phase    pomodoroPhase
	count    int
	deadline time.Time
	paused   bool
	left     time.Duration
}

func newPomodoro(dec Decoder) (Block, error) {
	var cfg pomodoroConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	formats, err := cfg.Build("$phase.str() $time.eng(3,s)")
	if err != nil {
		return nil, err
	}
	b := &pomodoroBlock{
		every:        interval(cfg.Interval, 1),
		formats:      formats,
		task:         minutes(orDefault(cfg.TaskLength, 25)),
		rest:         minutes(orDefault(cfg.BreakLength, 5)),
		total:        orDefault(cfg.Pomodoros, 4),
		message:      orDefault(cfg.Message, "Pomodoro over! Take a break!"),
		breakMessage: orDefault(cfg.BreakMessage, "Break over! Time to work!"),
		notifyCmd:    cfg.NotifyCmd,
		now:          time.Now,
		notify:       subprocess.Spawn,
	}
	if b.task <= 0 || b.rest <= 0 {
		return nil, fmt.Errorf("task_length and break_length must be positive")
	}
	if b.total < 1 {
		return nil, fmt.Errorf("pomodoros must be at least 1")
	}
	return b, nil
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

func (b *pomodoroBlock) Run(ctx context.Context, api *API, events <-chan Event) error {
	return updater{every: b.every, formats: b.formats, update: b.update, handle: b.handle}.run(ctx, api, events)
}

func (b *pomodoroBlock) update(_ context.Context, api *API) error {
	now := b.now()
	if msg := b.advance(now); msg != "" && b.notifyCmd != "" {
		if err := b.notify(strings.ReplaceAll(b.notifyCmd, "{msg}", msg)); err != nil {
			api.Log.Warn().Err(err).Msg("notify_cmd failed")
		}
	}

	icon := "pomodoro"
	if b.phase == phaseBreak {
		icon = "pomodoro_break"
	}
	if err := api.SetIcon(icon); err != nil {
		return fail("pomodoro", "missing icon", err)
	}
	if b.phase == phaseIdle {
		api.Collapse()
		api.SetState(widget.StateIdle)
		return nil
	}
	api.Update(b.values(now), b.state())
	return nil
}

// advance moves to the next phase once the deadline has passed and
// returns the message announcing it.
func (b *pomodoroBlock) advance(now time.Time) string {
	if b.paused || b.phase == phaseIdle || now.Before(b.deadline) {
		return ""
	}
	switch b.phase {
	case phaseWork:
		b.count++
		if b.count >= b.total {
			b.phase, b.count = phaseIdle, 0
		} else {
			b.phase, b.deadline = phaseBreak, now.Add(b.rest)
		}
		return b.message
	case phaseBreak:
		b.phase, b.deadline = phaseWork, now.Add(b.task)
		return b.breakMessage
	}
	return ""
}

func (b *pomodoroBlock) remaining(now time.Time) time.Duration {
	if b.paused {
		return b.left
	}
	return max(b.deadline.Sub(now), 0)
}

func (b *pomodoroBlock) values(now time.Time) formatting.Values {
	left := b.remaining(now)
	values := formatting.Values{
		"time":      formatting.Number(left.Round(time.Second).Seconds()).Seconds(),
		"remaining": formatting.Text(fmt.Sprintf("%d:%02d", int(left.Minutes()), int(left.Seconds())%60)),
		"pomodoro":  formatting.Int(int64(b.count)),
		"phase":     formatting.Text(b.phase.String()),
	}
	if b.paused {
		values["paused"] = formatting.Flag()
	}
	return values
}

func (b *pomodoroBlock) state() widget.State {
	switch {
	case b.paused:
		return widget.StateIdle
	case b.phase == phaseBreak:
		return widget.StateGood
	}
	return widget.StateWarning
}

func (b *pomodoroBlock) handle(_ context.Context, _ *API, ev Event) error {
	if ev.Kind != EventClick || ev.Instance != protocol.NoID {
		return nil
	}
	now := b.now()
	switch ev.Button {
	case protocol.ButtonLeft:
		switch {
		case b.phase == phaseIdle:
			b.phase, b.count, b.deadline = phaseWork, 0, now.Add(b.task)
		case b.paused:
			b.paused, b.deadline = false, now.Add(b.left)
		default:
			b.paused, b.left = true, b.remaining(now)
		}
	case protocol.ButtonMiddle:
		b.phase, b.count, b.paused = phaseIdle, 0, false
	}
	return nil
}
