// Package bar runs the configured blocks and prints the status line.
//
// Blocks run in their own goroutines and send their changes as requests
// on a shared channel. The runtime owns every widget: it applies the
// requests, prints the bar after each batch, and routes clicks and
// signals back to the blocks.
package bar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opd-ai/go-barstatus/internal/blocks"
	"github.com/opd-ai/go-barstatus/internal/click"
	"github.com/opd-ai/go-barstatus/internal/config"
	"github.com/opd-ai/go-barstatus/internal/formatting"
	"github.com/opd-ai/go-barstatus/internal/logging"
	"github.com/opd-ai/go-barstatus/internal/protocol"
	"github.com/opd-ai/go-barstatus/internal/signals"
	"github.com/opd-ai/go-barstatus/internal/subprocess"
	"github.com/opd-ai/go-barstatus/internal/themes"
	"github.com/opd-ai/go-barstatus/internal/widget"
)

// ErrRestart is returned by Run after SIGUSR2. The caller re-executes the
// process once Run has cleaned up.
var ErrRestart = errors.New("restart requested")

// eventBuffer is the number of undelivered events a block may have before
// further events are dropped.
const eventBuffer = 16

// Options are the command line switches that affect the runtime.
type Options struct {
	// ExitOnError stops the bar on the first block failure.
	ExitOnError bool
	// NeverPause asks the bar not to stop the process while hidden.
	NeverPause bool
	// NoInit skips the protocol header, for restarts in place.
	NoInit bool
}

type visibility int

const (
	hidden visibility = iota
	collapsed
	shown
)

// slot is the runtime side of one block.
type slot struct {
	id            int
	name          string
	block         blocks.Block
	click         *click.Handler
	theme         *themes.Theme
	iconsFormat   string
	errorInterval time.Duration
	breaker       *CircuitBreaker
	log           zerolog.Logger

	// gen tells the exits of successive runs apart.
	gen     int
	running bool
	probing bool
	cancel  context.CancelFunc
	events  chan blocks.Event

	visibility visibility
	widget     *widget.Widget
	buttons    []*widget.Widget
	format     *formatting.Format
	values     formatting.Values
	tick       time.Duration

	// failure is the message shown while the block is failed.
	failure string
}

type exit struct {
	id, gen int
	err     error
}

// Bar is the block runtime.
type Bar struct {
	cfg     *config.Config
	opts    Options
	in      io.Reader
	out     io.Writer
	printer *protocol.Printer
	metrics *Metrics
	health  healthBoard
	log     zerolog.Logger

	// listen is signals.Listen, replaced in tests.
	listen func(ctx context.Context) <-chan signals.Signal

	slots    []*slot
	requests chan blocks.Request
	exits    chan exit
	retries  chan int
	wg       sync.WaitGroup
}

// New creates the blocks of cfg. Blocks whose if_command fails are left
// out. Click events are read from in and the status line is written to out.
func New(ctx context.Context, cfg *config.Config, opts Options, in io.Reader, out io.Writer, metrics *Metrics) (*Bar, error) {
	if metrics == nil {
		metrics = NewMetrics()
	}
	b := &Bar{
		cfg:      cfg,
		opts:     opts,
		in:       in,
		out:      out,
		printer:  protocol.NewPrinter(out, cfg.Theme),
		metrics:  metrics,
		log:      logging.GetLogger("bar"),
		listen:   signals.Listen,
		requests: make(chan blocks.Request, 64),
		exits:    make(chan exit),
		retries:  make(chan int),
	}

	for _, bc := range cfg.Blocks {
		if bc.IfCommand != nil && !subprocess.Succeeds(ctx, *bc.IfCommand) {
			b.log.Info().Int("index", bc.Index).Str("block", bc.Type).Msg("if_command failed, skipping block")
			continue
		}
		blk, err := blocks.New(bc.Type, bc)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", bc.Index, err)
		}
		theme, err := bc.ResolveTheme(cfg.Theme)
		if err != nil {
			return nil, err
		}
		id := len(b.slots)
		log := logging.ForBlock(id, bc.Type)
		breakerCfg := DefaultCircuitBreakerConfig()
		breakerCfg.OnStateChange = func(from, to CircuitState) {
			log.Info().Str("from", from.String()).Str("to", to.String()).Msg("restart circuit changed")
		}
		b.slots = append(b.slots, &slot{
			id:            id,
			name:          bc.Type,
			block:         blk,
			click:         click.NewHandler(bc.Click),
			theme:         theme,
			iconsFormat:   bc.IconsFormat,
			errorInterval: bc.ErrorInterval,
			breaker:       NewCircuitBreaker(breakerCfg),
			log:           log,
			widget:        widget.New(id),
		})
		b.health.add(id, bc.Type)
	}
	return b, nil
}

// Run starts every block and serves requests, clicks and signals until
// ctx is done. It returns ErrRestart after SIGUSR2, and the block's error
// when a block fails with ExitOnError set.
func (b *Bar) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		b.wg.Wait()
	}()

	if !b.opts.NoInit {
		if err := protocol.WriteHeader(b.out, b.opts.NeverPause); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	b.health.start(time.Now())
	clicks := protocol.ReadEvents(ctx, b.in, b.cfg.InvertScrolling, b.log)
	sigs := b.listen(ctx)

	for _, s := range b.slots {
		b.start(ctx, s)
	}
	if err := b.print(); err != nil {
		return err
	}

	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
		period time.Duration
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		if d := b.minTick(); d != period {
			if ticker != nil {
				ticker.Stop()
				ticker, tickC = nil, nil
			}
			if d > 0 {
				ticker = time.NewTicker(d)
				tickC = ticker.C
			}
			period = d
		}

		var err error
		select {
		case <-ctx.Done():
			return nil

		case req := <-b.requests:
			err = b.handleRequest(ctx, req)
		drain:
			for err == nil {
				select {
				case req := <-b.requests:
					err = b.handleRequest(ctx, req)
				default:
					break drain
				}
			}

		case e := <-b.exits:
			err = b.handleExit(ctx, e)

		case id := <-b.retries:
			b.retry(ctx, b.slots[id])

		case ev, ok := <-clicks:
			if !ok {
				clicks = nil
				continue
			}
			b.handleClick(ev)
			continue

		case sig, ok := <-sigs:
			if !ok {
				sigs = nil
				continue
			}
			if err := b.handleSignal(sig); err != nil {
				return err
			}
			continue

		case <-tickC:
			err = b.tick(ctx)
		}

		if err != nil {
			return err
		}
		if err := b.print(); err != nil {
			return err
		}
	}
}

// start runs s.block in a new goroutine.
func (b *Bar) start(ctx context.Context, s *slot) {
	bctx, cancel := context.WithCancel(ctx)
	s.gen++
	s.running = true
	s.cancel = cancel
	s.events = make(chan blocks.Event, eventBuffer)

	id, gen, events := s.id, s.gen, s.events
	api := blocks.NewAPI(id, b.cfg.Icons, s.iconsFormat, b.requests, s.log)
	b.metrics.BlockStarted()
	s.log.Debug().Int("run", gen).Msg("starting block")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		err := runBlock(bctx, s.block, api, events)
		select {
		case b.exits <- exit{id: id, gen: gen, err: err}:
		case <-ctx.Done():
		}
	}()
}

func runBlock(ctx context.Context, blk blocks.Block, api *blocks.API, events <-chan blocks.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return blk.Run(ctx, api, events)
}

func (b *Bar) handleRequest(ctx context.Context, req blocks.Request) error {
	if req.ID < 0 || req.ID >= len(b.slots) {
		return nil
	}
	s := b.slots[req.ID]
	if s.failure != "" {
		return nil
	}
	if s.probing {
		s.probing = false
		s.breaker.RecordSuccess()
	}
	if err := s.apply(req.Cmds); err != nil {
		return b.fail(ctx, s, err)
	}
	b.health.updated(s.id, time.Now())
	return nil
}

func (b *Bar) handleExit(ctx context.Context, e exit) error {
	s := b.slots[e.id]
	if e.gen != s.gen {
		return nil
	}
	s.running = false
	b.metrics.BlockStopped()

	switch {
	case s.failure != "":
		// Failed while running; the goroutine is gone now.
		b.scheduleRetry(ctx, s)
		return nil
	case e.err == nil || ctx.Err() != nil:
		s.log.Debug().Msg("block finished")
		return nil
	}
	return b.fail(ctx, s, e.err)
}

// fail shows err in place of the block and arranges its restart.
func (b *Bar) fail(ctx context.Context, s *slot, err error) error {
	b.metrics.IncrementBlockErrors()
	s.log.Error().Err(err).Msg("block failed")
	if b.opts.ExitOnError {
		return fmt.Errorf("block %d (%s): %w", s.id, s.name, err)
	}

	s.breaker.RecordFailure()
	s.failure = blocks.ErrorMessage(err)
	b.health.failed(s.id, s.failure)
	s.buttons = nil
	s.probing = false
	if s.running {
		s.cancel()
		return nil
	}
	b.scheduleRetry(ctx, s)
	return nil
}

func (b *Bar) scheduleRetry(ctx context.Context, s *slot) {
	delay := max(s.errorInterval, s.breaker.RetryAfter())
	s.log.Debug().Dur("delay", delay).Str("circuit", s.breaker.State().String()).Msg("scheduling restart")
	id := s.id
	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
		select {
		case b.retries <- id:
		case <-ctx.Done():
		}
	}()
}

func (b *Bar) retry(ctx context.Context, s *slot) {
	if s.running || s.failure == "" {
		return
	}
	if !s.breaker.Allow() {
		b.scheduleRetry(ctx, s)
		return
	}
	b.metrics.IncrementRestarts()
	s.failure = ""
	s.probing = true
	s.visibility = hidden
	s.widget = widget.New(s.id)
	s.buttons = nil
	s.format = nil
	s.values = nil
	s.tick = 0
	b.start(ctx, s)
}

func (b *Bar) handleClick(ev protocol.Event) {
	if ev.ID < 0 || ev.ID >= len(b.slots) {
		return
	}
	b.metrics.IncrementClicks()
	s := b.slots[ev.ID]
	if s.failure != "" {
		return
	}
	forward, err := s.click.Handle(ev.Button)
	if err != nil {
		s.log.Warn().Err(err).Str("button", ev.Button.String()).Msg("click command failed")
	}
	if forward {
		b.deliver(s, blocks.Event{Kind: blocks.EventClick, Button: ev.Button, Instance: ev.Instance})
	}
}

func (b *Bar) handleSignal(sig signals.Signal) error {
	b.metrics.IncrementSignals()
	b.log.Debug().Str("signal", sig.String()).Msg("signal received")
	switch sig.Kind {
	case signals.Restart:
		return ErrRestart
	case signals.Refresh:
		for _, s := range b.slots {
			b.deliver(s, blocks.Event{Kind: blocks.EventRefresh})
		}
	case signals.Custom:
		for _, s := range b.slots {
			b.deliver(s, blocks.Event{Kind: blocks.EventSignal, Signal: sig.N})
		}
	}
	return nil
}

// deliver hands ev to a running block without blocking the runtime.
func (b *Bar) deliver(s *slot, ev blocks.Event) {
	if !s.running || s.failure != "" {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.log.Warn().Msg("event queue full, dropping event")
	}
}

// tick re-renders the blocks whose format animates.
func (b *Bar) tick(ctx context.Context) error {
	for _, s := range b.slots {
		if s.tick == 0 || s.failure != "" || s.visibility != shown {
			continue
		}
		if err := s.render(); err != nil {
			if err := b.fail(ctx, s, err); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Bar) minTick() time.Duration {
	var d time.Duration
	for _, s := range b.slots {
		if s.tick > 0 && s.failure == "" && (d == 0 || s.tick < d) {
			d = s.tick
		}
	}
	return d
}

func (b *Bar) print() error {
	start := time.Now()
	groups := make([][]protocol.Block, len(b.slots))
	for i, s := range b.slots {
		groups[i] = s.widgets()
	}
	if err := b.printer.Print(groups); err != nil {
		return fmt.Errorf("writing status line: %w", err)
	}
	b.metrics.RecordRender(time.Since(start))
	return nil
}

// apply runs the commands of one request in order.
func (s *slot) apply(cmds []blocks.Cmd) error {
	for _, c := range cmds {
		switch c.Kind {
		case blocks.CmdHide:
			s.visibility = hidden
		case blocks.CmdCollapse:
			s.visibility = collapsed
		case blocks.CmdShow:
			s.visibility = shown
		case blocks.CmdSetIcon:
			s.widget.Icon = c.Icon
		case blocks.CmdSetState:
			s.widget.State = c.State
			for _, btn := range s.buttons {
				btn.State = c.State
			}
		case blocks.CmdSetText:
			s.widget.SetText(c.Full, c.Short)
		case blocks.CmdSetValues:
			s.values = c.Values
		case blocks.CmdSetFormat:
			s.format = c.Format
			s.tick = 0
			if c.Format != nil {
				s.tick = c.Format.TickInterval()
			}
		case blocks.CmdAddButton:
			btn := widget.NewButton(s.id, c.Instance, c.Icon)
			btn.State = s.widget.State
			s.buttons = append(s.buttons, btn)
		case blocks.CmdSetButton:
			for _, btn := range s.buttons {
				if btn.Instance == c.Instance {
					btn.Icon = c.Icon
				}
			}
		case blocks.CmdRender:
			if err := s.render(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *slot) render() error {
	if s.format == nil {
		return &blocks.Error{Block: s.name, Message: "no format set"}
	}
	full, short, err := s.format.Render(s.values)
	if err != nil {
		return err
	}
	s.widget.SetText(full, short)
	return nil
}

// widgets returns what the block shows on the bar.
func (s *slot) widgets() []protocol.Block {
	if s.failure != "" {
		w := widget.New(s.id)
		w.State = widget.StateCritical
		w.SetText("Error: "+s.failure, "X")
		return []protocol.Block{w.Block(s.theme)}
	}
	switch s.visibility {
	case hidden:
		return nil
	case collapsed:
		return []protocol.Block{s.widget.Collapsed(s.theme)}
	}
	out := make([]protocol.Block, 0, 1+len(s.buttons))
	out = append(out, s.widget.Block(s.theme))
	for _, btn := range s.buttons {
		out = append(out, btn.Block(s.theme))
	}
	return out
}
