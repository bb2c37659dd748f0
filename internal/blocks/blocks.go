// Package blocks implements the status bar blocks.
//
// Every block runs in its own goroutine. It never touches the bar
// directly: it queues commands on its API and flushes them to the runtime,
// and it receives clicks and signals on its event channel.
package blocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/opd-ai/go-barstatus/internal/protocol"
)

// Decoder decodes a block's configuration table.
type Decoder interface {
	Decode(v any) error
}

// Block is a running status bar block.
type Block interface {
	// Run drives the block until ctx is done or the block fails. A nil
	// return means the block has nothing more to show.
	Run(ctx context.Context, api *API, events <-chan Event) error
}

// Factory creates a block from its configuration.
type Factory func(dec Decoder) (Block, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a block type available under name. It panics when name
// is registered twice.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("blocks: Register called twice for " + name)
	}
	registry[name] = factory
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Known reports whether a block type called name is registered.
func Known(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// Names lists the registered block types in order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates a block of type name.
func New(name string, dec Decoder) (Block, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown block type '%s'", name)
	}
	b, err := f(dec)
	if err != nil {
		return nil, &Error{Block: name, Message: "invalid configuration", Err: err}
	}
	return b, nil
}

// EventKind tells what an Event carries.
type EventKind int

const (
	// EventClick is a mouse click on the block or one of its buttons.
	EventClick EventKind = iota
	// EventRefresh asks the block to update now (SIGUSR1).
	EventRefresh
	// EventSignal is a real-time signal SIGRTMIN+Signal.
	EventSignal
)

// Event is delivered to a running block.
type Event struct {
	Kind EventKind
	// Button and Instance are set for clicks. Instance is the button id,
	// or protocol.NoID for a click on the block itself.
	Button   protocol.MouseButton
	Instance int
	// Signal is the real-time signal offset for EventSignal.
	Signal int
}

// Click returns a click event.
func Click(button protocol.MouseButton, instance int) Event {
	return Event{Kind: EventClick, Button: button, Instance: instance}
}

// Error is a block failure shown on the bar.
type Error struct {
	Block   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Block, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Block, e.Message, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorMessage returns the text shown on the bar for err: the message of
// a block Error, or the whole error otherwise.
func ErrorMessage(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

// fail wraps err as a block Error. It returns nil for a nil err.
func fail(block, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Block: block, Message: message, Err: err}
}
