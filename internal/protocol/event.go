package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// MouseButton identifies the button of a click event.
type MouseButton int

const (
	ButtonUnknown MouseButton = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
	ButtonWheelUp
	ButtonWheelDown
	ButtonForward
	ButtonBack
)

var buttonNames = map[MouseButton]string{
	ButtonUnknown:   "unknown",
	ButtonLeft:      "left",
	ButtonMiddle:    "middle",
	ButtonRight:     "right",
	ButtonWheelUp:   "up",
	ButtonWheelDown: "down",
	ButtonForward:   "forward",
	ButtonBack:      "back",
}

func (b MouseButton) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return "unknown"
}

// ButtonFromCode maps an X11 button number to a MouseButton.
func ButtonFromCode(code int) MouseButton {
	switch code {
	case 1:
		return ButtonLeft
	case 2:
		return ButtonMiddle
	case 3:
		return ButtonRight
	case 4:
		return ButtonWheelUp
	case 5:
		return ButtonWheelDown
	case 8:
		return ButtonBack
	case 9:
		return ButtonForward
	}
	return ButtonUnknown
}

// ParseButton accepts a button name as used in configuration files
// ("left", "up", ...) or an X11 button number.
func ParseButton(s string) MouseButton {
	if code, err := strconv.Atoi(s); err == nil {
		return ButtonFromCode(code)
	}
	for b, name := range buttonNames {
		if strings.EqualFold(name, s) {
			return b
		}
	}
	return ButtonUnknown
}

// NoID marks an event without block id or instance.
const NoID = -1

// Event is a click on a block.
type Event struct {
	// ID is the block id, or NoID.
	ID int
	// Instance is the button id within the block, or NoID.
	Instance int
	Button   MouseButton
}

type wireEvent struct {
	Name     string `json:"name"`
	Instance string `json:"instance"`
	Button   int    `json:"button"`
}

// ParseEvent decodes one line of the click event stream. The line may carry
// the leading '[' or ',' of the infinite array; only the text between the
// first '{' and the last '}' is decoded. ok is false for lines without an
// object.
func ParseEvent(line string, invertScrolling bool) (ev Event, ok bool, err error) {
	start := strings.IndexByte(line, '{')
	end := strings.LastIndexByte(line, '}')
	if start < 0 || end < start {
		return Event{}, false, nil
	}

	var w wireEvent
	if err := json.Unmarshal([]byte(line[start:end+1]), &w); err != nil {
		return Event{}, false, err
	}

	ev = Event{ID: NoID, Instance: NoID, Button: ButtonFromCode(w.Button)}
	if w.Name != "" {
		if ev.ID, err = strconv.Atoi(w.Name); err != nil {
			return Event{}, false, err
		}
	}
	if w.Instance != "" {
		if ev.Instance, err = strconv.Atoi(w.Instance); err != nil {
			return Event{}, false, err
		}
	}

	if invertScrolling {
		switch ev.Button {
		case ButtonWheelUp:
			ev.Button = ButtonWheelDown
		case ButtonWheelDown:
			ev.Button = ButtonWheelUp
		}
	}
	return ev, true, nil
}

// ReadEvents decodes click events from r until EOF or until ctx is done.
// Malformed lines are logged and skipped.
func ReadEvents(ctx context.Context, r io.Reader, invertScrolling bool, logger zerolog.Logger) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			ev, ok, err := ParseEvent(scanner.Text(), invertScrolling)
			if err != nil {
				logger.Warn().Err(err).Str("line", scanner.Text()).Msg("Skipping malformed click event")
				continue
			}
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Error().Err(err).Msg("Reading click events failed")
		}
	}()
	return events
}
