package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// WindowReader reports the title of the focused X11 window. The X
// connection is opened lazily and reused until it fails.
type WindowReader struct {
	mu    sync.Mutex
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

// NewWindowReader creates a WindowReader for the display in $DISPLAY.
func NewWindowReader() *WindowReader {
	return &WindowReader{atoms: make(map[string]xproto.Atom)}
}

// Title returns the focused window's title, or "" when no window has focus.
// Without an X display it returns ErrNotAvailable.
func (r *WindowReader) Title() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureConn(); err != nil {
		return "", NewComponentError(ErrorSourceWindow, err)
	}
	title, err := r.activeTitle()
	if err != nil {
		r.closeLocked()
		return "", NewComponentError(ErrorSourceWindow, err)
	}
	return title, nil
}

// Watch sends the focused window's title each time the active window or
// its title changes. The channel is closed when ctx is done or the
// connection fails.
func (r *WindowReader) Watch(ctx context.Context) (<-chan string, error) {
	r.mu.Lock()
	if err := r.ensureConn(); err != nil {
		r.mu.Unlock()
		return nil, NewComponentError(ErrorSourceWindow, err)
	}
	conn, root := r.conn, r.root
	err := xproto.ChangeWindowAttributesChecked(conn, root, xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange}).Check()
	r.mu.Unlock()
	if err != nil {
		return nil, NewComponentError(ErrorSourceWindow, err)
	}

	titles := make(chan string)
	go func() {
		defer close(titles)
		go func() {
			<-ctx.Done()
			r.Close()
		}()

		var watched xproto.Window
		for {
			title, err := r.Title()
			if err != nil {
				return
			}
			if w, err := r.activeWindow(); err == nil && w != watched && w != xproto.WindowNone {
				// Title changes on the focused window arrive as PropertyNotify too.
				xproto.ChangeWindowAttributes(conn, w, xproto.CwEventMask,
					[]uint32{xproto.EventMaskPropertyChange})
				watched = w
			}
			select {
			case titles <- title:
			case <-ctx.Done():
				return
			}

			if !r.waitForChange(conn) {
				return
			}
		}
	}()
	return titles, nil
}

// waitForChange blocks until a property relevant to the title changes.
func (r *WindowReader) waitForChange(conn *xgb.Conn) bool {
	r.mu.Lock()
	active := r.atoms["_NET_ACTIVE_WINDOW"]
	netName := r.atoms["_NET_WM_NAME"]
	r.mu.Unlock()

	for {
		ev, err := conn.WaitForEvent()
		if ev == nil && err == nil {
			return false
		}
		if p, ok := ev.(xproto.PropertyNotifyEvent); ok {
			if p.Atom == active || p.Atom == netName || p.Atom == xproto.AtomWmName {
				return true
			}
		}
	}
}

// Close releases the X connection.
func (r *WindowReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *WindowReader) closeLocked() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	clear(r.atoms)
}

func (r *WindowReader) ensureConn() error {
	if r.conn != nil {
		return nil
	}
	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}
	setup := xproto.Setup(conn)
	if len(setup.Roots) == 0 {
		conn.Close()
		return fmt.Errorf("%w: no X screens", ErrNotAvailable)
	}
	r.conn = conn
	r.root = setup.DefaultScreen(conn).Root
	return nil
}

func (r *WindowReader) atom(name string) (xproto.Atom, error) {
	if atom, ok := r.atoms[name]; ok {
		return atom, nil
	}
	reply, err := xproto.InternAtom(r.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	r.atoms[name] = reply.Atom
	return reply.Atom, nil
}

func (r *WindowReader) activeWindow() (xproto.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return xproto.WindowNone, ErrNotAvailable
	}
	return r.activeWindowLocked()
}

func (r *WindowReader) activeWindowLocked() (xproto.Window, error) {
	activeAtom, err := r.atom("_NET_ACTIVE_WINDOW")
	if err != nil {
		return xproto.WindowNone, err
	}
	reply, err := xproto.GetProperty(r.conn, false, r.root, activeAtom,
		xproto.AtomWindow, 0, 1).Reply()
	if err == nil && reply != nil && len(reply.Value) >= 4 {
		return xproto.Window(xgb.Get32(reply.Value)), nil
	}

	// Window managers without EWMH support only have the input focus.
	focus, err := xproto.GetInputFocus(r.conn).Reply()
	if err != nil {
		return xproto.WindowNone, err
	}
	return focus.Focus, nil
}

func (r *WindowReader) activeTitle() (string, error) {
	window, err := r.activeWindowLocked()
	if err != nil {
		return "", err
	}
	if window == xproto.WindowNone || window == r.root || window == xproto.InputFocusPointerRoot {
		return "", nil
	}

	netName, err := r.atom("_NET_WM_NAME")
	if err != nil {
		return "", err
	}
	utf8, err := r.atom("UTF8_STRING")
	if err != nil {
		return "", err
	}

	var netValue, legacyValue []byte
	if reply, err := xproto.GetProperty(r.conn, false, window, netName, utf8, 0, 1024).Reply(); err == nil {
		netValue = reply.Value
	}
	if len(netValue) == 0 {
		if reply, err := xproto.GetProperty(r.conn, false, window, xproto.AtomWmName,
			xproto.AtomString, 0, 1024).Reply(); err == nil {
			legacyValue = reply.Value
		}
	}
	return decodeWindowTitle(netValue, legacyValue), nil
}

// decodeWindowTitle prefers the UTF-8 _NET_WM_NAME over the Latin-1
// WM_NAME.
func decodeWindowTitle(netWMName, wmName []byte) string {
	if len(netWMName) > 0 {
		return strings.TrimRight(string(netWMName), "\x00")
	}
	runes := make([]rune, 0, len(wmName))
	for _, b := range wmName {
		if b == 0 {
			break
		}
		runes = append(runes, rune(b))
	}
	return string(runes)
}
