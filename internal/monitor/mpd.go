package monitor

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// MPDState represents the current playback state of MPD.
type MPDState string

const (
	MPDStatePlaying MPDState = "playing"
	MPDStatePaused  MPDState = "paused"
	MPDStateStopped MPDState = "stopped"
	MPDStateUnknown MPDState = "unknown"
)

// MPDStats contains current MPD playback information.
type MPDStats struct {
	State  MPDState
	Artist string
	Album  string
	Title  string
	// Name is the stream name for radio streams.
	Name string
	// File is the filename or URI of the current track.
	File string
	// Elapsed and Length are in seconds.
	Elapsed float64
	Length  float64
	Volume  int
	Repeat  bool
	Random  bool
}

// MPDClient talks to a Music Player Daemon over its line protocol. Each
// call opens a fresh connection, so a restarted daemon is picked up on the
// next poll.
type MPDClient struct {
	// Addr is host:port, or an absolute path for a unix socket.
	Addr     string
	Password string
	Timeout  time.Duration

	dialer net.Dialer
}

// NewMPDClient creates a client for addr, defaulting to localhost:6600.
func NewMPDClient(addr, password string) *MPDClient {
	if addr == "" {
		addr = "localhost:6600"
	}
	return &MPDClient{Addr: addr, Password: password, Timeout: 5 * time.Second}
}

// Status returns the playback status and the current song.
func (c *MPDClient) Status(ctx context.Context) (MPDStats, error) {
	stats := MPDStats{State: MPDStateStopped}

	err := c.session(ctx, func(conn *mpdConn) error {
		status, err := conn.call("status")
		if err != nil {
			return err
		}
		parseStatus(status, &stats)

		song, err := conn.call("currentsong")
		if err != nil {
			return err
		}
		parseSong(song, &stats)
		return nil
	})
	if err != nil {
		return MPDStats{}, NewComponentError(ErrorSourceMPD, err)
	}
	return stats, nil
}

// Command sends a single playback command such as "next", "previous" or
// "pause 1".
func (c *MPDClient) Command(ctx context.Context, command string) error {
	err := c.session(ctx, func(conn *mpdConn) error {
		_, err := conn.call(command)
		return err
	})
	return NewComponentError(ErrorSourceMPD, err)
}

// TogglePause pauses when playing and resumes otherwise.
func (c *MPDClient) TogglePause(ctx context.Context) error {
	stats, err := c.Status(ctx)
	if err != nil {
		return err
	}
	switch stats.State {
	case MPDStatePlaying:
		return c.Command(ctx, "pause 1")
	case MPDStatePaused:
		return c.Command(ctx, "pause 0")
	default:
		return c.Command(ctx, "play")
	}
}

type mpdConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (c *MPDClient) session(ctx context.Context, fn func(*mpdConn) error) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	network := "tcp"
	if strings.HasPrefix(c.Addr, "/") {
		network = "unix"
	}
	conn, err := c.dialer.DialContext(ctx, network, c.Addr)
	if err != nil {
		return fmt.Errorf("connect to MPD: %w", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	mc := &mpdConn{conn: conn, reader: bufio.NewReader(conn)}
	greeting, err := mc.reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read greeting: %w", err)
	}
	if !strings.HasPrefix(greeting, "OK MPD") {
		return fmt.Errorf("unexpected greeting: %q", strings.TrimSpace(greeting))
	}

	if c.Password != "" {
		if _, err := mc.call("password " + quoteArg(c.Password)); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}
	return fn(mc)
}

// call sends a command and reads its key/value response until OK or ACK.
func (mc *mpdConn) call(command string) (map[string]string, error) {
	if _, err := fmt.Fprintf(mc.conn, "%s\n", command); err != nil {
		return nil, fmt.Errorf("send %s: %w", command, err)
	}

	data := make(map[string]string)
	for {
		line, err := mc.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read %s response: %w", command, err)
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "OK" {
			return data, nil
		}
		if strings.HasPrefix(line, "ACK") {
			return nil, fmt.Errorf("MPD error: %s", line)
		}
		if key, value, ok := strings.Cut(line, ": "); ok {
			data[strings.ToLower(key)] = value
		}
	}
}

func quoteArg(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func parseStatus(data map[string]string, stats *MPDStats) {
	switch data["state"] {
	case "play":
		stats.State = MPDStatePlaying
	case "pause":
		stats.State = MPDStatePaused
	case "stop", "":
		stats.State = MPDStateStopped
	default:
		stats.State = MPDStateUnknown
	}

	if v, err := strconv.Atoi(data["volume"]); err == nil {
		stats.Volume = v
	}
	stats.Repeat = data["repeat"] == "1"
	stats.Random = data["random"] == "1"

	if elapsed, ok := data["elapsed"]; ok {
		if e, err := strconv.ParseFloat(elapsed, 64); err == nil {
			stats.Elapsed = e
		}
	} else if elapsed, total, ok := strings.Cut(data["time"], ":"); ok {
		// Daemons older than 0.20 report "elapsed:total" in whole seconds.
		stats.Elapsed, _ = strconv.ParseFloat(elapsed, 64)
		stats.Length, _ = strconv.ParseFloat(total, 64)
	}

	if d, err := strconv.ParseFloat(data["duration"], 64); err == nil {
		stats.Length = d
	}
}

func parseSong(data map[string]string, stats *MPDStats) {
	stats.Artist = data["artist"]
	stats.Album = data["album"]
	stats.Title = data["title"]
	stats.Name = data["name"]
	stats.File = data["file"]
	if stats.Length == 0 {
		if d, err := strconv.ParseFloat(data["time"], 64); err == nil {
			stats.Length = d
		}
	}
}

// IsPlaying returns true if MPD is currently playing.
func (s MPDStats) IsPlaying() bool {
	return s.State == MPDStatePlaying
}

// DisplayTitle returns the song title, falling back to the stream name and
// then to the base name of the file.
func (s MPDStats) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	if s.Name != "" {
		return s.Name
	}
	if idx := strings.LastIndex(s.File, "/"); idx >= 0 {
		return s.File[idx+1:]
	}
	return s.File
}
