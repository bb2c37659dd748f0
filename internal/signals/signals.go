// Package signals turns process signals into bar commands.
package signals

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"golang.org/x/sys/unix"
)

// Real-time signal bounds as seen by C programs linked against glibc, which
// is what users' `pkill -RTMIN+n` resolves against.
const (
	SIGRTMIN = 34
	SIGRTMAX = 64
)

// Kind distinguishes the signals the bar reacts to.
type Kind int

const (
	// Refresh asks every block to update (SIGUSR1).
	Refresh Kind = iota
	// Restart re-executes the bar in place (SIGUSR2).
	Restart
	// Custom is SIGRTMIN+N, delivered to blocks configured with signal N.
	Custom
)

// Signal is a received signal.
type Signal struct {
	Kind Kind
	// N is the real-time offset for Custom signals.
	N int
}

func (s Signal) String() string {
	switch s.Kind {
	case Refresh:
		return "USR1"
	case Restart:
		return "USR2"
	}
	return fmt.Sprintf("RTMIN+%d", s.N)
}

// Validate checks that n is a usable real-time offset.
func Validate(n int) error {
	if n < 0 || n > SIGRTMAX-SIGRTMIN {
		return fmt.Errorf("signal %d is out of bounds: an allowed signal needs to be between 0 and %d", n, SIGRTMAX-SIGRTMIN)
	}
	return nil
}

// Listen delivers signals until ctx is done.
func Listen(ctx context.Context) <-chan Signal {
	raw := make(chan os.Signal, 16)
	watched := []os.Signal{unix.SIGUSR1, unix.SIGUSR2}
	for n := SIGRTMIN; n <= SIGRTMAX; n++ {
		watched = append(watched, syscall.Signal(n))
	}
	signal.Notify(raw, watched...)

	out := make(chan Signal)
	go func() {
		defer signal.Stop(raw)
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-raw:
				sig, ok := translate(s)
				if !ok {
					continue
				}
				select {
				case out <- sig:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func translate(s os.Signal) (Signal, bool) {
	num, ok := s.(syscall.Signal)
	if !ok {
		return Signal{}, false
	}
	switch {
	case num == unix.SIGUSR1:
		return Signal{Kind: Refresh}, true
	case num == unix.SIGUSR2:
		return Signal{Kind: Restart}, true
	case int(num) >= SIGRTMIN && int(num) <= SIGRTMAX:
		return Signal{Kind: Custom, N: int(num) - SIGRTMIN}, true
	}
	return Signal{}, false
}

// NoInitFlag is appended to the arguments of a restarted bar so it skips
// the protocol header.
const NoInitFlag = "--no-init"

// RestartProcess replaces the current process with a fresh copy of
// itself. It only returns on error.
func RestartProcess() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	return unix.Exec(exe, RestartArgs(os.Args), os.Environ())
}

// RestartArgs returns args with NoInitFlag added once.
func RestartArgs(args []string) []string {
	out := slices.Clone(args)
	if !slices.Contains(out, NoInitFlag) {
		out = append(out, NoInitFlag)
	}
	return out
}
