package bms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iisquazar/qdt-bms/internal/logging"
	"go.bug.st/serial"
)

// ErrNoPortFound is the normal outcome of a scan where every candidate
// failed to open or answered nothing. Callers handle it by ending
// gracefully, not by treating it as a crash.
var ErrNoPortFound = errors.New("no working serial port found")

// Locator scans the enumerated serial devices for one that actually
// answers the query. USB adapters open fine while wired to the wrong
// device, so every candidate is probed with a full exchange before it
// is accepted.
type Locator struct {
	PathPrefix  string
	Baud        int
	ReadTimeout time.Duration
	Settle      time.Duration

	// Overridable for tests; nil selects the real serial stack.
	List func() ([]string, error)
	Open func(path string) (Port, error)
}

// Locate returns the first candidate that opens and answers a non-empty
// probe, still open, together with its path. Candidates that open but
// stay silent are closed before moving on; open failures are skipped,
// they are expected while scanning.
func (l *Locator) Locate(ctx context.Context) (Port, string, error) {
	list := l.List
	if list == nil {
		list = serial.GetPortsList
	}
	open := l.Open
	if open == nil {
		open = l.openSerial
	}

	available, err := list()
	if err != nil {
		return nil, "", fmt.Errorf("enumerate serial ports: %w", err)
	}

	var candidates []string
	for _, path := range available {
		if strings.HasPrefix(path, l.PathPrefix) {
			candidates = append(candidates, path)
		}
	}
	logging.Debug("scanning serial candidates", "prefix", l.PathPrefix, "count", len(candidates))

	for _, path := range candidates {
		port, err := open(path)
		if err != nil {
			logging.Debug("candidate open failed", "port", path, "error", err)
			continue
		}

		data, err := Exchange(ctx, port, l.Settle)
		if err == nil && len(data) > 0 {
			return port, path, nil
		}
		port.Close()
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		logging.Debug("candidate probe empty", "port", path, "error", err)
	}
	return nil, "", ErrNoPortFound
}

func (l *Locator) openSerial(path string) (Port, error) {
	mode := &serial.Mode{
		BaudRate: l.Baud,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(l.ReadTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}
