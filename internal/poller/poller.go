package poller

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/iisquazar/qdt-bms/internal/bms"
	"github.com/iisquazar/qdt-bms/internal/logging"
)

// Publisher receives the outcome of each poll cycle. The console sink
// and the MQTT reading publisher both implement it.
type Publisher interface {
	Publish(ctx context.Context, res Result) error
}

// Result is the outcome of one poll cycle. A nil Reading means the
// device sent no data or an incomplete response this cycle.
type Result struct {
	At      time.Time
	Reading *bms.Reading
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Measurements int           // fixed cycle count per run
	Interval     time.Duration // pause between cycles
	Settle       time.Duration // pause between query write and response read
}

// Poller drives a fixed number of query/parse cycles over one transport.
// It never closes the port; the caller owns it.
type Poller struct {
	cfg  Config
	port io.ReadWriter
	pubs []Publisher

	now func() time.Time // test hook
}

// New creates a poller with immutable config.
func New(cfg Config, port io.ReadWriter, pubs ...Publisher) (*Poller, error) {
	if cfg.Measurements <= 0 {
		return nil, errors.New("poller: measurement count must be > 0")
	}
	if cfg.Interval < 0 {
		return nil, errors.New("poller: interval cannot be negative")
	}
	if port == nil {
		return nil, errors.New("poller: transport required")
	}
	if len(pubs) == 0 {
		return nil, errors.New("poller: at least one publisher required")
	}
	return &Poller{cfg: cfg, port: port, pubs: pubs, now: time.Now}, nil
}

// RunOnce performs exactly one query/parse cycle and fans the result out
// to every publisher. Device irregularities (no data, short response)
// end up as a nil-Reading result, never as an error.
func (p *Poller) RunOnce(ctx context.Context) Result {
	data, err := bms.Exchange(ctx, p.port, p.cfg.Settle)
	res := Result{At: p.now()}

	switch {
	case err != nil:
		if ctx.Err() != nil {
			return res // cancelled mid-cycle, nothing to report
		}
		logging.Warn("exchange failed", "error", err)
	case bms.Complete(data):
		r := bms.ParseReading(data)
		res.Reading = &r
	default:
		logging.Debug("incomplete response", "bytes", len(data))
	}

	p.publish(ctx, res)
	return res
}

// Run performs the configured number of cycles, pausing Interval between
// them (not after the last). Cancellation stops the run between cycles.
func (p *Poller) Run(ctx context.Context) error {
	for i := 0; i < p.cfg.Measurements; i++ {
		if i > 0 && p.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.Interval):
			}
		}
		p.RunOnce(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) publish(ctx context.Context, res Result) {
	for _, pub := range p.pubs {
		if err := pub.Publish(ctx, res); err != nil {
			logging.Warn("publish failed", "error", err)
		}
	}
}
