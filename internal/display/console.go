// Package display renders poll results for a human watching the
// terminal. Message text is kept verbatim from the original reader.
package display

import (
	"context"
	"fmt"
	"io"

	"github.com/iisquazar/qdt-bms/internal/poller"
)

// Console writes one line per poll cycle to Out.
type Console struct {
	Out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{Out: out}
}

// Started announces the beginning of a reader run.
func (c *Console) Started() {
	fmt.Fprintln(c.Out, "BMS uitlezing gestart...")
}

// NoPortFound reports an exhausted port scan.
func (c *Console) NoPortFound() {
	fmt.Fprintln(c.Out, "Geen werkende /dev/ttyUSB-poort gevonden.")
}

// Publish implements poller.Publisher.
func (c *Console) Publish(_ context.Context, res poller.Result) error {
	ts := res.At.Format("15:04:05")
	if res.Reading == nil {
		_, err := fmt.Fprintf(c.Out, "[%s] Geen data of onvolledige respons ontvangen.\n", ts)
		return err
	}
	r := res.Reading
	_, err := fmt.Fprintf(c.Out, "[%s] Voltage: %.2f V | Stroom: %.2f A | SOC: %d%%\n",
		ts, r.Voltage, r.Current, r.SOC)
	return err
}
