package bms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Port is the slice of go.bug.st/serial.Port this package relies on.
// Narrow on purpose so tests can fake the transport.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	SetRTS(rts bool) error
	SetDTR(dtr bool) error
}

// Exchange performs one query round-trip: write the command, give the
// device its settle time, then read whatever arrives within the port's
// read timeout (up to MaxResponse bytes). A silent device is a normal
// outcome: zero bytes read returns (nil, nil), not an error. Non-empty
// responses go through DecodeFrame.
func Exchange(ctx context.Context, port io.ReadWriter, settle time.Duration) ([]byte, error) {
	if _, err := port.Write(QueryCommand); err != nil {
		return nil, fmt.Errorf("write query: %w", err)
	}

	if settle > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(settle):
		}
	}

	buf := make([]byte, MaxResponse)
	total := 0
	for total < MaxResponse {
		n, err := port.Read(buf[total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if total == 0 {
				return nil, fmt.Errorf("read response: %w", err)
			}
			break
		}
		if n == 0 {
			// read timeout expired with nothing pending
			break
		}
	}

	if total == 0 {
		return nil, nil
	}
	return DecodeFrame(buf[:total]), nil
}
