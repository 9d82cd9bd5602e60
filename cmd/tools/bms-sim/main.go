// bms-sim answers the BMS query frame on a real serial port, for bench
// testing the reader against a pty pair (e.g. socat). The simulated
// battery reports fixed values taken from flags.
package main

import (
	"bytes"
	"flag"
	"log"
	"time"

	"github.com/iisquazar/qdt-bms/internal/bms"
	"go.bug.st/serial"
)

func main() {
	var (
		portPath string
		baud     int
		voltage  float64
		current  float64
		soc      int
		raw      bool
	)
	flag.StringVar(&portPath, "port", "", "serial port to serve on (required)")
	flag.IntVar(&baud, "baud", 115200, "baud rate")
	flag.Float64Var(&voltage, "voltage", 52.40, "reported pack voltage (V)")
	flag.Float64Var(&current, "current", -1.25, "reported current (A, negative = discharge)")
	flag.IntVar(&soc, "soc", 76, "reported state of charge (%)")
	flag.BoolVar(&raw, "raw", false, "reply in raw binary instead of hex-text framing")
	flag.Parse()

	if portPath == "" {
		log.Fatal("-port is required")
	}
	if soc < 0 || soc > 255 {
		log.Fatalf("-soc out of range: %d", soc)
	}

	port, err := serial.Open(portPath, &serial.Mode{BaudRate: baud})
	if err != nil {
		log.Fatalf("serial open %s: %v", portPath, err)
	}
	defer port.Close()
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		log.Fatalf("set read timeout: %v", err)
	}

	reading := bms.Reading{Voltage: voltage, Current: current, SOC: uint8(soc)}
	response := bms.EncodeFrame(bms.BuildResponse(reading))
	if raw {
		response = bms.BuildResponse(reading)
	}

	log.Printf("simulator ready on %s (%s, raw=%v)", portPath, reading, raw)

	var pending []byte
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if err != nil {
			log.Fatalf("read: %v", err)
		}
		if n == 0 {
			continue
		}
		pending = append(pending, buf[:n]...)

		for bytes.Contains(pending, bms.QueryCommand) {
			idx := bytes.Index(pending, bms.QueryCommand)
			pending = pending[idx+len(bms.QueryCommand):]
			if _, err := port.Write(response); err != nil {
				log.Fatalf("write response: %v", err)
			}
			log.Printf("query answered")
		}

		// drop noise so the buffer cannot grow without bound
		if len(pending) > bms.MaxResponse {
			pending = pending[len(pending)-len(bms.QueryCommand):]
		}
	}
}
