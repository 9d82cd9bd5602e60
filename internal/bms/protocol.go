// Package bms implements the serial protocol of the QDT battery
// management system: the fixed query frame, response decoding and the
// fixed-offset value layout.
package bms

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Vendor query frame requesting the full value set (voltage, current,
// SOC). Opaque protocol constant, sent verbatim; the device does not
// negotiate.
const queryCommandHex = "7E3631303134364237453030323031464431440D"

// QueryCommand is the raw form of the vendor query frame.
var QueryCommand = mustHex(queryCommandHex)

// Value layout within a decoded response.
const (
	OffsetVoltage = 7  // u16 big-endian, /100 -> Volt
	OffsetCurrent = 11 // i16 big-endian, /100 -> Ampere
	OffsetSOC     = 15 // raw byte, percent

	// MaxResponse bounds a single response read.
	MaxResponse = 512
)

// frameCutset holds the framing characters stripped from a text-encoded
// response: the leading marker and trailing line endings.
const frameCutset = "~\r\n"

// Reading is one decoded measurement. Current is signed; negative means
// discharge.
type Reading struct {
	Voltage float64
	Current float64
	SOC     uint8
}

func (r Reading) String() string {
	return fmt.Sprintf("%.2fV %.2fA %d%%", r.Voltage, r.Current, r.SOC)
}

// Complete reports whether data is long enough to carry every value,
// i.e. reaches past the SOC byte. Callers must gate ParseReading on it.
func Complete(data []byte) bool {
	return len(data) > OffsetSOC
}

// ParseReading extracts the values at their fixed offsets. Callers must
// check Complete first; there is no error path here.
func ParseReading(data []byte) Reading {
	v := binary.BigEndian.Uint16(data[OffsetVoltage:])
	c := int16(binary.BigEndian.Uint16(data[OffsetCurrent:]))
	return Reading{
		Voltage: float64(v) / 100.0,
		Current: float64(c) / 100.0,
		SOC:     data[OffsetSOC],
	}
}

// DecodeFrame converts a raw response into value bytes. The device is
// inconsistent: it answers either as hex text framed by '~' and CR/LF,
// or as raw binary. Strip the framing and hex-decode; on any decode
// failure (non-hex characters, odd length) the original bytes are the
// payload.
func DecodeFrame(raw []byte) []byte {
	text := strings.Trim(string(raw), frameCutset)
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return raw
	}
	return decoded
}

// EncodeFrame is the inverse of DecodeFrame's text path: payload as
// upper-case hex between the '~' marker and a CR. Used by the simulator.
func EncodeFrame(data []byte) []byte {
	return []byte("~" + strings.ToUpper(hex.EncodeToString(data)) + "\r")
}

// BuildResponse lays a reading out at the documented offsets. The bytes
// outside the known offsets are zero; the real device fills them with
// fields this reader does not interpret. Simulator and test helper.
func BuildResponse(r Reading) []byte {
	buf := make([]byte, OffsetSOC+1)
	binary.BigEndian.PutUint16(buf[OffsetVoltage:], uint16(math.Round(r.Voltage*100)))
	binary.BigEndian.PutUint16(buf[OffsetCurrent:], uint16(int16(math.Round(r.Current*100))))
	buf[OffsetSOC] = r.SOC
	return buf
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("bms: bad command literal: " + err.Error())
	}
	return b
}
