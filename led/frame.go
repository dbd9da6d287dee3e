// Package led drives the note indicator strip over a serial link.
package led

import (
	"errors"
	"fmt"
)

const (
	SOF0 = 0xAA
	SOF1 = 0x55

	CmdSetPixel   = 0x20 // payload: led, r, g, b
	CmdClearPixel = 0x21 // payload: led
	CmdClearAll   = 0x22
	CmdRainbow    = 0x23 // payload: iterations, wait ms
	CmdBrightness = 0x24 // payload: level
)

var (
	ErrShortFrame   = errors.New("short frame")
	ErrBadSOF       = errors.New("bad start of frame")
	ErrBadChecksum  = errors.New("bad frame checksum")
	ErrPayloadLimit = errors.New("payload too long")
)

// Frame is one strip command.
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD and payload; CKS is the XOR of LEN, CMD and payload.
type Frame struct {
	Cmd     byte
	Payload []byte
}

// Encode builds the on-wire representation
func (f Frame) Encode() ([]byte, error) {
	if len(f.Payload) > 254 {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadLimit, len(f.Payload))
	}

	length := byte(len(f.Payload) + 1)
	cks := length ^ f.Cmd
	for _, b := range f.Payload {
		cks ^= b
	}

	out := make([]byte, 0, len(f.Payload)+5)
	out = append(out, SOF0, SOF1, length, f.Cmd)
	out = append(out, f.Payload...)
	out = append(out, cks)
	return out, nil
}

// DecodeFrame parses the frame at the start of b and returns it with the
// number of bytes consumed
func DecodeFrame(b []byte) (Frame, int, error) {
	if len(b) < 5 {
		return Frame{}, 0, ErrShortFrame
	}
	if b[0] != SOF0 || b[1] != SOF1 {
		return Frame{}, 0, ErrBadSOF
	}
	length := int(b[2])
	total := length + 4
	if length < 1 || len(b) < total {
		return Frame{}, 0, ErrShortFrame
	}

	var cks byte
	for _, v := range b[2 : total-1] {
		cks ^= v
	}
	if cks != b[total-1] {
		return Frame{}, 0, ErrBadChecksum
	}

	payload := make([]byte, length-1)
	copy(payload, b[4:total-1])
	return Frame{Cmd: b[3], Payload: payload}, total, nil
}

func (f Frame) String() string {
	switch f.Cmd {
	case CmdSetPixel:
		return fmt.Sprintf("set%v", f.Payload)
	case CmdClearPixel:
		return fmt.Sprintf("clear%v", f.Payload)
	case CmdClearAll:
		return "clear_all"
	case CmdRainbow:
		return fmt.Sprintf("rainbow%v", f.Payload)
	case CmdBrightness:
		return fmt.Sprintf("brightness%v", f.Payload)
	default:
		return fmt.Sprintf("cmd(0x%02x)%v", f.Cmd, f.Payload)
	}
}
