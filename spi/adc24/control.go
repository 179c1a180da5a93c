// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package adc24

import (
	"fmt"

	"github.com/warthog618/clickadc"
	"periph.io/x/conn/v3/spi"
)

// Control is the 12 bit content of the control register.
type Control uint16

// Control register fields.
const (
	ControlWrite    Control = 0x800
	ControlSeq      Control = 0x400
	ControlPMNormal Control = 0x030
	ControlShadow   Control = 0x008
	ControlWeakTri  Control = 0x004
	// ControlRange selects the 0 to REFIN range. When clear the range is
	// 0 to 2*REFIN.
	ControlRange Control = 0x002
	// ControlCoding selects straight binary output coding.
	ControlCoding Control = 0x001

	controlMask = 0xfff
	addrShift   = 6
)

// Base control words, before the channel address is inserted.
const (
	// BaseManual selects manual mode with normal power and two's
	// complement coding.
	BaseManual = ControlWrite | ControlPMNormal | ControlWeakTri
	// BaseSequence selects sequence mode through channel 0 to the
	// addressed channel.
	BaseSequence = ControlWrite | ControlSeq | ControlPMNormal | ControlShadow | ControlWeakTri
)

// Frames that do not update the control register.
var (
	// dummyHigh holds DIN high during power up.
	dummyHigh = []byte{0xff, 0xff}
	dummyLow  = []byte{0x00, 0x00}
)

// ManualControl returns the control word selecting manual conversion of ch.
func ManualControl(ch int) Control {
	return BaseManual | Control(ch)<<addrShift
}

// SequenceControl returns the control word starting a sequence through
// channels 0 to stop.
func SequenceControl(stop int) Control {
	return BaseSequence | Control(stop)<<addrShift
}

// Frame returns the 16 bit frame carrying the control word.
// The register is loaded from the first 12 clocks so the word is MSB
// aligned.
func (c Control) Frame() []byte {
	v := uint16(c&controlMask) << 4
	return []byte{byte(v >> 8), byte(v)}
}

func (c Control) String() string {
	return fmt.Sprintf("0x%03x", uint16(c))
}

// writeControl loads the control register.
// The conversion selected by the word is returned in the following frame.
func writeControl(c spi.Conn, w Control) error {
	if err := c.Tx(w.Frame(), nil); err != nil {
		return clickadc.NewIOError("write control "+w.String(), err)
	}
	return nil
}

// readFrame clocks out a frame while holding DIN low so the control
// register is left unchanged.
func readFrame(c spi.Conn) (uint16, error) {
	r := make([]byte, 2)
	if err := c.Tx(dummyLow, r); err != nil {
		return 0, clickadc.NewIOError("read frame", err)
	}
	return uint16(r[0])<<8 | uint16(r[1]), nil
}

// decode splits a frame into the channel address and the sign extended
// conversion result.
func decode(f uint16) clickadc.RawSample {
	code := f & controlMask
	if code&0x800 != 0 {
		code |= 0xf000
	}
	return clickadc.RawSample{
		Code:       int32(int16(code)),
		Resolution: clickadc.Bipolar12,
		ChannelID:  int(f >> 12),
	}
}
