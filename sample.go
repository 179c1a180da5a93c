// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package clickadc

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Resolution identifies the width and coding of a raw code.
type Resolution int

const (
	// Unipolar12 is a 12 bit straight binary code.
	Unipolar12 Resolution = iota
	// Unipolar16 is a 16 bit straight binary code.
	Unipolar16
	// Bipolar12 is a 12 bit two's complement code, sign extended.
	Bipolar12
)

// FullScale returns the code corresponding to the full scale voltage.
func (r Resolution) FullScale() int32 {
	switch r {
	case Unipolar16:
		return 0xffff
	case Bipolar12:
		return 0x800
	default:
		return 0x0fff
	}
}

func (r Resolution) String() string {
	switch r {
	case Unipolar12:
		return "12-bit"
	case Unipolar16:
		return "16-bit"
	case Bipolar12:
		return "12-bit bipolar"
	default:
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
}

// NoChannelID indicates a frame that carried no channel identifier.
const NoChannelID = -1

// RawSample is the decoded content of a single read frame.
type RawSample struct {
	// Code is the conversion result.
	// Bipolar codes are sign extended.
	Code int32

	// Resolution identifies how Code is to be interpreted.
	Resolution Resolution

	// ChannelID is the channel identifier embedded in the frame,
	// or NoChannelID.
	ChannelID int
}

// HasChannelID returns true if the frame carried a channel identifier.
func (s RawSample) HasChannelID() bool {
	return s.ChannelID != NoChannelID
}

// Reading is a sample converted to a voltage.
type Reading struct {
	Channel    int
	Sample     RawSample
	Millivolts int
}

// Potential returns the reading as a periph ElectricPotential.
func (r Reading) Potential() physic.ElectricPotential {
	return physic.ElectricPotential(r.Millivolts) * physic.MilliVolt
}

func (r Reading) String() string {
	return fmt.Sprintf("ch%d=%dmV", r.Channel, r.Millivolts)
}
