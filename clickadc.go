// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package clickadc provides the common model for the SPI ADC click board
// drivers in spi/adc20 and spi/adc24.
//
// Both drivers implement the ADC interface, which supports:
//  - sampling a single channel in manual mode
//  - sampling a bounded run of channels in auto-sequence mode
//  - converting raw codes to millivolts
//
// Example of use:
//
//	adc := adc20.New(conn)
//	if err := adc.Init(); err != nil {
//		...
//	}
//	r, err := clickadc.Read(adc, 3)
//	fmt.Printf("ch3=%dmV\n", r.Millivolts)
//
// The drivers are not safe for concurrent use. The bus is single owner, so
// callers sharing a device must serialize access themselves.
package clickadc

import (
	"iter"
)

// Family identifies the chip family driven by an ADC.
type Family int

const (
	// ADC20 is the 8 channel 12 bit ADC with hardware oversampling.
	ADC20 Family = iota + 1
	// ADC24 is the 16 channel 12 bit bipolar ADC.
	ADC24
)

func (f Family) String() string {
	switch f {
	case ADC20:
		return "adc20"
	case ADC24:
		return "adc24"
	default:
		return "unknown"
	}
}

// ADC is the acquisition state machine common to both chip families.
type ADC interface {
	// Family returns the chip family.
	Family() Family

	// Channels returns the number of input channels.
	Channels() int

	// Init places the device in its initial configured state.
	// Init must be called before sampling, and again after any IO or
	// protocol error.
	Init() error

	// SampleManual selects ch and returns a single conversion from it.
	SampleManual(ch int) (RawSample, error)

	// SampleSequence returns a forward only run of count conversions from
	// channels 0 to stop.
	//
	// The arguments are validated immediately, but no bus traffic occurs
	// until the sequence is ranged over. The sequence may only be ranged
	// over once.
	SampleSequence(stop, count int) (iter.Seq2[RawSample, error], error)

	// Millivolts converts a sample to millivolts.
	Millivolts(s RawSample) int

	// Close releases the device.
	Close() error
}

// Read samples a single channel and converts it to a Reading.
func Read(adc ADC, ch int) (Reading, error) {
	s, err := adc.SampleManual(ch)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Channel: ch, Sample: s, Millivolts: adc.Millivolts(s)}, nil
}

// ReadSequence samples count frames from channels 0 to stop.
//
// On error the readings collected before the failure are returned
// along with the error.
func ReadSequence(adc ADC, stop, count int) ([]Reading, error) {
	seq, err := adc.SampleSequence(stop, count)
	if err != nil {
		return nil, err
	}
	var rr []Reading
	i := 0
	for s, err := range seq {
		if err != nil {
			return rr, err
		}
		rr = append(rr, Reading{
			Channel:    SequenceChannel(i, stop),
			Sample:     s,
			Millivolts: adc.Millivolts(s),
		})
		i++
	}
	return rr, nil
}

// SequenceChannel returns the channel producing frame i of a sequence
// ending at stop.
// The hardware wraps back to channel 0 after stop.
func SequenceChannel(i, stop int) int {
	return i % (stop + 1)
}
