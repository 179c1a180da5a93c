// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package adc24 provides a device driver for the ADC 24 click, a 16 channel
// 12 bit SPI ADC.
//
// The ADC is configured for the bipolar range, so results are two's
// complement.
//
// Results are pipelined - the frame following a control word write returns
// the conversion selected by that word.
package adc24

import (
	"iter"
	"time"

	"github.com/warthog618/clickadc"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/spi"
)

const (
	// Channels is the number of input channels.
	Channels = 16
	// MaxChannel is the highest channel number.
	MaxChannel = Channels - 1
	// DefaultSettle is the delay following each power up frame.
	DefaultSettle = 10 * time.Microsecond
)

type state int

const (
	idle state = iota
	initialized
	manual
	sequencing
	closed
)

// ADC24 reads ADC values from a connected ADC 24 click.
type ADC24 struct {
	c      spi.Conn
	log    *zap.Logger
	vrange float64
	settle time.Duration
	chid   bool
	state  state
}

// Option modifies the construction of an ADC24.
type Option func(*ADC24)

// WithChannelIDCheck enables checking the channel address returned in each
// frame against the expected channel.
func WithChannelIDCheck() Option {
	return func(a *ADC24) {
		a.chid = true
	}
}

// WithSettle sets the delay following each power up frame.
func WithSettle(d time.Duration) Option {
	return func(a *ADC24) {
		a.settle = d
	}
}

// WithVoltageRange sets the full scale voltage, in volts.
func WithVoltageRange(v float64) Option {
	return func(a *ADC24) {
		a.vrange = v
	}
}

// WithLogger sets the logger for the ADC.
func WithLogger(l *zap.Logger) Option {
	return func(a *ADC24) {
		a.log = l
	}
}

// New creates an ADC24 using the provided connection.
//
// The connection must be configured for 8 bit words, MSB first. Each 16 bit
// frame is sent as a separate transfer, so CS is cycled between frames.
// The ADC must be initialised with Init before use.
func New(c spi.Conn, options ...Option) *ADC24 {
	a := &ADC24{
		c:      c,
		log:    zap.NewNop(),
		vrange: clickadc.ADC24VoltageRange,
		settle: DefaultSettle,
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// Family implements clickadc.ADC.
func (a *ADC24) Family() clickadc.Family {
	return clickadc.ADC24
}

// Channels implements clickadc.ADC.
func (a *ADC24) Channels() int {
	return Channels
}

// Close marks the ADC as closed.
// The connection remains owned by the caller.
func (a *ADC24) Close() error {
	if a.state == closed {
		return clickadc.ErrClosed
	}
	if a.state == sequencing {
		return clickadc.ErrBusy
	}
	a.state = closed
	return nil
}

// Init sends the power up frames, holding DIN high, so the ADC is in the
// correct phase to accept the first control word.
func (a *ADC24) Init() error {
	if err := a.usable(); err != nil {
		return err
	}
	a.state = idle
	for i := 0; i < 2; i++ {
		if err := a.c.Tx(dummyHigh, nil); err != nil {
			return clickadc.NewIOError("power up", err)
		}
		time.Sleep(a.settle)
	}
	a.state = initialized
	a.log.Debug("initialised")
	return nil
}

// SampleManual returns a single conversion from ch.
func (a *ADC24) SampleManual(ch int) (clickadc.RawSample, error) {
	if err := clickadc.CheckChannel(ch, MaxChannel); err != nil {
		return clickadc.RawSample{}, err
	}
	if err := a.ready(); err != nil {
		return clickadc.RawSample{}, err
	}
	a.state = manual
	if err := a.writeControl(ManualControl(ch)); err != nil {
		return clickadc.RawSample{}, err
	}
	s, err := a.read(ch)
	if err != nil {
		return clickadc.RawSample{}, err
	}
	a.state = initialized
	return s, nil
}

// SampleSequence returns count conversions from channels 0 to stop, using
// the sequence mode of the ADC.
//
// The control word is written when the sequence is first ranged over, and
// is not rewritten between frames.
func (a *ADC24) SampleSequence(stop, count int) (iter.Seq2[clickadc.RawSample, error], error) {
	if err := clickadc.CheckSequence(stop, count, MaxChannel); err != nil {
		return nil, err
	}
	if err := a.ready(); err != nil {
		return nil, err
	}
	used := false
	return func(yield func(clickadc.RawSample, error) bool) {
		if used {
			yield(clickadc.RawSample{}, clickadc.ErrSequenceConsumed)
			return
		}
		used = true
		if err := a.ready(); err != nil {
			yield(clickadc.RawSample{}, err)
			return
		}
		a.state = sequencing
		defer func() {
			if a.state == sequencing {
				a.state = initialized
			}
		}()
		a.log.Debug("sequence start", zap.Int("stop", stop), zap.Int("count", count))
		if err := a.writeControl(SequenceControl(stop)); err != nil {
			yield(clickadc.RawSample{}, err)
			return
		}
		for i := 0; i < count; i++ {
			s, err := a.read(clickadc.SequenceChannel(i, stop))
			if err != nil {
				yield(clickadc.RawSample{}, err)
				return
			}
			if !yield(s, nil) {
				return
			}
		}
	}, nil
}

// Millivolts converts a sample to millivolts.
func (a *ADC24) Millivolts(s clickadc.RawSample) int {
	return clickadc.SampleMillivolts(s, a.vrange)
}

func (a *ADC24) writeControl(w Control) error {
	if err := writeControl(a.c, w); err != nil {
		a.state = idle
		return err
	}
	a.log.Debug("write control", zap.Stringer("control", w))
	return nil
}

// read returns the next conversion, which should be from channel ch.
func (a *ADC24) read(ch int) (clickadc.RawSample, error) {
	f, err := readFrame(a.c)
	if err != nil {
		a.state = idle
		return clickadc.RawSample{}, err
	}
	s := decode(f)
	if !a.chid {
		return s, nil
	}
	if err := clickadc.CheckChannelID(ch, s); err != nil {
		a.state = idle
		return clickadc.RawSample{}, err
	}
	return s, nil
}

func (a *ADC24) usable() error {
	switch a.state {
	case closed:
		return clickadc.ErrClosed
	case sequencing:
		return clickadc.ErrBusy
	}
	return nil
}

func (a *ADC24) ready() error {
	if err := a.usable(); err != nil {
		return err
	}
	if a.state == idle {
		return clickadc.ErrNotInitialized
	}
	return nil
}
