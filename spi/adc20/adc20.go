// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package adc20 provides a device driver for the ADC 20 click, an 8 channel
// 12 bit SPI ADC with hardware oversampling.
//
// With oversampling disabled the ADC returns 12 bit codes. With oversampling
// enabled the averaged result is a 16 bit code.
package adc20

import (
	"iter"

	"github.com/pkg/errors"
	"github.com/warthog618/clickadc"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/spi"
)

const (
	// Channels is the number of input channels.
	Channels = 8
	// MaxChannel is the highest channel number.
	MaxChannel = Channels - 1
	// MaxAveraging is the highest oversampling ratio.
	MaxAveraging = 7
	// FixedPattern is the 12 bit code returned in place of conversions while
	// DataFixedPattern is set in DATA_CFG.
	FixedPattern = 0xa5a
)

// ErrPatternMismatch indicates the ADC did not return FixedPattern while the
// fixed pattern was enabled.
var ErrPatternMismatch = errors.New("fixed pattern mismatch")

type state int

const (
	idle state = iota
	configured
	manual
	sequencing
	closed
)

// ADC20 reads ADC values from a connected ADC 20 click.
type ADC20 struct {
	c      spi.Conn
	log    *zap.Logger
	vrange float64
	chid   bool
	ratio  int
	state  state
}

// Option modifies the construction of an ADC20.
type Option func(*ADC20)

// WithChannelID enables appending the channel ID to each frame.
// The ID is checked against the expected channel for every sample.
func WithChannelID() Option {
	return func(a *ADC20) {
		a.chid = true
	}
}

// WithAveraging sets the initial oversampling ratio applied by Init.
// Out of range values are rejected by Init.
func WithAveraging(ratio int) Option {
	return func(a *ADC20) {
		a.ratio = ratio
	}
}

// WithVoltageRange sets the full scale voltage, in volts.
func WithVoltageRange(v float64) Option {
	return func(a *ADC20) {
		a.vrange = v
	}
}

// WithLogger sets the logger for the ADC.
func WithLogger(l *zap.Logger) Option {
	return func(a *ADC20) {
		a.log = l
	}
}

// New creates an ADC20 using the provided connection.
//
// The connection must be configured for 8 bit words, MSB first.
// The ADC must be initialised with Init before use.
func New(c spi.Conn, options ...Option) *ADC20 {
	a := &ADC20{
		c:      c,
		log:    zap.NewNop(),
		vrange: clickadc.ADC20VoltageRange,
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// Family implements clickadc.ADC.
func (a *ADC20) Family() clickadc.Family {
	return clickadc.ADC20
}

// Channels implements clickadc.ADC.
func (a *ADC20) Channels() int {
	return Channels
}

// Averaging returns the current oversampling ratio.
func (a *ADC20) Averaging() int {
	return a.ratio
}

// Close marks the ADC as closed.
// The connection remains owned by the caller.
func (a *ADC20) Close() error {
	if a.state == closed {
		return clickadc.ErrClosed
	}
	if a.state == sequencing {
		return clickadc.ErrBusy
	}
	a.state = closed
	return nil
}

// Init writes the data format, configures all pins as analog inputs, sets
// the default sample rate and manual mode, and restores the oversampling
// ratio.
func (a *ADC20) Init() error {
	if err := a.usable(); err != nil {
		return err
	}
	if a.ratio < 0 || a.ratio > MaxAveraging {
		return clickadc.InvalidArgument("averaging ratio %d out of range [0,%d]", a.ratio, MaxAveraging)
	}
	a.state = idle
	err := a.writeRegisters(
		regValue{RegDataCfg, a.dataCfg()},
		regValue{RegPinCfg, PinsAllAnalog},
		regValue{RegOpmodeCfg, Opmode1MHz},
		regValue{RegSequenceCfg, SequenceManual},
		regValue{RegOSRCfg, uint8(a.ratio)},
	)
	if err != nil {
		return err
	}
	a.state = configured
	a.log.Debug("initialised", zap.Bool("channel-id", a.chid), zap.Int("averaging", a.ratio))
	return nil
}

// SetAveraging sets the oversampling ratio for all subsequent reads.
// A ratio of 0 disables oversampling.
func (a *ADC20) SetAveraging(ratio int) error {
	if ratio < 0 || ratio > MaxAveraging {
		return clickadc.InvalidArgument("averaging ratio %d out of range [0,%d]", ratio, MaxAveraging)
	}
	if err := a.usable(); err != nil {
		return err
	}
	if err := a.writeRegisters(regValue{RegOSRCfg, uint8(ratio)}); err != nil {
		return err
	}
	a.ratio = ratio
	return nil
}

// ReadRegister returns the value of a register.
func (a *ADC20) ReadRegister(reg Register) (uint8, error) {
	if err := a.usable(); err != nil {
		return 0, err
	}
	return readRegister(a.c, reg)
}

// WriteRegister writes a value to a register.
//
// This bypasses the configuration cached in the ADC20, so writing
// DATA_CFG, OSR_CFG or SEQUENCE_CFG requires a subsequent Init.
func (a *ADC20) WriteRegister(reg Register, v uint8) error {
	if err := a.usable(); err != nil {
		return err
	}
	return writeRegister(a.c, reg, v)
}

// SampleManual returns a single conversion from ch.
func (a *ADC20) SampleManual(ch int) (clickadc.RawSample, error) {
	if err := clickadc.CheckChannel(ch, MaxChannel); err != nil {
		return clickadc.RawSample{}, err
	}
	if err := a.ready(); err != nil {
		return clickadc.RawSample{}, err
	}
	a.state = manual
	if err := a.writeRegisters(regValue{RegChannelSel, uint8(ch)}); err != nil {
		return clickadc.RawSample{}, err
	}
	// flush the conversion of the previously selected channel
	if _, err := a.readFrame(); err != nil {
		return clickadc.RawSample{}, err
	}
	s, err := a.readFrame()
	if err != nil {
		return clickadc.RawSample{}, err
	}
	if err := clickadc.CheckChannelID(ch, s); err != nil {
		a.state = idle
		return clickadc.RawSample{}, err
	}
	a.state = configured
	return s, nil
}

// SampleSequence returns count conversions from channels 0 to stop, using
// the auto-sequence mode of the ADC.
//
// The sequence is armed when first ranged over, and sequencing is always
// stopped when the range completes, fails, or is exited early.
func (a *ADC20) SampleSequence(stop, count int) (iter.Seq2[clickadc.RawSample, error], error) {
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
		a.sequence(stop, count, yield)
	}, nil
}

func (a *ADC20) sequence(stop, count int, yield func(clickadc.RawSample, error) bool) {
	aborted, err := a.autoSequence(stop, count, yield)
	if err != nil && !aborted {
		yield(clickadc.RawSample{}, err)
	}
}

// autoSequence runs the auto-sequence, returning true if yield stopped it
// early. Sequencing is stopped on return, including when yield panics.
func (a *ADC20) autoSequence(stop, count int, yield func(clickadc.RawSample, error) bool) (aborted bool, err error) {
	a.state = sequencing
	a.log.Debug("sequence start", zap.Int("stop", stop), zap.Int("count", count))
	defer func() {
		if serr := writeRegister(a.c, RegSequenceCfg, SequenceStop); serr != nil {
			a.log.Warn("failed to stop sequence", zap.Error(serr))
			err = multierr.Append(err, serr)
		}
		a.log.Debug("sequence stop", zap.Bool("aborted", aborted), zap.Error(err))
		a.state = configured
		if err != nil {
			a.state = idle
		}
	}()
	mask := uint8(1<<(stop+1) - 1)
	err = a.writeRegisters(
		regValue{RegAutoSeqChSel, mask},
		regValue{RegSequenceCfg, SequenceStart},
	)
	if err != nil {
		return false, err
	}
	for i := 0; i < count; i++ {
		s, err := a.readFrame()
		if err != nil {
			return false, err
		}
		if err := clickadc.CheckChannelID(clickadc.SequenceChannel(i, stop), s); err != nil {
			return false, err
		}
		if !yield(s, nil) {
			return true, nil
		}
	}
	return false, nil
}

// CheckPattern enables the fixed output pattern, checks the ADC returns
// FixedPattern in place of a conversion, and restores DATA_CFG.
//
// This verifies communication with the ADC independent of its inputs.
func (a *ADC20) CheckPattern() error {
	if err := a.ready(); err != nil {
		return err
	}
	if err := a.writeRegisters(regValue{RegDataCfg, a.dataCfg() | DataFixedPattern}); err != nil {
		return err
	}
	// flush the frame converted before the pattern was enabled
	if _, err := a.readFrame(); err != nil {
		return err
	}
	s, err := a.readFrame()
	if err != nil {
		return err
	}
	if err := a.writeRegisters(regValue{RegDataCfg, a.dataCfg()}); err != nil {
		return err
	}
	p := s.Code
	if s.Resolution == clickadc.Unipolar16 {
		p >>= 4
	}
	a.log.Debug("pattern", zap.Int32("code", s.Code))
	if p != FixedPattern {
		return errors.Wrapf(ErrPatternMismatch, "got 0x%03x", p)
	}
	return nil
}

// Millivolts converts a sample to millivolts.
func (a *ADC20) Millivolts(s clickadc.RawSample) int {
	return clickadc.SampleMillivolts(s, a.vrange)
}

// frameLen returns the length of a read frame for the given configuration.
// The channel ID only extends the frame when oversampling is enabled, as
// it otherwise occupies the low nibble of the 12 bit code.
func frameLen(ratio int, chid bool) int {
	if chid && ratio != 0 {
		return 3
	}
	return 2
}

// decode extracts the sample from a read frame.
func decode(f []byte, ratio int, chid bool) clickadc.RawSample {
	code := int32(f[0])<<8 | int32(f[1])
	s := clickadc.RawSample{
		Code:       code,
		Resolution: clickadc.Unipolar16,
		ChannelID:  clickadc.NoChannelID,
	}
	if ratio == 0 {
		s.Code = code >> 4
		s.Resolution = clickadc.Unipolar12
		if chid {
			s.ChannelID = int(f[1] & 0x0f)
		}
		return s
	}
	if chid {
		s.ChannelID = int(f[2] >> 4)
	}
	return s
}

func (a *ADC20) readFrame() (clickadc.RawSample, error) {
	n := frameLen(a.ratio, a.chid)
	r := make([]byte, n)
	if err := a.c.Tx(make([]byte, n), r); err != nil {
		a.state = idle
		return clickadc.RawSample{}, clickadc.NewIOError("read frame", err)
	}
	return decode(r, a.ratio, a.chid), nil
}

func (a *ADC20) dataCfg() uint8 {
	if a.chid {
		return DataChannelIDAppend
	}
	return DataChannelIDOmit
}

type regValue struct {
	reg Register
	v   uint8
}

// writeRegisters writes the registers in order, stopping at the first
// failure, which leaves the ADC requiring an Init.
func (a *ADC20) writeRegisters(rvs ...regValue) error {
	for _, rv := range rvs {
		if err := writeRegister(a.c, rv.reg, rv.v); err != nil {
			a.state = idle
			return err
		}
		a.log.Debug("write", zap.Stringer("reg", rv.reg), zap.Uint8("value", rv.v))
	}
	return nil
}

func (a *ADC20) usable() error {
	switch a.state {
	case closed:
		return clickadc.ErrClosed
	case sequencing:
		return clickadc.ErrBusy
	}
	return nil
}

func (a *ADC20) ready() error {
	if err := a.usable(); err != nil {
		return err
	}
	if a.state == idle {
		return clickadc.ErrNotInitialized
	}
	return nil
}
