// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package adc20

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/clickadc"
	"github.com/warthog618/clickadc/internal/spimock"
	"periph.io/x/conn/v3/spi"
)

// device simulates the register file and conversion pipeline of the ADC.
type device struct {
	regs    [0x20]uint8
	codes   [Channels]uint16
	pending uint16
	pendCh  int
	seqIdx  int
	// corrupt the channel ID of the frame with this sequence index
	badIdx int
	frames int
}

func newDevice() *device {
	d := &device{badIdx: -1}
	for i := range d.codes {
		d.codes[i] = uint16(0x100*i + 0x23)
	}
	return d
}

func (d *device) handle(pp []spi.Packet) error {
	w := pp[0].W
	switch {
	case len(w) == 3 && w[0] == cmdRegWrite:
		d.regs[w[1]] = w[2]
		if Register(w[1]) == RegSequenceCfg {
			d.seqIdx = 0
		}
	case len(w) == 3 && w[0] == cmdRegRead:
		pp[1].R[0] = d.regs[w[1]]
	default:
		d.frame(pp[0].R)
	}
	return nil
}

func (d *device) frame(r []byte) {
	d.frames++
	var ch int
	var code uint16
	if d.regs[RegSequenceCfg] == SequenceStart {
		// hardware steps through the enabled channels
		n := 0
		for m := d.regs[RegAutoSeqChSel]; m != 0; m >>= 1 {
			n++
		}
		ch = d.seqIdx % n
		code = d.codes[ch]
		if d.seqIdx == d.badIdx {
			ch = (ch + 1) % Channels
		}
		d.seqIdx++
	} else {
		ch, code = d.pendCh, d.pending
		d.pendCh = int(d.regs[RegChannelSel])
		d.pending = d.codes[d.pendCh]
	}
	if d.regs[RegDataCfg]&DataFixedPattern != 0 {
		code = FixedPattern
	}
	chid := d.regs[RegDataCfg]&DataChannelIDAppend != 0
	if d.regs[RegOSRCfg] == 0 {
		v := code<<4 | uint16(ch)
		if !chid {
			v = code << 4
		}
		r[0], r[1] = byte(v>>8), byte(v)
		return
	}
	v := code << 4
	r[0], r[1] = byte(v>>8), byte(v)
	if chid {
		r[2] = byte(ch << 4)
	}
}

func newADC(t *testing.T, options ...Option) (*ADC20, *device, *spimock.Conn) {
	t.Helper()
	d := newDevice()
	c := &spimock.Conn{Handler: d.handle}
	a := New(c, options...)
	require.Nil(t, a.Init())
	c.Reset()
	return a, d, c
}

func TestNew(t *testing.T) {
	a := New(spimock.New())
	assert.Equal(t, clickadc.ADC20, a.Family())
	assert.Equal(t, 8, a.Channels())
	assert.Equal(t, 0, a.Averaging())
	var _ clickadc.ADC = a
}

func TestInit(t *testing.T) {
	c := spimock.New()
	a := New(c)
	require.Nil(t, a.Init())
	assert.Equal(t, [][]byte{
		{cmdRegWrite, 0x02, 0x00},
		{cmdRegWrite, 0x05, 0x00},
		{cmdRegWrite, 0x04, 0x00},
		{cmdRegWrite, 0x10, 0x00},
		{cmdRegWrite, 0x03, 0x00},
	}, c.Writes())

	c = spimock.New()
	a = New(c, WithChannelID(), WithAveraging(5))
	require.Nil(t, a.Init())
	ww := c.Writes()
	require.Len(t, ww, 5)
	assert.Equal(t, []byte{cmdRegWrite, 0x02, 0x10}, ww[0])
	assert.Equal(t, []byte{cmdRegWrite, 0x03, 0x05}, ww[4])

	c = spimock.New()
	a = New(c, WithAveraging(9))
	err := a.Init()
	assert.True(t, errors.Is(err, clickadc.ErrInvalidArgument))
	assert.Zero(t, c.Count())
}

func TestInitFailure(t *testing.T) {
	c := spimock.New()
	c.FailAt = 2
	a := New(c)
	err := a.Init()
	assert.True(t, errors.Is(err, clickadc.ErrIO))
	var ioe *clickadc.IOError
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, "write PIN_CFG", ioe.Op)
	assert.Equal(t, spimock.ErrInjected, ioe.Unwrap())
	// not retried
	assert.Equal(t, 2, c.Count())
	_, err = a.SampleManual(0)
	assert.Equal(t, clickadc.ErrNotInitialized, err)
}

func TestSetAveraging(t *testing.T) {
	a, _, c := newADC(t)
	require.Nil(t, a.SetAveraging(3))
	assert.Equal(t, [][]byte{{cmdRegWrite, 0x03, 0x03}}, c.Writes())
	assert.Equal(t, 3, a.Averaging())

	c.Reset()
	for _, r := range []int{-1, 8} {
		err := a.SetAveraging(r)
		assert.True(t, errors.Is(err, clickadc.ErrInvalidArgument), r)
	}
	assert.Zero(t, c.Count())
	assert.Equal(t, 3, a.Averaging())
}

func TestSampleManualInvalid(t *testing.T) {
	a, _, c := newADC(t)
	for _, ch := range []int{-1, 8, 16} {
		_, err := a.SampleManual(ch)
		assert.True(t, errors.Is(err, clickadc.ErrInvalidArgument), ch)
	}
	assert.Zero(t, c.Count())
}

func TestSampleManual(t *testing.T) {
	a, d, c := newADC(t)
	s, err := a.SampleManual(3)
	require.Nil(t, err)
	assert.Equal(t, clickadc.RawSample{
		Code:       int32(d.codes[3]),
		Resolution: clickadc.Unipolar12,
		ChannelID:  clickadc.NoChannelID,
	}, s)
	require.Equal(t, 3, c.Count())
	assert.Equal(t, []byte{cmdRegWrite, 0x11, 0x03}, c.Transactions[0].W())
	// dummy then real read
	assert.Equal(t, 2, c.Transactions[1].Packets[0].RLen)
	assert.Equal(t, 2, c.Transactions[2].Packets[0].RLen)

	// channel change is not visible until the second frame
	s, err = a.SampleManual(5)
	require.Nil(t, err)
	assert.Equal(t, int32(d.codes[5]), s.Code)
}

func TestSampleManualChannelID(t *testing.T) {
	a, d, _ := newADC(t, WithChannelID())
	s, err := a.SampleManual(6)
	require.Nil(t, err)
	assert.Equal(t, int32(d.codes[6]), s.Code)
	assert.Equal(t, 6, s.ChannelID)
}

func TestSampleManualAveraging(t *testing.T) {
	a, d, c := newADC(t, WithChannelID(), WithAveraging(2))
	s, err := a.SampleManual(4)
	require.Nil(t, err)
	assert.Equal(t, clickadc.RawSample{
		Code:       int32(d.codes[4]) << 4,
		Resolution: clickadc.Unipolar16,
		ChannelID:  4,
	}, s)
	assert.Equal(t, 3, c.Transactions[2].Packets[0].RLen)
}

func TestSampleManualDesync(t *testing.T) {
	c := spimock.New(
		[]byte{0x00, 0x00},
		[]byte{0x12, 0x35}, // ID 5
	)
	a := New(c, WithChannelID())
	require.Nil(t, a.Init())
	_, err := a.SampleManual(2)
	var de *clickadc.DesyncError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 2, de.Expected)
	assert.Equal(t, 5, de.Got)
	assert.True(t, errors.Is(err, clickadc.ErrProtocolDesync))
	_, err = a.SampleManual(2)
	assert.Equal(t, clickadc.ErrNotInitialized, err)
}

func TestSampleManualReadFailure(t *testing.T) {
	a, _, c := newADC(t)
	c.FailAt = 3
	_, err := a.SampleManual(1)
	assert.True(t, errors.Is(err, clickadc.ErrIO))
	assert.Equal(t, 3, c.Count())
	_, err = a.SampleManual(1)
	assert.Equal(t, clickadc.ErrNotInitialized, err)
	require.Nil(t, a.Init())
	_, err = a.SampleManual(1)
	assert.Nil(t, err)
}

func TestSampleSequence(t *testing.T) {
	a, d, c := newADC(t, WithChannelID())
	seq, err := a.SampleSequence(3, 4)
	require.Nil(t, err)
	// lazy
	assert.Zero(t, c.Count())
	var ss []clickadc.RawSample
	for s, err := range seq {
		require.Nil(t, err)
		ss = append(ss, s)
	}
	require.Len(t, ss, 4)
	for i, s := range ss {
		assert.Equal(t, i, s.ChannelID)
		assert.Equal(t, int32(d.codes[i]), s.Code)
	}
	ww := c.Writes()
	require.Len(t, ww, 7)
	assert.Equal(t, []byte{cmdRegWrite, 0x12, 0x0f}, ww[0])
	assert.Equal(t, []byte{cmdRegWrite, 0x10, 0x11}, ww[1])
	assert.Equal(t, []byte{cmdRegWrite, 0x10, 0x00}, ww[6])

	// device is left configured
	_, err = a.SampleManual(0)
	assert.Nil(t, err)
}

func TestSampleSequenceWrap(t *testing.T) {
	a, d, _ := newADC(t, WithChannelID(), WithAveraging(1))
	rr, err := clickadc.ReadSequence(a, 1, 5)
	require.Nil(t, err)
	require.Len(t, rr, 5)
	for i, r := range rr {
		assert.Equal(t, i%2, r.Channel)
		assert.Equal(t, i%2, r.Sample.ChannelID)
		assert.Equal(t, int32(d.codes[i%2])<<4, r.Sample.Code)
	}
}

func TestSampleSequenceInvalid(t *testing.T) {
	a, _, c := newADC(t)
	for _, p := range [][2]int{{0, 1}, {8, 9}, {-1, 1}, {3, 0}} {
		_, err := a.SampleSequence(p[0], p[1])
		assert.True(t, errors.Is(err, clickadc.ErrInvalidArgument), p)
	}
	assert.Zero(t, c.Count())
}

func TestSampleSequenceDesync(t *testing.T) {
	a, d, c := newADC(t, WithChannelID())
	d.badIdx = 2
	rr, err := clickadc.ReadSequence(a, 3, 4)
	assert.True(t, errors.Is(err, clickadc.ErrProtocolDesync))
	assert.Len(t, rr, 2)
	// sequencing stopped
	ww := c.Writes()
	assert.Equal(t, []byte{cmdRegWrite, 0x10, 0x00}, ww[len(ww)-1])
	assert.Equal(t, 3, d.frames)
	_, err = a.SampleManual(0)
	assert.Equal(t, clickadc.ErrNotInitialized, err)
}

func TestSampleSequenceReadFailure(t *testing.T) {
	a, _, c := newADC(t)
	// mask, start, 2 frames, fail
	c.FailAt = 5
	rr, err := clickadc.ReadSequence(a, 7, 8)
	assert.True(t, errors.Is(err, clickadc.ErrIO))
	assert.Len(t, rr, 2)
	require.Equal(t, 6, c.Count())
	assert.Equal(t, []byte{cmdRegWrite, 0x10, 0x00}, c.Transactions[5].W())
}

func TestSampleSequenceStopFailure(t *testing.T) {
	a, _, c := newADC(t)
	c.FailFrom = 4
	rr, err := clickadc.ReadSequence(a, 2, 3)
	assert.True(t, errors.Is(err, clickadc.ErrIO))
	assert.Len(t, rr, 1)
	// read failure and stop failure both reported
	assert.Contains(t, err.Error(), "read frame")
	assert.Contains(t, err.Error(), "write SEQUENCE_CFG")
}

func TestSampleSequenceBreak(t *testing.T) {
	a, _, c := newADC(t)
	seq, err := a.SampleSequence(7, 8)
	require.Nil(t, err)
	n := 0
	for _, err := range seq {
		require.Nil(t, err)
		n++
		if n == 3 {
			break
		}
	}
	ww := c.Writes()
	require.Len(t, ww, 6)
	assert.Equal(t, []byte{cmdRegWrite, 0x10, 0x00}, ww[5])

	// not restartable
	for _, err := range seq {
		assert.Equal(t, clickadc.ErrSequenceConsumed, err)
	}
	assert.Equal(t, 6, c.Count())
}

func TestSampleSequencePanic(t *testing.T) {
	a, _, c := newADC(t)
	seq, err := a.SampleSequence(3, 8)
	require.Nil(t, err)
	assert.Panics(t, func() {
		for range seq {
			panic("loop body")
		}
	})
	ww := c.Writes()
	require.Len(t, ww, 4)
	assert.Equal(t, []byte{cmdRegWrite, 0x10, 0x00}, ww[3])

	// not left busy
	_, err = a.SampleManual(0)
	assert.Nil(t, err)
	assert.Nil(t, a.Init())
}

func TestSampleSequenceBusy(t *testing.T) {
	a, _, _ := newADC(t)
	seq, err := a.SampleSequence(1, 2)
	require.Nil(t, err)
	for _, err := range seq {
		require.Nil(t, err)
		_, err = a.SampleManual(0)
		assert.Equal(t, clickadc.ErrBusy, err)
		assert.Equal(t, clickadc.ErrBusy, a.Close())
	}
	_, err = a.SampleManual(0)
	assert.Nil(t, err)
}

func TestSampleNotInitialized(t *testing.T) {
	c := spimock.New()
	a := New(c)
	_, err := a.SampleManual(0)
	assert.Equal(t, clickadc.ErrNotInitialized, err)
	_, err = a.SampleSequence(1, 2)
	assert.Equal(t, clickadc.ErrNotInitialized, err)
	assert.Zero(t, c.Count())
}

func TestClose(t *testing.T) {
	a, _, c := newADC(t)
	require.Nil(t, a.Close())
	assert.Equal(t, clickadc.ErrClosed, a.Close())
	assert.Equal(t, clickadc.ErrClosed, a.Init())
	_, err := a.SampleManual(0)
	assert.Equal(t, clickadc.ErrClosed, err)
	_, err = a.ReadRegister(RegSystemStatus)
	assert.Equal(t, clickadc.ErrClosed, err)
	assert.Zero(t, c.Count())
}

func TestCheckPattern(t *testing.T) {
	for _, options := range [][]Option{
		nil,
		{WithChannelID()},
		{WithAveraging(3)},
		{WithAveraging(3), WithChannelID()},
	} {
		a, d, c := newADC(t, options...)
		require.Nil(t, a.CheckPattern())
		dataCfg := a.dataCfg()
		ww := c.Writes()
		require.Len(t, ww, 4)
		assert.Equal(t, []byte{cmdRegWrite, 0x02, dataCfg | DataFixedPattern}, ww[0])
		assert.Equal(t, []byte{cmdRegWrite, 0x02, dataCfg}, ww[3])
		assert.Equal(t, dataCfg, d.regs[RegDataCfg])

		// conversions resume
		s, err := a.SampleManual(2)
		require.Nil(t, err)
		want := int32(d.codes[2])
		if s.Resolution == clickadc.Unipolar16 {
			want <<= 4
		}
		assert.Equal(t, want, s.Code)
	}
}

func TestCheckPatternMismatch(t *testing.T) {
	d := newDevice()
	c := &spimock.Conn{Handler: func(pp []spi.Packet) error {
		w := pp[0].W
		if len(w) == 3 && w[0] == cmdRegWrite && Register(w[1]) == RegDataCfg {
			// pattern enable ignored
			d.regs[RegDataCfg] = w[2] &^ DataFixedPattern
			return nil
		}
		return d.handle(pp)
	}}
	a := New(c)
	require.Nil(t, a.Init())
	err := a.CheckPattern()
	assert.True(t, errors.Is(err, ErrPatternMismatch))
	assert.Contains(t, err.Error(), "got 0x")
	// DATA_CFG still restored
	w := c.Writes()
	assert.Equal(t, []byte{cmdRegWrite, 0x02, 0x00}, w[len(w)-1])
}

func TestCheckPatternNotInitialized(t *testing.T) {
	c := spimock.New()
	a := New(c)
	assert.Equal(t, clickadc.ErrNotInitialized, a.CheckPattern())
	assert.Zero(t, c.Count())
}

func TestCheckPatternFailure(t *testing.T) {
	a, _, c := newADC(t)
	c.FailAt = 2
	err := a.CheckPattern()
	assert.True(t, errors.Is(err, clickadc.ErrIO))
	_, err = a.SampleManual(0)
	assert.Equal(t, clickadc.ErrNotInitialized, err)
}

func TestMillivolts(t *testing.T) {
	a := New(spimock.New())
	assert.Equal(t, 0, a.Millivolts(clickadc.RawSample{Code: 0}))
	assert.Equal(t, 3300, a.Millivolts(clickadc.RawSample{Code: 0xfff, Resolution: clickadc.Unipolar12}))
	assert.Equal(t, 3300, a.Millivolts(clickadc.RawSample{Code: 0xffff, Resolution: clickadc.Unipolar16}))
	assert.Equal(t, 1649, a.Millivolts(clickadc.RawSample{Code: 0x7ff, Resolution: clickadc.Unipolar12}))

	a = New(spimock.New(), WithVoltageRange(5))
	assert.Equal(t, 5000, a.Millivolts(clickadc.RawSample{Code: 0xfff, Resolution: clickadc.Unipolar12}))
}

func TestDecode(t *testing.T) {
	patterns := []struct {
		name  string
		f     []byte
		ratio int
		chid  bool
		s     clickadc.RawSample
	}{
		{"12bit", []byte{0xab, 0xc0}, 0, false, clickadc.RawSample{Code: 0xabc, Resolution: clickadc.Unipolar12, ChannelID: clickadc.NoChannelID}},
		{"12bit id", []byte{0xab, 0xc7}, 0, true, clickadc.RawSample{Code: 0xabc, Resolution: clickadc.Unipolar12, ChannelID: 7}},
		{"16bit", []byte{0xab, 0xcd}, 3, false, clickadc.RawSample{Code: 0xabcd, Resolution: clickadc.Unipolar16, ChannelID: clickadc.NoChannelID}},
		{"16bit id", []byte{0xab, 0xcd, 0x50}, 7, true, clickadc.RawSample{Code: 0xabcd, Resolution: clickadc.Unipolar16, ChannelID: 5}},
	}
	for _, p := range patterns {
		t.Run(p.name, func(t *testing.T) {
			assert.Equal(t, len(p.f), frameLen(p.ratio, p.chid))
			assert.Equal(t, p.s, decode(p.f, p.ratio, p.chid))
		})
	}
}
