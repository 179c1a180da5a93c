// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package spi provides a bit bashed SPI bus using 4 GPIO lines.
//
// The SPI satisfies the periph spi.Conn interface so it can stand in for a
// hardware SPI port when the device is wired to general purpose pins.
// It is not related to the SPI device drivers provided by Linux.
package spi

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	pspi "periph.io/x/conn/v3/spi"
)

// SPI represents a device connected via an SPI bus using 4 GPIO lines.
type SPI struct {
	Mu sync.Mutex
	// time between clock edges (i.e. half the cycle time)
	Tclk time.Duration
	Sclk gpio.PinIO
	Csz  gpio.PinIO
	Mosi gpio.PinIO
	Miso gpio.PinIn
	mode pspi.Mode
	err  error
}

const supportedModes = pspi.Mode3 | pspi.NoCS | pspi.LSBFirst

// ErrUnsupported indicates the requested mode or word size is not supported
// by the bit bashed bus.
var ErrUnsupported = errors.New("unsupported")

// New creates a SPI.
//
// The clock and chip select are driven to their idle levels.
func New(tclk time.Duration, mode pspi.Mode, sclk, csz, mosi gpio.PinIO, miso gpio.PinIn) (*SPI, error) {
	if mode&^supportedModes != 0 {
		return nil, errors.Wrapf(ErrUnsupported, "mode 0x%x", int(mode))
	}
	spi := &SPI{
		Tclk: tclk,
		Sclk: sclk,
		Csz:  csz,
		Mosi: mosi,
		Miso: miso,
		mode: mode,
	}
	// hold SPI reset until needed...
	if err := spi.Sclk.Out(spi.idle()); err != nil {
		return nil, errors.Wrap(err, "sclk")
	}
	if err := spi.Csz.Out(gpio.High); err != nil {
		return nil, errors.Wrap(err, "csz")
	}
	if err := spi.Mosi.Out(gpio.Low); err != nil {
		return nil, errors.Wrap(err, "mosi")
	}
	if err := spi.Miso.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, errors.Wrap(err, "miso")
	}
	return spi, nil
}

// Close disables the output pins used to drive the SPI device.
func (spi *SPI) Close() error {
	spi.Mu.Lock()
	defer spi.Mu.Unlock()
	var err error
	for _, p := range []gpio.PinIO{spi.Sclk, spi.Csz, spi.Mosi} {
		if p == spi.Miso {
			continue
		}
		if perr := p.In(gpio.PullNoChange, gpio.NoEdge); perr != nil {
			err = multierr.Append(err, errors.Wrap(perr, p.Name()))
		}
	}
	return err
}

func (spi *SPI) String() string {
	return fmt.Sprintf("bitbash(%s,%s,%s,%s)", spi.Sclk, spi.Csz, spi.Mosi, spi.Miso)
}

// Duplex implements conn.Conn.
func (spi *SPI) Duplex() conn.Duplex {
	return conn.Full
}

// Tx performs a single transaction with CS asserted throughout.
//
// If both w and r are provided they must be the same length.
func (spi *SPI) Tx(w, r []byte) error {
	return spi.TxPackets([]pspi.Packet{{W: w, R: r}})
}

// TxPackets performs the packets as a single transaction.
//
// CS is released between packets unless the packet has KeepCS set, and is
// always released at the end of the transaction.
func (spi *SPI) TxPackets(pp []pspi.Packet) error {
	for i, p := range pp {
		if len(p.W) != 0 && len(p.R) != 0 && len(p.W) != len(p.R) {
			return errors.Errorf("packet %d: write length %d does not match read length %d", i, len(p.W), len(p.R))
		}
		if p.BitsPerWord != 0 && p.BitsPerWord != 8 {
			return errors.Wrapf(ErrUnsupported, "packet %d: %d bits per word", i, p.BitsPerWord)
		}
	}
	spi.Mu.Lock()
	defer spi.Mu.Unlock()
	spi.err = nil
	spi.selectChip(true)
	for i, p := range pp {
		spi.transfer(p.W, p.R)
		if i < len(pp)-1 && !p.KeepCS {
			spi.selectChip(false)
			spi.delay()
			spi.selectChip(true)
		}
	}
	spi.selectChip(false)
	return spi.err
}

// Clock transfers a single bit, writing l to Mosi and returning the level
// read from Miso.
//
// The clock starts and ends at its idle level.
// Assumes caller already holds the Mu lock and has asserted CS.
func (spi *SPI) Clock(l gpio.Level) gpio.Level {
	idle := spi.idle()
	var b gpio.Level
	if spi.mode&pspi.Mode1 == 0 {
		// CPHA 0 - sample on the leading edge
		spi.out(spi.Mosi, l)
		spi.delay()
		spi.out(spi.Sclk, !idle)
		b = spi.Miso.Read()
		spi.delay()
		spi.out(spi.Sclk, idle)
		return b
	}
	// CPHA 1 - shift on the leading edge, sample on the trailing edge
	spi.out(spi.Sclk, !idle)
	spi.out(spi.Mosi, l)
	spi.delay()
	spi.out(spi.Sclk, idle)
	b = spi.Miso.Read()
	spi.delay()
	return b
}

func (spi *SPI) transfer(w, r []byte) {
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	for i := 0; i < n; i++ {
		var wb, rb byte
		if i < len(w) {
			wb = w[i]
		}
		for bit := 0; bit < 8; bit++ {
			mask := spi.bitMask(bit)
			l := spi.Clock(gpio.Level(wb&mask != 0))
			if l {
				rb |= mask
			}
		}
		if i < len(r) {
			r[i] = rb
		}
	}
}

func (spi *SPI) bitMask(bit int) byte {
	if spi.mode&pspi.LSBFirst != 0 {
		return 1 << uint(bit)
	}
	return 0x80 >> uint(bit)
}

func (spi *SPI) idle() gpio.Level {
	return gpio.Level(spi.mode&pspi.Mode2 != 0)
}

func (spi *SPI) selectChip(active bool) {
	if spi.mode&pspi.NoCS != 0 {
		return
	}
	spi.out(spi.Csz, !gpio.Level(active))
}

func (spi *SPI) delay() {
	if spi.Tclk > 0 {
		time.Sleep(spi.Tclk)
	}
}

// out drives the pin, retaining the first error in the transaction.
func (spi *SPI) out(p gpio.PinOut, l gpio.Level) {
	if err := p.Out(l); err != nil && spi.err == nil {
		spi.err = errors.Wrap(err, p.Name())
	}
}

// ErrLoopback indicates the data read back during a loopback test did not
// match the data written.
var ErrLoopback = errors.New("loopback mismatch")

// Loopback writes the pattern to c and checks that the same pattern is read
// back, as is the case when MOSI is tied to MISO.
func Loopback(c pspi.Conn, pattern []byte) error {
	r := make([]byte, len(pattern))
	if err := c.Tx(pattern, r); err != nil {
		return err
	}
	if !bytes.Equal(pattern, r) {
		return errors.Wrapf(ErrLoopback, "wrote % x, read % x", pattern, r)
	}
	return nil
}
