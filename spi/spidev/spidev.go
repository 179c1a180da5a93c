// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package spidev provides access to SPI devices via the Linux spidev driver.
package spidev

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Conn is an open spidev device.
type Conn struct {
	mu    sync.Mutex
	fd    int
	path  string
	mode  spi.Mode
	speed physic.Frequency
	bits  uint8
}

// ioctl request encoding, from linux/spi/spidev.h
const (
	iocWrite = 1
	iocMagic = 'k'

	iocDirShift  = 30
	iocSizeShift = 16
	iocTypeShift = 8
)

// spi mode bits, from linux/spi/spi.h
const (
	modeCPHA     = 0x01
	modeCPOL     = 0x02
	modeLSBFirst = 0x08
	mode3Wire    = 0x10
	modeNoCS     = 0x40
)

var (
	iocWrMode        = ioc(iocWrite, 1, 1)
	iocWrBitsPerWord = ioc(iocWrite, 3, 1)
	iocWrMaxSpeedHz  = ioc(iocWrite, 4, 4)
)

// transfer mirrors struct spi_ioc_transfer.
type transfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	wordDelay   uint8
	pad         uint8
}

const sizeofTransfer = 32

// Open opens the spidev device at path, such as /dev/spidev0.0, and
// configures the mode, word size and maximum clock speed.
//
// A speed of 0 leaves the speed at the driver default.
func Open(path string, speed physic.Frequency, mode spi.Mode, bits int) (*Conn, error) {
	if bits < 1 || bits > 32 {
		return nil, errors.Errorf("invalid bits per word %d", bits)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	c := &Conn{
		fd:    fd,
		path:  path,
		mode:  mode,
		speed: speed,
		bits:  uint8(bits),
	}
	if err = c.configure(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return c, nil
}

// Close closes the device.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

func (c *Conn) String() string {
	return c.path
}

// Duplex implements conn.Conn.
func (c *Conn) Duplex() conn.Duplex {
	if c.mode&spi.HalfDuplex != 0 {
		return conn.Half
	}
	return conn.Full
}

// Tx implements conn.Conn.
func (c *Conn) Tx(w, r []byte) error {
	return c.TxPackets([]spi.Packet{{W: w, R: r}})
}

// TxPackets implements spi.Conn.
//
// The packets are performed as a single SPI_IOC_MESSAGE.
func (c *Conn) TxPackets(pp []spi.Packet) error {
	if len(pp) == 0 {
		return nil
	}
	tt, err := transfers(pp, c.speed, c.bits)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fd < 0 {
		return errors.Errorf("%s: closed", c.path)
	}
	err = ioctl(c.fd, iocMessage(len(tt)), unsafe.Pointer(&tt[0]))
	runtime.KeepAlive(pp)
	if err != nil {
		return errors.Wrapf(err, "%s: transfer", c.path)
	}
	return nil
}

func (c *Conn) configure() error {
	m := modeBits(c.mode)
	if err := ioctl(c.fd, iocWrMode, unsafe.Pointer(&m)); err != nil {
		return errors.Wrapf(err, "%s: set mode", c.path)
	}
	if err := ioctl(c.fd, iocWrBitsPerWord, unsafe.Pointer(&c.bits)); err != nil {
		return errors.Wrapf(err, "%s: set bits per word", c.path)
	}
	if c.speed > 0 {
		hz := uint32(c.speed / physic.Hertz)
		if err := ioctl(c.fd, iocWrMaxSpeedHz, unsafe.Pointer(&hz)); err != nil {
			return errors.Wrapf(err, "%s: set speed %s", c.path, c.speed)
		}
	}
	return nil
}

func ioc(dir, nr, size uint) uint {
	return dir<<iocDirShift | size<<iocSizeShift | iocMagic<<iocTypeShift | nr
}

// iocMessage returns the SPI_IOC_MESSAGE(n) request.
func iocMessage(n int) uint {
	return ioc(iocWrite, 0, uint(n*sizeofTransfer))
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func modeBits(mode spi.Mode) uint8 {
	var m uint8
	if mode&spi.Mode1 != 0 {
		m |= modeCPHA
	}
	if mode&spi.Mode2 != 0 {
		m |= modeCPOL
	}
	if mode&spi.LSBFirst != 0 {
		m |= modeLSBFirst
	}
	if mode&spi.HalfDuplex != 0 {
		m |= mode3Wire
	}
	if mode&spi.NoCS != 0 {
		m |= modeNoCS
	}
	return m
}

// transfers converts packets to the equivalent spi_ioc_transfers.
//
// The kernel toggles CS after a transfer with cs_change set, unless it is the
// last, in which case CS remains asserted. So cs_change is set on inner
// packets that release CS, and on the last packet if it keeps CS.
func transfers(pp []spi.Packet, speed physic.Frequency, bits uint8) ([]transfer, error) {
	tt := make([]transfer, len(pp))
	for i, p := range pp {
		l := len(p.W)
		if len(p.R) > l {
			l = len(p.R)
		}
		if len(p.W) != 0 && len(p.R) != 0 && len(p.W) != len(p.R) {
			return nil, errors.Errorf("packet %d: write length %d does not match read length %d", i, len(p.W), len(p.R))
		}
		t := transfer{
			length:      uint32(l),
			speedHz:     uint32(speed / physic.Hertz),
			bitsPerWord: bits,
		}
		if p.BitsPerWord != 0 {
			t.bitsPerWord = p.BitsPerWord
		}
		if len(p.W) != 0 {
			t.txBuf = uint64(uintptr(unsafe.Pointer(&p.W[0])))
		}
		if len(p.R) != 0 {
			t.rxBuf = uint64(uintptr(unsafe.Pointer(&p.R[0])))
		}
		last := i == len(pp)-1
		if last == p.KeepCS {
			t.csChange = 1
		}
		tt[i] = t
	}
	return tt, nil
}
