// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package adc20

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/warthog618/clickadc"
	"periph.io/x/conn/v3/spi"
)

// Register is the address of an ADC20 configuration register.
type Register uint8

// Configuration registers.
const (
	RegSystemStatus Register = 0x00
	RegGeneralCfg   Register = 0x01
	RegDataCfg      Register = 0x02
	RegOSRCfg       Register = 0x03
	RegOpmodeCfg    Register = 0x04
	RegPinCfg       Register = 0x05
	RegGPIOCfg      Register = 0x07
	RegGPODriveCfg  Register = 0x09
	RegGPOValue     Register = 0x0b
	RegGPIValue     Register = 0x0d
	RegSequenceCfg  Register = 0x10
	RegChannelSel   Register = 0x11
	RegAutoSeqChSel Register = 0x12
)

// Register values.
const (
	// DATA_CFG
	DataChannelIDOmit   = 0x00
	DataChannelIDAppend = 0x10
	DataFixedPattern    = 0x80

	// OPMODE_CFG, the default 1MHz sample rate
	Opmode1MHz = 0x00

	// PIN_CFG
	PinsAllAnalog = 0x00

	// SEQUENCE_CFG
	SequenceManual = 0x00
	SequenceStart  = 0x11
	SequenceStop   = 0x00
)

const (
	cmdRegWrite = 0x08
	cmdRegRead  = 0x10
	dummy       = 0x00
)

var regNames = map[Register]string{
	RegSystemStatus: "SYSTEM_STATUS",
	RegGeneralCfg:   "GENERAL_CFG",
	RegDataCfg:      "DATA_CFG",
	RegOSRCfg:       "OSR_CFG",
	RegOpmodeCfg:    "OPMODE_CFG",
	RegPinCfg:       "PIN_CFG",
	RegGPIOCfg:      "GPIO_CFG",
	RegGPODriveCfg:  "GPO_DRIVE_CFG",
	RegGPOValue:     "GPO_VALUE",
	RegGPIValue:     "GPI_VALUE",
	RegSequenceCfg:  "SEQUENCE_CFG",
	RegChannelSel:   "CHANNEL_SEL",
	RegAutoSeqChSel: "AUTO_SEQ_CH_SEL",
}

func (r Register) String() string {
	if n, ok := regNames[r]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", uint8(r))
}

// Registers returns the named registers in address order.
func Registers() []Register {
	return slices.Sorted(maps.Keys(regNames))
}

// ParseRegister returns the register with the given name, as returned by
// Register.String, or numeric address.
func ParseRegister(s string) (Register, error) {
	for r, n := range regNames {
		if strings.EqualFold(n, s) {
			return r, nil
		}
	}
	var a uint8
	if _, err := fmt.Sscan(s, &a); err != nil {
		return 0, clickadc.InvalidArgument("unknown register '%s'", s)
	}
	return Register(a), nil
}

// writeRegister writes a single register in one transfer.
// A failure is not retried as the register state is then unknown.
func writeRegister(c spi.Conn, reg Register, v uint8) error {
	if err := c.Tx([]byte{cmdRegWrite, uint8(reg), v}, nil); err != nil {
		return clickadc.NewIOError("write "+reg.String(), err)
	}
	return nil
}

// readRegister reads a single register.
// The command and the readback are separate packets, but CS must be held
// across the boundary.
func readRegister(c spi.Conn, reg Register) (uint8, error) {
	r := make([]byte, 1)
	pp := []spi.Packet{
		{W: []byte{cmdRegRead, uint8(reg), dummy}, KeepCS: true},
		{W: []byte{dummy}, R: r},
	}
	if err := c.TxPackets(pp); err != nil {
		return 0, clickadc.NewIOError("read "+reg.String(), err)
	}
	return r[0], nil
}
