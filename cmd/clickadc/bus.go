// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"github.com/pkg/errors"
	"github.com/warthog618/clickadc/spi"
	"github.com/warthog618/clickadc/spi/spidev"
	"github.com/warthog618/config"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	pspi "periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// bus is an open SPI connection and the means to release it.
type bus struct {
	pspi.Conn
	close func() error
}

func (b *bus) Close() error {
	return b.close()
}

func openBus(cfg *config.Config, log *zap.Logger) (*bus, error) {
	driver := cfg.MustGet("driver").String()
	mode := pspi.Mode(cfg.MustGet("mode").Int())
	speed := physic.Frequency(cfg.MustGet("speed").Int()) * physic.Hertz
	log.Debug("open bus",
		zap.String("driver", driver),
		zap.Stringer("mode", mode),
		zap.Stringer("speed", speed))
	switch driver {
	case "spidev":
		c, err := spidev.Open(cfg.MustGet("device").String(), speed, mode, 8)
		if err != nil {
			return nil, err
		}
		return &bus{Conn: c, close: c.Close}, nil
	case "periph":
		if _, err := host.Init(); err != nil {
			return nil, errors.Wrap(err, "periph init")
		}
		p, err := spireg.Open(cfg.MustGet("port").String())
		if err != nil {
			return nil, err
		}
		c, err := p.Connect(speed, mode, 8)
		if err != nil {
			p.Close()
			return nil, err
		}
		return &bus{Conn: c, close: p.Close}, nil
	case "bitbash":
		return openBitbash(cfg, mode)
	}
	return nil, errors.Errorf("unknown driver '%s'", driver)
}

func openBitbash(cfg *config.Config, mode pspi.Mode) (*bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph init")
	}
	var pins [4]gpio.PinIO
	for i, name := range []string{"sclk", "csz", "mosi", "miso"} {
		pn := cfg.MustGet(name).String()
		p := gpioreg.ByName(pn)
		if p == nil {
			return nil, errors.Errorf("unknown %s pin '%s'", name, pn)
		}
		pins[i] = p
	}
	s, err := spi.New(cfg.MustGet("tclk").Duration(), mode, pins[0], pins[1], pins[2], pins[3])
	if err != nil {
		return nil, err
	}
	return &bus{Conn: s, close: s.Close}, nil
}
