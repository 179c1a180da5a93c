// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/warthog618/clickadc"
	"github.com/warthog618/config"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// session holds the resources shared by the ADC commands.
type session struct {
	cfg *config.Config
	log *zap.Logger
	bus *bus
}

func openSession(cmd *cobra.Command) (*session, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	cfg := loadConfig(cmd)
	b, err := openBus(cfg, log.Named("bus"))
	if err != nil {
		log.Sync()
		return nil, err
	}
	return &session{cfg: cfg, log: log, bus: b}, nil
}

// Close releases the ADC and then the bus.
func (s *session) Close(adc clickadc.ADC) error {
	var err error
	if adc != nil {
		err = adc.Close()
	}
	err = multierr.Append(err, s.bus.Close())
	s.log.Sync()
	return err
}

func parseChannel(arg string, maxCh int) (int, error) {
	ch, err := strconv.Atoi(arg)
	if err != nil {
		return 0, errors.Errorf("can't parse channel '%s'", arg)
	}
	if err := clickadc.CheckChannel(ch, maxCh); err != nil {
		return 0, err
	}
	return ch, nil
}

func parseChannels(args []string, maxCh int) ([]int, error) {
	cc := []int(nil)
	for _, arg := range args {
		ch, err := parseChannel(arg, maxCh)
		if err != nil {
			return nil, err
		}
		cc = append(cc, ch)
	}
	return cc, nil
}

func allChannels(n int) []int {
	cc := make([]int, n)
	for i := range cc {
		cc[i] = i
	}
	return cc
}

// parseSequence parses the stop channel and optional count, which defaults
// to one pass through the channels.
func parseSequence(args []string, maxStop int) (stop, count int, err error) {
	stop, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, errors.Errorf("can't parse stop channel '%s'", args[0])
	}
	count = stop + 1
	if len(args) > 1 {
		count, err = strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, errors.Errorf("can't parse count '%s'", args[1])
		}
	}
	return stop, count, clickadc.CheckSequence(stop, count, maxStop)
}

func readChannels(adc clickadc.ADC, cc []int) ([]clickadc.Reading, error) {
	rr := make([]clickadc.Reading, 0, len(cc))
	for _, ch := range cc {
		r, err := clickadc.Read(adc, ch)
		if err != nil {
			return rr, err
		}
		rr = append(rr, r)
	}
	return rr, nil
}
