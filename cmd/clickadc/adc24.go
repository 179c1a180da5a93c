// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/warthog618/clickadc"
	"github.com/warthog618/clickadc/spi/adc24"
	"go.uber.org/multierr"
)

func init() {
	pf := adc24Cmd.PersistentFlags()
	pf.Bool("chid", false, "check the channel address returned in each frame")
	pf.Duration("settle", adc24.DefaultSettle, "delay following each power up frame")
	adc24GetCmd.Flags().BoolVarP(&adc24Opts.All, "all", "a", false, "read all channels")
	adc24Cmd.SetHelpTemplate(adc24Cmd.HelpTemplate() + extendedADC24Help)
	adc24Cmd.AddCommand(adc24GetCmd, adc24SeqCmd)
	rootCmd.AddCommand(adc24Cmd)
}

var (
	adc24Cmd = &cobra.Command{
		Use:   "adc24",
		Short: "Sample an ADC 24 click",
	}
	adc24GetCmd = &cobra.Command{
		Use:     "get <ch1>...",
		Short:   "Sample a channel or channels in manual mode",
		Example: "  clickadc adc24 get 0 15",
		PreRunE: preadc24get,
		RunE:    adc24get,
	}
	adc24SeqCmd = &cobra.Command{
		Use:     "seq <stop> [count]",
		Short:   "Sample channels 0 to stop in sequence mode",
		Example: "  clickadc adc24 seq 15",
		Args:    cobra.RangeArgs(1, 2),
		RunE:    adc24seq,
	}
	adc24Opts = struct {
		All bool
	}{}
)

var extendedADC24Help = `
Channels:
  Channels are numbered 0-15.

Readings are bipolar, in the range -2500mV to +2500mV.
`

func preadc24get(cmd *cobra.Command, args []string) error {
	if !adc24Opts.All {
		return cobra.MinimumNArgs(1)(cmd, args)
	}
	return nil
}

func openADC24(cmd *cobra.Command) (*session, *adc24.ADC24, error) {
	s, err := openSession(cmd)
	if err != nil {
		return nil, nil, err
	}
	options := []adc24.Option{
		adc24.WithSettle(s.cfg.MustGet("settle").Duration()),
		adc24.WithLogger(s.log.Named("adc24")),
	}
	if s.cfg.MustGet("chid").Bool() {
		options = append(options, adc24.WithChannelIDCheck())
	}
	return s, adc24.New(s.bus, options...), nil
}

func adc24get(cmd *cobra.Command, args []string) (err error) {
	cc := allChannels(adc24.Channels)
	if !adc24Opts.All {
		cc, err = parseChannels(args, adc24.MaxChannel)
		if err != nil {
			return err
		}
	}
	s, adc, err := openADC24(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close(adc))
	}()
	if err = adc.Init(); err != nil {
		return err
	}
	rr, err := readChannels(adc, cc)
	printReadings(os.Stdout, rr)
	return err
}

func adc24seq(cmd *cobra.Command, args []string) (err error) {
	stop, count, err := parseSequence(args, adc24.MaxChannel)
	if err != nil {
		return err
	}
	s, adc, err := openADC24(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close(adc))
	}()
	if err = adc.Init(); err != nil {
		return err
	}
	rr, err := clickadc.ReadSequence(adc, stop, count)
	printReadings(os.Stdout, rr)
	return err
}
