// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/warthog618/clickadc"
	"github.com/warthog618/clickadc/spi/adc20"
	"go.uber.org/multierr"
)

func init() {
	pf := adc20Cmd.PersistentFlags()
	pf.Int("avg", 0, "oversampling ratio [0-7]")
	pf.Bool("chid", false, "append and check the channel ID")
	adc20GetCmd.Flags().BoolVarP(&adc20Opts.All, "all", "a", false, "read all channels")
	adc20RegCmd.Flags().BoolVarP(&adc20Opts.All, "all", "a", false, "read all registers")
	adc20Cmd.SetHelpTemplate(adc20Cmd.HelpTemplate() + extendedADC20Help)
	adc20Cmd.AddCommand(adc20GetCmd, adc20SeqCmd, adc20AvgCmd, adc20RegCmd, adc20RegsetCmd, adc20PatternCmd)
	rootCmd.AddCommand(adc20Cmd)
}

var (
	adc20Cmd = &cobra.Command{
		Use:   "adc20",
		Short: "Sample an ADC 20 click",
	}
	adc20GetCmd = &cobra.Command{
		Use:     "get <ch1>...",
		Short:   "Sample a channel or channels in manual mode",
		Example: "  clickadc adc20 get 0 3 --avg 4",
		PreRunE: preadc20get,
		RunE:    adc20get,
	}
	adc20SeqCmd = &cobra.Command{
		Use:     "seq <stop> [count]",
		Short:   "Sample channels 0 to stop in auto-sequence mode",
		Example: "  clickadc adc20 seq 7",
		Args:    cobra.RangeArgs(1, 2),
		RunE:    adc20seq,
	}
	adc20AvgCmd = &cobra.Command{
		Use:     "avg <ratio> [ch1]...",
		Short:   "Set the oversampling ratio and sample channels",
		Example: "  clickadc adc20 avg 3 0 1",
		Args:    cobra.MinimumNArgs(1),
		RunE:    adc20avg,
	}
	adc20RegCmd = &cobra.Command{
		Use:     "reg <reg1>...",
		Short:   "Read the value of a register or registers",
		Example: "  clickadc adc20 reg DATA_CFG 0x03",
		PreRunE: preadc20reg,
		RunE:    adc20reg,
	}
	adc20RegsetCmd = &cobra.Command{
		Use:     "regset <reg> <value>",
		Short:   "Write the value of a register",
		Example: "  clickadc adc20 regset GPO_VALUE 0x01",
		Args:    cobra.ExactArgs(2),
		RunE:    adc20regset,
	}
	adc20PatternCmd = &cobra.Command{
		Use:     "pattern",
		Short:   "Check the ADC returns its fixed test pattern",
		Aliases: []string{"debug"},
		Args:    cobra.NoArgs,
		RunE:    adc20pattern,
	}
	adc20Opts = struct {
		All bool
	}{}
)

var extendedADC20Help = `
Channels:
  Channels are numbered 0-7.

Registers:
  Registers may be identified by name (e.g. OSR_CFG) or address.

Oversampling:
  With oversampling enabled the ADC returns 16 bit codes, else 12 bit.
`

func preadc20get(cmd *cobra.Command, args []string) error {
	if !adc20Opts.All {
		return cobra.MinimumNArgs(1)(cmd, args)
	}
	return nil
}

func preadc20reg(cmd *cobra.Command, args []string) error {
	return preadc20get(cmd, args)
}

func openADC20(cmd *cobra.Command) (*session, *adc20.ADC20, error) {
	s, err := openSession(cmd)
	if err != nil {
		return nil, nil, err
	}
	options := []adc20.Option{
		adc20.WithAveraging(s.cfg.MustGet("avg").Int()),
		adc20.WithLogger(s.log.Named("adc20")),
	}
	if s.cfg.MustGet("chid").Bool() {
		options = append(options, adc20.WithChannelID())
	}
	return s, adc20.New(s.bus, options...), nil
}

func adc20get(cmd *cobra.Command, args []string) (err error) {
	cc := allChannels(adc20.Channels)
	if !adc20Opts.All {
		cc, err = parseChannels(args, adc20.MaxChannel)
		if err != nil {
			return err
		}
	}
	s, adc, err := openADC20(cmd)
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

func adc20seq(cmd *cobra.Command, args []string) (err error) {
	stop, count, err := parseSequence(args, adc20.MaxChannel)
	if err != nil {
		return err
	}
	s, adc, err := openADC20(cmd)
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

func adc20avg(cmd *cobra.Command, args []string) (err error) {
	ratio, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.Errorf("can't parse ratio '%s'", args[0])
	}
	cc, err := parseChannels(args[1:], adc20.MaxChannel)
	if err != nil {
		return err
	}
	s, adc, err := openADC20(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close(adc))
	}()
	if err = adc.Init(); err != nil {
		return err
	}
	if err = adc.SetAveraging(ratio); err != nil {
		return err
	}
	v, err := adc.ReadRegister(adc20.RegOSRCfg)
	if err != nil {
		return err
	}
	fmt.Printf("%s=0x%02x\n", adc20.RegOSRCfg, v)
	if len(cc) == 0 {
		return nil
	}
	rr, err := readChannels(adc, cc)
	printReadings(os.Stdout, rr)
	return err
}

func adc20reg(cmd *cobra.Command, args []string) (err error) {
	regs := adc20.Registers()
	if !adc20Opts.All {
		regs = nil
		for _, arg := range args {
			reg, err := adc20.ParseRegister(arg)
			if err != nil {
				return err
			}
			regs = append(regs, reg)
		}
	}
	s, adc, err := openADC20(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close(adc))
	}()
	for _, reg := range regs {
		v, err := adc.ReadRegister(reg)
		if err != nil {
			return err
		}
		if rootOpts.Short {
			fmt.Printf("0x%02x\n", v)
			continue
		}
		fmt.Printf("%-16s 0x%02x\n", reg, v)
	}
	return nil
}

func adc20regset(cmd *cobra.Command, args []string) (err error) {
	reg, err := adc20.ParseRegister(args[0])
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return errors.Errorf("can't parse value '%s'", args[1])
	}
	s, adc, err := openADC20(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close(adc))
	}()
	return adc.WriteRegister(reg, uint8(v))
}

func adc20pattern(cmd *cobra.Command, args []string) (err error) {
	s, adc, err := openADC20(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close(adc))
	}()
	if err = adc.Init(); err != nil {
		return err
	}
	if err = adc.CheckPattern(); err != nil {
		return err
	}
	fmt.Printf("0x%03x: ok\n", adc20.FixedPattern)
	return nil
}
