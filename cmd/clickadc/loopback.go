// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warthog618/clickadc/spi"
	"go.uber.org/multierr"
)

func init() {
	rootCmd.AddCommand(loopbackCmd)
}

var loopbackCmd = &cobra.Command{
	Use:   "loopback",
	Short: "Test the bus with MOSI tied to MISO",
	Long: `Write a test pattern to the bus and check it is read back unchanged.

Disconnect the click board and tie MOSI to MISO before running.`,
	Args: cobra.NoArgs,
	RunE: loopback,
}

var loopbackPattern = []byte{0x00, 0xff, 0xa5, 0x5a, 0x01, 0x80, 0x7f, 0xfe}

func loopback(cmd *cobra.Command, args []string) (err error) {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close(nil))
	}()
	if err = spi.Loopback(s.bus, loopbackPattern); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", s.bus)
	return nil
}
