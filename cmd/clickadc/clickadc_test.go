// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/clickadc"
)

func TestParseChannels(t *testing.T) {
	cc, err := parseChannels([]string{"0", "7", "3"}, 7)
	require.Nil(t, err)
	assert.Equal(t, []int{0, 7, 3}, cc)

	_, err = parseChannels([]string{"8"}, 7)
	assert.True(t, errors.Is(err, clickadc.ErrInvalidArgument))

	_, err = parseChannels([]string{"one"}, 7)
	assert.NotNil(t, err)
}

func TestParseSequence(t *testing.T) {
	stop, count, err := parseSequence([]string{"3"}, 7)
	require.Nil(t, err)
	assert.Equal(t, 3, stop)
	assert.Equal(t, 4, count)

	stop, count, err = parseSequence([]string{"15", "32"}, 15)
	require.Nil(t, err)
	assert.Equal(t, 15, stop)
	assert.Equal(t, 32, count)

	_, _, err = parseSequence([]string{"0"}, 7)
	assert.True(t, errors.Is(err, clickadc.ErrInvalidArgument))

	_, _, err = parseSequence([]string{"3", "0"}, 7)
	assert.True(t, errors.Is(err, clickadc.ErrInvalidArgument))

	_, _, err = parseSequence([]string{"3", "x"}, 7)
	assert.NotNil(t, err)
}

func TestAllChannels(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3}, allChannels(4))
}

func TestChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("driver", "", "")
	cmd.Flags().String("device", "", "")
	cmd.Flags().Int("speed", 0, "")
	cmd.Flags().String("config-file", "", "")
	cmd.Flags().Bool("verbose", false, "")
	require.Nil(t, cmd.ParseFlags([]string{"--driver", "bitbash", "--speed", "500000", "--config-file", "x.json", "--verbose"}))
	m := changedFlags(cmd)
	assert.Equal(t, map[string]interface{}{
		"driver": "bitbash",
		"speed":  "500000",
		"config": map[string]interface{}{"file": "x.json"},
	}, m)
}

func readings() []clickadc.Reading {
	return []clickadc.Reading{
		{
			Channel:    0,
			Sample:     clickadc.RawSample{Code: 0x0fff, Resolution: clickadc.Unipolar12, ChannelID: 0},
			Millivolts: 3300,
		},
		{
			Channel:    1,
			Sample:     clickadc.RawSample{Code: -2048, Resolution: clickadc.Bipolar12, ChannelID: clickadc.NoChannelID},
			Millivolts: -2500,
		},
	}
}

func TestPrintReadings(t *testing.T) {
	defer func() {
		rootOpts.Short = false
		rootOpts.Dump = false
	}()
	var b bytes.Buffer
	printReadings(&b, readings())
	out := b.String()
	assert.Contains(t, out, "CHANNEL")
	assert.Contains(t, out, "0x0fff")
	assert.Contains(t, out, "0xf800")
	assert.Contains(t, out, "-2500")

	b.Reset()
	rootOpts.Short = true
	printReadings(&b, readings())
	assert.Equal(t, "3300 -2500\n", b.String())

	b.Reset()
	rootOpts.Dump = true
	printReadings(&b, readings())
	assert.Contains(t, b.String(), "Millivolts: (int) -2500")
}
