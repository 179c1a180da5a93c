// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/warthog618/clickadc"
)

var dumper = spew.ConfigState{
	Indent:                  "\t",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	ContinueOnMethod:        true,
	SortKeys:                true,
}

func printReadings(w io.Writer, rr []clickadc.Reading) {
	if rootOpts.Dump {
		dumper.Fdump(w, rr)
		return
	}
	if rootOpts.Short {
		fmt.Fprintln(w, shortReadings(rr))
		return
	}
	fmt.Fprintln(w, readingsTable(rr))
}

func shortReadings(rr []clickadc.Reading) string {
	ss := make([]string, len(rr))
	for i, r := range rr {
		ss[i] = fmt.Sprintf("%d", r.Millivolts)
	}
	return strings.Join(ss, " ")
}

func readingsTable(rr []clickadc.Reading) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Channel", "Code", "Resolution", "ID", "mV"})
	for _, r := range rr {
		id := "-"
		if r.Sample.HasChannelID() {
			id = fmt.Sprintf("%d", r.Sample.ChannelID)
		}
		t.AppendRow(table.Row{
			r.Channel,
			fmt.Sprintf("0x%04x", r.Sample.Code&0xffff),
			r.Sample.Resolution,
			id,
			r.Millivolts,
		})
	}
	return t.Render()
}
