// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/warthog618/clickadc"
	"github.com/warthog618/clickadc/spi"
	"github.com/warthog618/clickadc/spi/adc24"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	pspi "periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
)

// This example reads all channels from an ADC 24 click connected to the RPI
// by four data lines - CSZ, SCLK, MOSI, and MISO - using a bit bashed SPI bus.
// The default pin assignments are defined in loadConfig, but can be altered
// via configuration (env, flag or config file).
// All pins other than MISO are outputs so do not run this example on a board
// where those pins serve other purposes.
func main() {
	cfg := loadConfig()
	if _, err := host.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "adc24: %s\n", err)
		os.Exit(1)
	}
	pins := make([]gpio.PinIO, 4)
	for i, name := range []string{"sclk", "csz", "mosi", "miso"} {
		pins[i] = gpioreg.ByName(cfg.MustGet(name).String())
		if pins[i] == nil {
			fmt.Fprintf(os.Stderr, "adc24: unknown %s pin\n", name)
			os.Exit(1)
		}
	}
	s, err := spi.New(cfg.MustGet("tclk").Duration(), pspi.Mode0, pins[0], pins[1], pins[2], pins[3])
	if err != nil {
		fmt.Fprintf(os.Stderr, "adc24: %s\n", err)
		os.Exit(1)
	}
	defer s.Close()
	adc := adc24.New(s,
		adc24.WithSettle(cfg.MustGet("settle").Duration()),
		adc24.WithChannelIDCheck())
	defer adc.Close()
	if err = adc.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "adc24: %s\n", err)
		os.Exit(1)
	}
	rr, err := clickadc.ReadSequence(adc, adc24.MaxChannel, adc24.Channels)
	for _, r := range rr {
		fmt.Printf("ch%d=%d (%dmV)\n", r.Channel, r.Sample.Code, r.Millivolts)
	}
	if err != nil {
		fmt.Printf("error reading sequence: %s\n", err)
	}
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"tclk":   "500ns",
		"settle": "10us",
		"sclk":   "GPIO24",
		"csz":    "GPIO17",
		"mosi":   "GPIO27",
		"miso":   "GPIO22",
	}
	def := dict.New(dict.WithMap(defaultConfig))
	cfg := config.New(
		pflag.New(pflag.WithFlags(
			[]pflag.Flag{{Short: 'c', Name: "config-file"}})),
		env.New(env.WithEnvPrefix("ADC24_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "adc24.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}
