// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/warthog618/clickadc"
	"github.com/warthog618/clickadc/spi/adc20"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// This example reads all channels from an ADC 20 click, first individually
// in manual mode and then in a single auto-sequence. The SPI port and
// oversampling ratio are defined in loadConfig, but can be altered via
// configuration (env, flag or config file).
func main() {
	cfg := loadConfig()
	if _, err := host.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "adc20: %s\n", err)
		os.Exit(1)
	}
	p, err := spireg.Open(cfg.MustGet("port").String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "adc20: %s\n", err)
		os.Exit(1)
	}
	defer p.Close()
	c, err := p.Connect(physic.Frequency(cfg.MustGet("speed").Int())*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adc20: %s\n", err)
		os.Exit(1)
	}
	adc := adc20.New(c,
		adc20.WithAveraging(cfg.MustGet("avg").Int()),
		adc20.WithChannelID())
	defer adc.Close()
	if err = adc.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "adc20: %s\n", err)
		os.Exit(1)
	}
	for ch := 0; ch < adc20.Channels; ch++ {
		r, err := clickadc.Read(adc, ch)
		if err != nil {
			fmt.Printf("error reading ch%d: %s\n", ch, err)
			if err = adc.Init(); err != nil {
				break
			}
			continue
		}
		fmt.Printf("ch%d=0x%04x (%dmV)\n", ch, r.Sample.Code, r.Millivolts)
	}
	rr, err := clickadc.ReadSequence(adc, adc20.MaxChannel, adc20.Channels)
	for _, r := range rr {
		fmt.Println(r)
	}
	if err != nil {
		fmt.Printf("error reading sequence: %s\n", err)
	}
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"port":  "",
		"speed": 1000000,
		"avg":   0,
	}
	def := dict.New(dict.WithMap(defaultConfig))
	cfg := config.New(
		pflag.New(pflag.WithFlags(
			[]pflag.Flag{{Short: 'c', Name: "config-file"}})),
		env.New(env.WithEnvPrefix("ADC20_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "adc20.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}
