// SPDX-License-Identifier: MIT
//
// Copyright © 2024 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config-file", "c", "", "configuration file")
	pf.StringP("driver", "D", "", "bus driver [spidev|periph|bitbash]")
	pf.String("device", "", "spidev device")
	pf.String("port", "", "periph SPI port")
	pf.Int("mode", 0, "SPI mode")
	pf.Int("speed", 0, "SPI clock speed in Hz")
	pf.BoolVarP(&rootOpts.Verbose, "verbose", "v", false, "log bus activity")
	pf.BoolVar(&rootOpts.Dump, "dump", false, "dump the raw samples")
	pf.BoolVarP(&rootOpts.Short, "short", "s", false, "single line output format")
	rootCmd.SetHelpTemplate(rootCmd.HelpTemplate() + extendedRootHelp)
}

var (
	rootCmd = &cobra.Command{
		Use:   "clickadc",
		Short: "clickadc is a utility to sample ADC 20 and ADC 24 click boards",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
		Version: version,
	}
	rootOpts = struct {
		Verbose bool
		Dump    bool
		Short   bool
	}{}
)

var extendedRootHelp = `
Configuration:
  Bus settings are taken from flags, then CLICKADC_ environment variables,
  then the configuration file (clickadc.json by default), then defaults.

  The bitbash driver uses the sclk, csz, mosi and miso pins and the tclk
  half cycle time, which may only be set via environment or file.
`

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if rootOpts.Verbose {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func loadConfig(cmd *cobra.Command) *config.Config {
	defaultConfig := map[string]interface{}{
		"driver": "spidev",
		"device": "/dev/spidev0.0",
		"port":   "",
		"mode":   0,
		"speed":  1000000,
		"tclk":   "500ns",
		"sclk":   "GPIO11",
		"csz":    "GPIO8",
		"mosi":   "GPIO10",
		"miso":   "GPIO9",
		"settle": "10us",
		"chid":   false,
		"avg":    0,
	}
	def := dict.New(dict.WithMap(defaultConfig))
	cfg := config.New(
		dict.New(dict.WithMap(changedFlags(cmd))),
		env.New(env.WithEnvPrefix("CLICKADC_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "clickadc.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}

// changedFlags returns the flags explicitly set on the command line, keyed
// by their config name.
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	m := map[string]interface{}{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "config-file":
			m["config"] = map[string]interface{}{"file": f.Value.String()}
		case "verbose", "dump", "short":
		default:
			m[f.Name] = f.Value.String()
		}
	})
	return m
}
