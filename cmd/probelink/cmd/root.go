package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"periph.io/x/conn/v3/physic"

	"github.com/OpenTraceLab/probelink/internal/probe"
)

var (
	// Global flags
	adapterName   string
	adapterSerial string
	cableFile     string
	adapterSpeed  int64
	irLengths     []int
	extraDevices  []string
)

var rootCmd = &cobra.Command{
	Use:   "probelink",
	Short: "Debug probe transport and JTAG chain scanner",
	Long: `probelink talks to a target's ARM debug port through an ST-Link probe or a
bit-banged FTDI MPSSE cable, scans the JTAG chain behind it and drives the
target's reset and power sense lines.

Examples:
  probelink interfaces                              # List attached adapters
  probelink cables --cables my-cables.yaml          # List cable descriptors
  probelink scan --adapter stlink                   # Scan through an ST-Link
  probelink scan --adapter olimex --speed 6000000   # Scan through a cable
  probelink reset pulse --adapter flossjtag         # Pulse SRST
  probelink voltage --adapter stlink --v 2          # Read target voltage with logging`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// glog writes files by default; keep the CLI on stderr.
	_ = flag.Set("logtostderr", "true")
	pf := rootCmd.PersistentFlags()
	pf.SetNormalizeFunc(dashedFlags)
	pf.AddGoFlagSet(flag.CommandLine)

	pf.StringVarP(&adapterName, "adapter", "a", probe.STLink,
		"adapter: stlink or a cable name (see 'probelink cables')")
	pf.StringVarP(&adapterSerial, "serial", "s", "",
		"adapter serial number (if multiple adapters)")
	pf.StringVar(&cableFile, "cables", "",
		"YAML file with extra cable descriptors")
	pf.Int64Var(&adapterSpeed, "speed", int64(1000000),
		"TCK speed in Hz for bit-banged cables")
	pf.IntSliceVar(&irLengths, "irlen", nil,
		"IR length of every device, nearest TDO first (default detect)")
	pf.StringArrayVar(&extraDevices, "device", nil,
		"extra known device, PATTERN=description (hex IDCODE or 32-digit binary with X)")
}

// dashedFlags accepts --log-dir for glog's --log_dir and the like.
func dashedFlags(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func options() probe.Options {
	return probe.Options{
		Adapter:   adapterName,
		Serial:    adapterSerial,
		CableFile: cableFile,
		Speed:     physic.Frequency(adapterSpeed) * physic.Hertz,
		IRLens:    irLengths,
		Devices:   extraDevices,
	}
}

// openSession opens the adapter selected by the global flags.
func openSession() (*probe.Session, error) {
	s, err := probe.Open(options())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", adapterName, err)
	}
	return s, nil
}
