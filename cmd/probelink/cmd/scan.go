package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/probelink/internal/probe"
	"github.com/OpenTraceLab/probelink/pkg/adiv5"
	"github.com/OpenTraceLab/probelink/pkg/chain"
	"github.com/OpenTraceLab/probelink/pkg/idcode"
)

var scanSWD bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the debug link",
	Long: `Enter debug mode, read the IDCODE of every device on the JTAG chain and
match it against the known-device table. Devices with an ARM debug port get a
bound DP whose CTRL/STAT is read back.

With --swd the probe connects over SWD to its single debug port instead.

Examples:
  probelink scan --adapter stlink
  probelink scan --adapter stlink --swd
  probelink scan --adapter ft232h --irlen 4,5
  probelink scan --adapter olimex --device "XXXX0110010000010011000001000001=my STM32F4"`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanSWD, "swd", false, "connect over SWD instead of scanning JTAG")
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Adapter: %s\n", s)

	if scanSWD {
		dp, err := s.SWD()
		if err != nil {
			return fmt.Errorf("swd connect: %w", err)
		}
		fmt.Fprintf(out, "SWD-DP  %s\n", idcode.Describe(dp.IDCode))
		printCtrlStat(out, dp)
		return nil
	}

	return scanChain(out, s)
}

func scanChain(out io.Writer, s *probe.Session) error {
	n, err := s.Scan()
	if err != nil {
		return fmt.Errorf("chain scan: %w", err)
	}
	fmt.Fprintf(out, "Found %d device(s)\n", n)
	for _, d := range s.Scanner().Devices() {
		printDevice(out, d)
	}
	return nil
}

func printDevice(out io.Writer, d *chain.Device) {
	fmt.Fprintf(out, "  #%d  %s\n", d.Index, idcode.Describe(d.IDCode))
	fmt.Fprintf(out, "      %s\n", d.Description)
	if d.IRLen > 0 {
		fmt.Fprintf(out, "      ir=%d ir-pre=%d ir-post=%d\n", d.IRLen, d.IRPrescan, d.IRPostscan)
	}
	if d.Claimed() {
		printCtrlStat(out, d.DP)
	}
}

func printCtrlStat(out io.Writer, dp *adiv5.DP) {
	v, err := dp.Read(adiv5.DPCtrlStat)
	if err != nil {
		fmt.Fprintf(out, "      CTRL/STAT: %v\n", err)
		return
	}
	fmt.Fprintf(out, "      CTRL/STAT: 0x%08X\n", v)
}
