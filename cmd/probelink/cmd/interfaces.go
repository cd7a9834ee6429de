package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/probelink/internal/probe"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List attached debug adapters",
	Long: `Scan the host for ST-Link probes and for FTDI chips matching a cable
descriptor, and print a summary with the adapter names that drive each one.`,
	Args: cobra.NoArgs,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cables, err := probe.Cables(cableFile)
	if err != nil {
		return err
	}
	infos, err := probe.DiscoverInterfaces(ctx, cables)
	if err != nil {
		return fmt.Errorf("discover interfaces: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No interfaces found.")
		return nil
	}

	fmt.Fprintln(out, "Detected debug interfaces:")
	for _, iface := range infos {
		fmt.Fprintf(out, "  - %s [%s] (VID:PID %04X:%04X)", iface.Label(), iface.Kind, iface.VendorID, iface.ProductID)
		if iface.Serial != "" {
			fmt.Fprintf(out, " serial %s", iface.Serial)
		}
		fmt.Fprintf(out, " --adapter %s\n", strings.Join(iface.Adapters, "|"))
	}
	return nil
}
