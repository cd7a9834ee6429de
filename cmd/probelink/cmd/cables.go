package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/probelink/internal/probe"
)

var cablesCmd = &cobra.Command{
	Use:   "cables",
	Short: "List cable descriptors",
	Long: `Print the built-in FTDI cable descriptors, plus those of the --cables file,
with their USB IDs, MPSSE channel and reset capabilities. Any name listed can be
passed to --adapter.`,
	Args: cobra.NoArgs,
	RunE: runCables,
}

func init() {
	rootCmd.AddCommand(cablesCmd)
}

func runCables(cmd *cobra.Command, args []string) error {
	table, err := probe.Cables(cableFile)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUSB ID\tCHANNEL\tSRST\tSENSE\tDESCRIPTION")
	for _, name := range table.Names() {
		d, _ := table.Lookup(name)
		srst := "-"
		if d.CanReset() {
			srst = "drive"
		}
		sense := "-"
		if _, ok := d.ResetSense(); ok {
			sense = "srst"
		}
		if d.VoltageSense.Defined() {
			if sense == "-" {
				sense = "vref"
			} else {
				sense += ",vref"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", d.Name, d.USBID(), d.Channel, srst, sense, d.Description)
	}
	return w.Flush()
}
