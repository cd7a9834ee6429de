package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var voltageCmd = &cobra.Command{
	Use:   "voltage",
	Short: "Report the target supply",
	Long: `Print the target voltage measured by an ST-Link, or whether a cable's
voltage-sense pin sees target power.`,
	Args: cobra.NoArgs,
	RunE: runVoltage,
}

func init() {
	rootCmd.AddCommand(voltageCmd)
}

func runVoltage(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := s.Voltage()
	if err != nil {
		return fmt.Errorf("target voltage: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Target: %s\n", v)
	return nil
}
