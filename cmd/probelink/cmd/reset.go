package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/probelink/internal/probe"
	"github.com/OpenTraceLab/probelink/pkg/adiv5"
)

var resetHold time.Duration

var resetCmd = &cobra.Command{
	Use:   "reset [assert|release|pulse|status]",
	Short: "Drive or read the target's SRST line",
	Long: `Assert, release or pulse the target's system reset (default pulse), then
report the level read back when the adapter can sense it. Adapters without
SRST wiring report that reset is not supported.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"assert", "release", "pulse", "status"},
	RunE:      runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().DurationVar(&resetHold, "hold", 100*time.Millisecond, "how long pulse keeps SRST asserted")
}

func runReset(cmd *cobra.Command, args []string) error {
	action := "pulse"
	if len(args) == 1 {
		action = args[0]
	}
	switch action {
	case "assert", "release", "pulse", "status":
	default:
		return fmt.Errorf("unknown reset action %q", action)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	switch action {
	case "assert":
		err = s.SetReset(true)
	case "release":
		err = s.SetReset(false)
	case "pulse":
		if err = s.SetReset(true); err == nil {
			time.Sleep(resetHold)
			err = s.SetReset(false)
		}
	}
	if err != nil {
		return fmt.Errorf("reset %s: %w", action, err)
	}
	return printReset(cmd.OutOrStdout(), s)
}

func printReset(out io.Writer, s *probe.Session) error {
	asserted, err := s.ReadReset()
	switch {
	case errors.Is(err, adiv5.ErrUnsupported):
		fmt.Fprintln(out, "SRST: unknown (no read-back on this adapter)")
		return nil
	case err != nil:
		return fmt.Errorf("read reset: %w", err)
	case asserted:
		fmt.Fprintln(out, "SRST: asserted")
	default:
		fmt.Fprintln(out, "SRST: released")
	}
	return nil
}
