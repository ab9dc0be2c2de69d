package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stage/core"
)

var deriveTimer string

var deriveCmd = &cobra.Command{
	Use:   "derive FREQUENCY",
	Short: "Show the prescaler and TOP each timer would use for a step rate",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := strconv.ParseUint(args[0], 0, 32)
		if err == nil && f == 0 {
			err = fmt.Errorf("frequency must be non-zero")
		}
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid frequency %q: %w", args[0], err))
		}

		board, err := stageCfg.ToCore()
		cobra.CheckErr(err)

		fmt.Printf("%-8s %6s %6s %12s %10s\n", "timer", "ratio", "top", "achieved", "error")
		found := false
		for _, ch := range board.Channels {
			if deriveTimer != "" && ch.Name != deriveTimer {
				continue
			}
			found = true
			s := core.DeriveTimer(board.Clock, ch.ScaleFactor, ch.Ratios, ch.TopMax, uint32(f))
			fmt.Printf("%-8s %6d %6d %12s %9.2f%%\n", ch.Name, s.Ratio, s.Top, hz(s.Achieved),
				100*(float64(s.Achieved)-float64(f))/float64(f))
		}
		if !found {
			cobra.CheckErr(fmt.Errorf("unknown timer %q", deriveTimer))
		}
	},
}

func init() {
	deriveCmd.Flags().StringVar(&deriveTimer, "timer", "", "only show this timer")
	rootCmd.AddCommand(deriveCmd)
}
