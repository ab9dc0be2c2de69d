package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stage/host/stage"
	"stage/protocol"
)

var (
	moveFreq uint16
	moveWait time.Duration
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print frequency and position of every axis",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withStage(func(s *stage.Stage) error {
			st, err := s.GetState()
			if err != nil {
				return err
			}
			printStatus(os.Stdout, &st)
			return nil
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move AXIS POSITION",
	Short: "Move one axis to an absolute position",
	Long:  "Move one axis to an absolute position. AXIS is an axis name or index.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		axis, err := stageCfg.AxisIndex(args[0])
		cobra.CheckErr(err)
		pos, err := strconv.ParseUint(args[1], 0, 16)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("invalid position %q: %w", args[1], err))
		}

		withStage(func(s *stage.Stage) error {
			st, err := s.MoveTo(axis, moveFreq, uint16(pos))
			if err != nil {
				return err
			}
			if f := st.Axes[axis].Frequency; f != 0 && f != moveFreq {
				fmt.Printf("Running at %s (requested %s)\n", hz(uint32(f)), hz(uint32(moveFreq)))
			}
			if moveWait > 0 {
				ctx, cancel := context.WithTimeout(context.Background(), moveWait)
				defer cancel()
				if st, err = s.WaitIdle(ctx, 50*time.Millisecond); err != nil {
					return err
				}
			}
			printStatus(os.Stdout, &st)
			return nil
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [AXIS...]",
	Short: "Stop axes at their current position (all axes by default)",
	Run: func(cmd *cobra.Command, args []string) {
		var axes []int
		for _, a := range args {
			i, err := stageCfg.AxisIndex(a)
			cobra.CheckErr(err)
			axes = append(axes, i)
		}
		withStage(func(s *stage.Stage) error {
			st, err := s.Stop(axes...)
			if err != nil {
				return err
			}
			printStatus(os.Stdout, &st)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the controller",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withStage(func(s *stage.Stage) error {
			if err := s.Reset(); err != nil {
				return err
			}
			fmt.Println("Controller reset")
			return nil
		})
	},
}

var dfuCmd = &cobra.Command{
	Use:   "dfu",
	Short: "Reboot the controller into its firmware loader",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withStage(func(s *stage.Stage) error {
			if err := s.EnterBootloader(); err != nil {
				return err
			}
			fmt.Printf("Controller entering %s\n", protocol.OpcodeName(protocol.OpBootloader))
			return nil
		})
	},
}

func init() {
	moveCmd.Flags().Uint16VarP(&moveFreq, "freq", "f", 1000, "step rate in Hz")
	moveCmd.Flags().DurationVarP(&moveWait, "wait", "w", 0, "wait up to this long for the move to finish")

	rootCmd.AddCommand(stateCmd, moveCmd, stopCmd, resetCmd, dfuCmd)
}
