package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stage/core"
	"stage/protocol"
	"stage/sim"
)

var (
	simLimit  time.Duration
	simEvents bool
)

var simCmd = &cobra.Command{
	Use:   "sim AXIS:FREQUENCY:POSITION...",
	Short: "Run a set-state command against the simulated board",
	Long: "Build the configured board in simulation, send one set-state command " +
		"with the given setpoints and run the virtual clock until every axis stops.",
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		board, err := stageCfg.ToCore()
		cobra.CheckErr(err)

		var set protocol.Command
		set.Opcode = protocol.OpSetState
		for _, arg := range args {
			axis, freq, pos, err := parseSetpoint(arg)
			cobra.CheckErr(err)
			set.Select(axis, freq, pos)
		}

		sb := sim.NewBoard(board)
		m, err := core.NewMotionState(board, sb.Hardware())
		cobra.CheckErr(err)
		m.Attach(sb)
		core.ClearEvents()

		st := m.Dispatch(&set)
		fmt.Println("Commanded:")
		printStatus(os.Stdout, &st)

		start := sb.Now()
		idle := sb.RunUntilIdle(sb.Ticks(simLimit))
		elapsed := time.Duration(float64(sb.Now()-start) / float64(board.Clock) * float64(time.Second))

		get := protocol.Command{Opcode: protocol.OpGetState}
		st = m.Dispatch(&get)
		fmt.Printf("\nAfter %v of virtual time:\n", elapsed)
		printStatus(os.Stdout, &st)
		for i := 0; i < m.NumAxes(); i++ {
			ch := sb.Channel(m.ChannelOf(i))
			fmt.Printf("  %s: %d overflows on %s\n", stageCfg.Axis[i].Name, ch.Overflows(), board.Channels[m.ChannelOf(i)].Name)
		}
		if simEvents {
			core.SetDebugWriter(func(s string) { fmt.Println(s) })
			core.DumpEvents()
		}
		if !idle {
			cobra.CheckErr(fmt.Errorf("axes still moving after %v", simLimit))
		}
	},
}

// parseSetpoint parses AXIS:FREQUENCY:POSITION
func parseSetpoint(arg string) (int, uint16, uint16, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("setpoint %q: want AXIS:FREQUENCY:POSITION", arg)
	}
	axis, err := stageCfg.AxisIndex(parts[0])
	if err != nil {
		return 0, 0, 0, err
	}
	freq, err := strconv.ParseUint(parts[1], 0, 16)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("setpoint %q: frequency: %w", arg, err)
	}
	pos, err := strconv.ParseUint(parts[2], 0, 16)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("setpoint %q: position: %w", arg, err)
	}
	return axis, uint16(freq), uint16(pos), nil
}

func init() {
	simCmd.Flags().DurationVar(&simLimit, "limit", 60*time.Second, "virtual time limit")
	simCmd.Flags().BoolVar(&simEvents, "events", false, "dump the motion event ring afterwards")
	rootCmd.AddCommand(simCmd)
}
