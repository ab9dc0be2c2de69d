package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"stage/core"
	"stage/host/serial"
	"stage/sim"
)

var serveStep time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve DEVICE",
	Short: "Emulate a controller on a serial port using the simulated board",
	Long: "Run the controller packet loop on DEVICE with the configured board " +
		"simulated in real time. Point another stagectl at the other end of the " +
		"line (or a pty pair) to exercise it.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		board, err := stageCfg.ToCore()
		cobra.CheckErr(err)

		sc := stageCfg.SerialConfig(args[0])
		sc.ReadTimeout = 0 // Block between commands
		port, err := serial.Open(sc)
		cobra.CheckErr(err)
		defer port.Close()

		sb := sim.NewBoard(board)
		m, err := core.NewMotionState(board, sb.Hardware())
		cobra.CheckErr(err)
		m.Attach(sb)

		task := core.NewPacketTask(m, core.SystemHooks{
			InitIO:     func() { fmt.Println("Outputs enabled") },
			Reset:      func() { fmt.Println("Reset requested") },
			Bootloader: func() { fmt.Println("Bootloader requested") },
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		go sb.RunRealtime(ctx, serveStep)

		fmt.Printf("Serving %d axes on %s (%d-byte commands)\n", m.NumAxes(), args[0], task.CommandSize())
		errc := make(chan error, 1)
		go func() { errc <- task.Serve(port) }()

		select {
		case <-ctx.Done():
		case err := <-errc:
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
		if verbose {
			core.DumpEvents()
		}
	},
}

func init() {
	serveCmd.Flags().DurationVar(&serveStep, "step", time.Millisecond, "simulation step")
	rootCmd.AddCommand(serveCmd)
}
