package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/physic"

	"stage/config"
	"stage/core"
	"stage/host/serial"
	"stage/host/stage"
	"stage/host/usb"
	"stage/protocol"
)

var (
	cfgPath   string
	device    string
	transport string
	verbose   bool

	stageCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "stagectl",
	Short: "Bench tool for the stage motion controller",
	Long: "stagectl talks to a stage motion controller over its serial or USB link, " +
		"and runs the controller firmware against a simulated board.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		path := cfgPath
		if path == "" {
			var err error
			path, err = config.DefaultPath()
			cobra.CheckErr(err)
		}
		cfg, err := config.Load(path)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to load config: %w", err))
		}
		stageCfg = cfg

		if verbose {
			core.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
			core.SetDebugEnabled(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ~/.stagectl.toml)")
	rootCmd.PersistentFlags().StringVarP(&device, "device", "d", "", "serial device (default: from config, else discovered by USB ID)")
	rootCmd.PersistentFlags().StringVarP(&transport, "transport", "t", "", "link transport: serial or usb (default: from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print controller debug output to stderr")
}

// connect opens the link selected by flags and config
func connect() (*stage.Stage, error) {
	axes := len(stageCfg.Axis)
	tr := transport
	if tr == "" {
		tr = stageCfg.Link.Transport
	}

	switch tr {
	case config.TransportUSB:
		u := stageCfg.Link.USB
		return usb.Connect(&usb.Config{
			VendorID:  u.VendorID,
			ProductID: u.ProductID,
			Interface: u.Interface,
			OutAddr:   u.OutEndpoint,
			InAddr:    u.InEndpoint,
		}, axes)
	case config.TransportSerial:
		dev := device
		if dev == "" {
			dev = stageCfg.Link.Device
		}
		if dev == "" {
			var err error
			dev, err = serial.Discover(stageCfg.USBID())
			if err != nil {
				return nil, err
			}
		}
		return stage.ConnectWithConfig(stageCfg.SerialConfig(dev), axes)
	default:
		return nil, fmt.Errorf("unknown transport %q", tr)
	}
}

// withStage runs fn on a connected stage and reports errors through cobra
func withStage(fn func(s *stage.Stage) error) {
	s, err := connect()
	if err != nil {
		cobra.CheckErr(fmt.Errorf("failed to connect: %w", err))
	}
	err = fn(s)
	s.Close()
	cobra.CheckErr(err)
}

// hz formats a step rate
func hz(f uint32) string {
	return (physic.Frequency(f) * physic.Hertz).String()
}

// printStatus writes one line per axis
func printStatus(w io.Writer, st *protocol.Status) {
	fmt.Fprintf(w, "%-6s %12s %8s\n", "axis", "frequency", "position")
	for i, a := range stageCfg.Axis {
		fmt.Fprintf(w, "%-6s %12s %8d\n", a.Name, hz(uint32(st.Axes[i].Frequency)), st.Axes[i].Position)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
