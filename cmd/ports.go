package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/sergev/cerelog/transport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and probe the device candidates",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		names, err := serial.GetPortsList()
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to list serial ports: %w", err))
		}
		if len(names) == 0 {
			fmt.Println("No serial ports present.")
		} else {
			fmt.Println("Serial ports:")
			for _, name := range names {
				fmt.Printf("  %s\n", name)
			}
		}

		fmt.Printf("\nDevice candidates for %s:\n", runtime.GOOS)
		for _, name := range transport.CandidatePorts(runtime.GOOS) {
			port, err := transport.Open(name, transport.DefaultProbeBaud)
			if err != nil {
				fmt.Printf("  %-28s not available\n", name)
				continue
			}
			port.Close()
			fmt.Printf("  %-28s available\n", name)
		}
		fmt.Printf("\nFallback port: %s\n", transport.FallbackPort(runtime.GOOS))
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
