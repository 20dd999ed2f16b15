package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sergev/cerelog/x8"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the board and report whether it responds",
	Long:  "Probe the board: resolve the serial port, run the time-sync handshake and report whether the device shows signs of life.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		board := x8.New(boardOptions())
		err := board.Prepare()
		if err != nil {
			fmt.Printf("Cerelog X8: Not detected (%v)\n", err)
			return
		}
		defer board.Release()

		fmt.Printf("Cerelog X8: Detected\n")
		fmt.Printf("Streaming Baud Rate: %d\n", conf.Baud)
		fmt.Printf("Wire Format: %s\n", conf.Generation)
		fmt.Printf("Session State: %s\n", board.State())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
