package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/sergev/cerelog/x8"
)

var streamSeconds int

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream decoded samples from the board",
	Long:  "Stream decoded samples from the board. Prepares the session, waits for the first sample, then prints a throttled view of the decoded rows until the duration elapses or Ctrl-C.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var samples int
		sink := x8.SinkFunc(func(row []float64) {
			samples++
			if (samples-1)%conf.LogEvery != 0 {
				return
			}
			fmt.Printf("sample %8d  t=%.3f ", samples, row[conf.Channels.Timestamp])
			for _, idx := range conf.Channels.EEG {
				fmt.Printf(" %+.6e", row[idx])
			}
			fmt.Println()
		})

		opts := boardOptions()
		opts.Sink = sink
		board := x8.New(opts)

		if err := board.Prepare(); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to prepare session: %w", err))
		}
		defer board.Release()

		if err := board.Start(); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to start stream: %w", err))
		}

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		select {
		case <-time.After(time.Duration(streamSeconds) * time.Second):
		case <-interrupt:
			fmt.Println("\nInterrupted.")
		}

		if err := board.Stop(); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to stop stream: %w", err))
		}
		fmt.Printf("Acquired %d samples.\n", samples)
	},
}

func init() {
	streamCmd.Flags().IntVarP(&streamSeconds, "seconds", "s", 10, "acquisition duration in seconds")
	rootCmd.AddCommand(streamCmd)
}
