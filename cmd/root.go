package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sergev/cerelog/config"
	"github.com/sergev/cerelog/protocol"
	"github.com/sergev/cerelog/x8"
)

var (
	conf    config.Config
	log     zerolog.Logger
	flagOpt struct {
		port    string
		verbose bool
	}
)

var rootCmd = &cobra.Command{
	Use:   "cerelog",
	Short: "A CLI program which acquires EEG data from a Cerelog X8 board",
	Long:  "The cerelog tool talks to a Cerelog X8 eight-channel bioamplifier over a serial port: it negotiates the baud-rate/time-sync handshake and streams decoded voltage samples.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		conf, err = config.Load()
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to initialize config: %w", err))
		}
		if flagOpt.port != "" {
			conf.Port = flagOpt.port
		}

		level := zerolog.InfoLevel
		if flagOpt.verbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()
	},
}

// boardOptions assembles driver options from the loaded configuration.
func boardOptions() x8.Options {
	gen := protocol.GenV1
	if conf.Generation == "v2" {
		gen = protocol.GenV2
	}
	return x8.Options{
		Port:         conf.Port,
		Baud:         conf.Baud,
		TimeoutScale: conf.TimeoutScale,
		BufferFrames: conf.BufferFrames,
		Generation:   gen,
		LogEvery:     conf.LogEvery,
		Channels: x8.ChannelLayout{
			NumRows:   conf.Channels.NumRows,
			EEG:       conf.Channels.EEG,
			Timestamp: conf.Channels.Timestamp,
			Marker:    conf.Channels.Marker,
		},
		Logger: log,
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOpt.port, "port", "p", "", "serial port of the device (default: scan)")
	rootCmd.PersistentFlags().BoolVarP(&flagOpt.verbose, "verbose", "v", false, "enable debug logging")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
