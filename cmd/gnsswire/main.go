// Gnsswire talks to u-blox GNSS receivers over a mixed NMEA/UBX byte stream.
//
// Commands:
//
//   - monitor: run the receiver service from a YAML config
//   - replay: decode a raw capture log
//   - summary: summarize a raw capture log
//   - poll: send a UBX poll request and wait for the answer
//   - encode: print a framed UBX message as hex
//
// Set GNSSWIRE_LOG_LEVEL=debug (or pass --log-level) for frame-level logs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gnsswire/internal/logging"
	"gnsswire/internal/version"
)

func main() {
	err := newRootCmd().Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "gnsswire",
		Short: "u-blox NMEA/UBX stream tool",
		Long: `Decode, record and replay the mixed NMEA/UBX byte stream of a u-blox
GNSS receiver, and send it UBX poll requests.`,
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  # Run against a receiver described in a config file
  gnsswire monitor --config ./gnsswire.yaml

  # Ask the receiver for its firmware version
  gnsswire poll MON-VER --device /dev/ttyACM0

  # Decode a capture without waiting between chunks
  gnsswire replay ./capture.log --no-wait`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Initialize(logLevel)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $"+logging.LogLevelEnvVar)

	root.AddCommand(
		newMonitorCmd(),
		newReplayCmd(),
		newSummaryCmd(),
		newPollCmd(),
		newEncodeCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gnsswire %s\n", version.Full())
		},
	}
}
