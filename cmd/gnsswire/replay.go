package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gnsswire/internal/replay"
	"gnsswire/internal/stream"
)

type noSleep struct{}

func (noSleep) Sleep(time.Duration) {}

func newReplayCmd() *cobra.Command {
	var (
		speed  float64
		loop   bool
		noWait bool
	)
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Decode a raw capture log",
		Long: `Play a capture log written by 'monitor' with record.enable set through
the NMEA/UBX dispatcher and print one line per decoded frame or error.`,
		Example: `  gnsswire replay ./capture.log
  gnsswire replay ./capture.log --speed 4
  gnsswire replay ./capture.log --no-wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := replay.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read capture: %w", err)
			}
			var sleeper replay.Sleeper
			if noWait {
				sleeper = noSleep{}
			}
			s := stream.New(stream.Config{}, eventPrinter{w: cmd.OutOrStdout()}.handlers())
			return replay.Play(recs, speed, loop, sleeper, func(chunk []byte) error {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				_, err := s.Write(chunk)
				return err
			})
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1, "Playback speed multiplier")
	cmd.Flags().BoolVar(&loop, "loop", false, "Restart from the beginning at end of log")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Ignore recorded timing")
	return cmd
}
