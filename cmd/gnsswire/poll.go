package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gnsswire/internal/gps"
	"gnsswire/internal/logging"
	"gnsswire/internal/ubx"
)

func newPollCmd() *cobra.Command {
	var (
		device  string
		baud    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "poll TYPE",
		Short: "Send a UBX poll request and print the answer",
		Long: `Send an empty-payload poll for TYPE (a name such as MON-VER or a CLASS-ID
hex pair such as 0A-04) and wait for the matching message or an ACK/NAK that
names it. Without --device the framed request is printed as hex instead.`,
		Example: `  gnsswire poll MON-VER --device /dev/ttyACM0
  gnsswire poll 06-86 --device /dev/ttyUSB0 --baud 38400
  gnsswire poll MON-VER`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ubx.ParseMessageType(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(device) == "" {
				frame, err := ubx.AppendFrame(nil, t, nil)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(frame))
				return nil
			}

			replies := make(chan string, 1)
			var line bytes.Buffer
			printer := eventPrinter{w: &line}
			svc := gps.New(gps.Config{
				Source: "serial",
				Device: device,
				Baud:   baud,
				Poll:   []ubx.MessageType{t},
				Frame: func(f ubx.Frame) {
					if !isReply(t, f) {
						return
					}
					line.Reset()
					printer.frame(f)
					select {
					case replies <- line.String():
					default:
					}
				},
			}, logging.GetLogger())

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Close()

			select {
			case s := <-replies:
				fmt.Fprint(cmd.OutOrStdout(), s)
				return nil
			case <-ctx.Done():
				return fmt.Errorf("no answer to %s within %s", t.Name(), timeout)
			}
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "Serial device of the receiver")
	cmd.Flags().IntVar(&baud, "baud", 9600, "Serial baud rate")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "How long to wait for the answer")
	return cmd
}

// isReply reports whether f is the reply to a poll for t.
func isReply(t ubx.MessageType, f ubx.Frame) bool {
	if f.Type == t {
		return true
	}
	ack, err := ubx.DecodeAck(f)
	return err == nil && ack.Acked == t
}

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode TYPE [PAYLOAD]",
		Short: "Print a framed UBX message as hex",
		Long:  `Frame PAYLOAD (hex, spaces allowed) as a UBX message of TYPE and print the result as hex.`,
		Example: `  gnsswire encode MON-VER
  gnsswire encode ACK-ACK "06 86"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ubx.ParseMessageType(args[0])
			if err != nil {
				return err
			}
			var payload []byte
			if len(args) == 2 {
				payload, err = hex.DecodeString(strings.ReplaceAll(args[1], " ", ""))
				if err != nil {
					return fmt.Errorf("payload: %w", err)
				}
			}
			frame, err := ubx.AppendFrame(nil, t, payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(frame))
			return nil
		},
	}
}
