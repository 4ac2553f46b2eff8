package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gnsswire/internal/config"
	"gnsswire/internal/gps"
	"gnsswire/internal/logging"
	"gnsswire/internal/metrics"
	"gnsswire/internal/pps"
	"gnsswire/internal/replay"
	"gnsswire/internal/udp"
	"gnsswire/internal/web"
)

func newMonitorCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
		interval   time.Duration
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the receiver service from a config file",
		Long: `Open the receiver described by the config file, decode its stream and
print a status line periodically until interrupted. Depending on the config
the raw stream is recorded, NMEA sentences are forwarded over UDP, timepulse
edges are counted and a JSON/Prometheus API is served.

Environment variables such as GNSSWIRE_GPS_DEVICE override config keys;
--env-file loads them from a dotenv file first.`,
		Example: `  gnsswire monitor --config ./gnsswire.yaml
  gnsswire monitor --config ./gnsswire.yaml --interval 1s --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load env file: %w", err)
				}
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if f := cmd.Flag("log-level"); cfg.Log.Level != "" && (f == nil || !f.Changed) {
				if err := logging.Initialize(cfg.Log.Level); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMonitor(ctx, cfg, cmd.OutOrStdout(), interval, asJSON)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "./gnsswire.yaml", "Path to YAML config")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Dotenv file with "+config.EnvPrefix+"* overrides")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Status print interval; 0 disables")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

type monitorStatus struct {
	GPS gps.Snapshot  `json:"gps"`
	PPS *pps.Snapshot `json:"pps,omitempty"`
	// Forwarded counts UDP datagrams sent.
	Forwarded uint64 `json:"forwarded,omitempty"`
}

func runMonitor(ctx context.Context, cfg config.Config, out io.Writer, interval time.Duration, asJSON bool) error {
	log := logging.GetLogger()

	gcfg := gps.Config{
		Source:          cfg.GPS.Source,
		Device:          cfg.GPS.Device,
		Baud:            cfg.GPS.Baud,
		GPSDAddr:        cfg.GPS.GPSDAddr,
		NMEABufferBytes: cfg.GPS.NMEABufferBytes,
		UBXPayloadBytes: cfg.GPS.UBXPayloadBytes,
		Poll:            cfg.GPS.Poll,
	}

	if cfg.Replay.Enable {
		recs, err := replay.ReadFile(cfg.Replay.Path)
		if err != nil {
			return fmt.Errorf("read replay: %w", err)
		}
		gcfg.Source = "replay"
		gcfg.Device = cfg.Replay.Path
		gcfg.Open = func(context.Context) (io.ReadWriteCloser, error) {
			return replay.NewPlayReader(recs, cfg.Replay.Speed, cfg.Replay.Loop, nil), nil
		}
		log.Info("replay enabled", zap.String("path", cfg.Replay.Path), zap.Float64("speed", cfg.Replay.Speed), zap.Bool("loop", cfg.Replay.Loop))
	}

	if cfg.Record.Enable {
		rec, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			return fmt.Errorf("create record: %w", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Warn("record close failed", zap.Error(err))
			}
		}()
		gcfg.Record = rec
		log.Info("recording enabled", zap.String("path", cfg.Record.Path))
	}

	var fwd *udp.Forwarder
	if cfg.Forward.Enable {
		var err error
		fwd, err = udp.NewForwarder(cfg.Forward.Dest)
		if err != nil {
			return fmt.Errorf("forward: %w", err)
		}
		defer fwd.Close()
		log.Info("forwarding enabled", zap.String("dest", cfg.Forward.Dest))
	}

	var events *web.EventBuffer
	if cfg.HTTP.Enable {
		events = web.NewEventBuffer(cfg.HTTP.Events)
		gcfg.Frame = eventPrinter{w: events}.frame
	}

	if fwd != nil || events != nil {
		gcfg.Sentence = func(p []byte) {
			if events != nil {
				eventPrinter{w: events}.sentence(p)
			}
			if fwd != nil {
				if err := fwd.Forward(p); err != nil {
					log.Debug("forward failed", zap.Error(err))
				}
			}
		}
	}

	svc := gps.New(gcfg, log)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	// Deferred after the recorder and forwarder so it closes first.
	defer svc.Close()

	var pulse *pps.Monitor
	if cfg.PPS.Enable {
		pulse = pps.New(pps.Config{Chip: cfg.PPS.Chip, Line: *cfg.PPS.Line}, log)
		if err := pulse.Start(ctx); err != nil {
			log.Warn("pps disabled", zap.Error(err))
		} else {
			defer pulse.Close()
		}
	}

	status := func() monitorStatus {
		st := monitorStatus{GPS: svc.Snapshot()}
		if pulse != nil {
			ps := pulse.Snapshot()
			st.PPS = &ps
		}
		if fwd != nil {
			st.Forwarded = fwd.Sent()
		}
		return st
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Enable {
		src := metrics.Sources{GPS: svc.Snapshot}
		if pulse != nil {
			src.PPS = pulse.Snapshot
		}
		if fwd != nil {
			src.Forwarded = fwd.Sent
		}
		h := web.Handler(func() any { return status() }, svc, events, metrics.New("", src).Handler())
		g.Go(func() error {
			if err := web.Serve(gctx, cfg.HTTP.Listen, h); err != nil {
				return fmt.Errorf("http api: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if interval <= 0 {
			<-gctx.Done()
			return nil
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if err := printStatus(out, status(), asJSON); err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}

func printStatus(w io.Writer, st monitorStatus, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(st)
	}
	g := st.GPS
	fix := "nofix"
	switch {
	case g.Valid && g.FixStale:
		fix = "stale"
	case g.Valid:
		fix = "fix"
	}
	_, err := fmt.Fprintf(w, "%s utc=%s lat=%.6f lon=%.6f sats=%d hdop=%.2f bytes=%d sentences=%d frames=%d errors=%d",
		fix, formatUTC(g.UTC), g.LatDeg, g.LonDeg, g.Satellites, g.HDOP,
		g.Stats.BytesRead, g.Stats.Sentences, g.Stats.UBXFrames, errorCount(g.Stats))
	if err != nil {
		return err
	}
	if g.SWVersion != "" {
		fmt.Fprintf(w, " sw=%q", g.SWVersion)
	}
	if st.PPS != nil {
		fmt.Fprintf(w, " pps=%d", st.PPS.Count)
	}
	if st.Forwarded > 0 {
		fmt.Fprintf(w, " fwd=%d", st.Forwarded)
	}
	if g.LastError != "" {
		fmt.Fprintf(w, " last_error=%q", g.LastError)
	}
	_, err = fmt.Fprintln(w)
	return err
}

func errorCount(s gps.Stats) uint64 {
	return s.NMEAChecksumErrors + s.NMEAOverflows + s.NMEABadDigits + s.DecodeErrors +
		s.UBXChecksumErrors + s.UBXOverflows + s.UBXSyncMisses
}
