// Package web serves the monitor's JSON API: receiver status, recent decoded
// events and on-demand UBX polls.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"gnsswire/internal/gps"
	"gnsswire/internal/logging"
	"gnsswire/internal/ubx"
)

// StatusFunc returns the value served at /api/status. It is called once per
// request and must be safe for concurrent use.
type StatusFunc func() any

// Poller sends a UBX poll request. gps.Service implements it.
type Poller interface {
	Poll(t ubx.MessageType) error
}

// Handler builds the API mux. Any argument may be nil; the matching
// endpoints are then unavailable.
func Handler(status StatusFunc, poller Poller, events *EventBuffer, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var snap any
		if status != nil {
			snap = status()
		}
		writeJSON(w, snap)
	})

	// POST /api/poll?type=MON-VER
	mux.HandleFunc("/api/poll", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if poller == nil {
			http.Error(w, "poll unavailable", http.StatusNotFound)
			return
		}
		t, err := ubx.ParseMessageType(r.URL.Query().Get("type"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := poller.Poll(t); err != nil {
			code := http.StatusBadGateway
			if errors.Is(err, gps.ErrNotConnected) || errors.Is(err, gps.ErrReadOnly) {
				code = http.StatusServiceUnavailable
			}
			http.Error(w, err.Error(), code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("{\"ok\":true,\"type\":\"" + t.Name() + "\"}\n"))
	})

	if events != nil {
		mux.Handle("/api/events", events.Handler())
	}

	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	mux.Handle("/api/about", AboutHandler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(strings.Join([]string{
			"GET  /api/status",
			"GET  /api/events?tail=N&format=text",
			"POST /api/poll?type=MON-VER",
			"GET  /api/about",
			"GET  /metrics",
		}, "\n") + "\n"))
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// Serve runs the API on listenAddr until ctx is done.
func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logging.Info("http api listening", zap.String("addr", listenAddr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
