package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gnsswire/internal/nmea"
	"gnsswire/internal/replay"
	"gnsswire/internal/stream"
	"gnsswire/internal/ubx"
)

type logSummary struct {
	Segments    int
	Chunks      int
	Bytes       int
	MaxDuration time.Duration

	Sentences map[string]int
	Frames    map[ubx.MessageType]int
	Errors    int
	Discarded uint64
}

func summarizeCapture(records []replay.Record) logSummary {
	s := logSummary{Sentences: map[string]int{}, Frames: map[ubx.MessageType]int{}}

	st := stream.New(stream.Config{}, stream.Handlers{
		Sentence: func(p []byte) {
			id, _, _ := strings.Cut(string(p), ",")
			s.Sentences[id]++
		},
		NMEAError: func(p []byte, err error) {
			if !errors.Is(err, nmea.ErrUnknownSentence) {
				s.Errors++
			}
		},
		Frame:    func(f ubx.Frame) { s.Frames[f.Type]++ },
		UBXError: func(*ubx.Error) { s.Errors++ },
	})

	origin := time.Duration(0)
	hasChunks := false
	segments := 0
	for _, r := range records {
		if r.Data == nil {
			segments++
			origin = r.At
			continue
		}
		hasChunks = true
		s.Chunks++
		s.Bytes += len(r.Data)
		if at := r.At - origin; at > s.MaxDuration {
			s.MaxDuration = at
		}
		st.Write(r.Data)
	}
	if segments == 0 && hasChunks {
		segments = 1
	}
	s.Segments = segments
	s.Discarded = st.Discarded()
	return s
}

func printLogSummary(w io.Writer, path string, s logSummary) {
	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "chunks: %d\n", s.Chunks)
	fmt.Fprintf(w, "bytes: %d\n", s.Bytes)
	fmt.Fprintf(w, "discarded_bytes: %d\n", s.Discarded)
	fmt.Fprintf(w, "errors: %d\n", s.Errors)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)

	ids := make([]string, 0, len(s.Sentences))
	for id := range s.Sentences {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Fprintf(w, "nmea_sentences:\n")
	for _, id := range ids {
		fmt.Fprintf(w, "  %s: %d\n", id, s.Sentences[id])
	}

	types := make([]ubx.MessageType, 0, len(s.Frames))
	for t := range s.Frames {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].Class != types[j].Class {
			return types[i].Class < types[j].Class
		}
		return types[i].ID < types[j].ID
	})
	fmt.Fprintf(w, "ubx_frames:\n")
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t.Name(), s.Frames[t])
	}
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary FILE",
		Short: "Summarize a raw capture log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			recs, err := replay.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read capture: %w", err)
			}
			printLogSummary(cmd.OutOrStdout(), path, summarizeCapture(recs))
			return nil
		},
	}
}
