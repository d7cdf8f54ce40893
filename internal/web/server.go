// Package web serves the operator HTTP API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"runway-arbiter/internal/word"
)

const serviceName = "arbiterd"

// SourceOperator tags words injected through /api/command.
const SourceOperator = "web"

type ReplyView struct {
	Word int    `json:"word"`
	Text string `json:"text"`
}

type CommandRequest struct {
	Word *int `json:"word"`
}

type CommandResponse struct {
	In      ReplyView   `json:"in"`
	Replies []ReplyView `json:"replies"`
}

type AboutResponse struct {
	Service    string `json:"service"`
	NowUTC     string `json:"now_utc"`
	GoVersion  string `json:"go_version"`
	ModulePath string `json:"module_path,omitempty"`
	Version    string `json:"version,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Dirty      bool   `json:"dirty,omitempty"`
}

func Handler(status *Status, ctl Controller, logs *LogBuffer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	mux.HandleFunc("/api/reset", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		if ctl == nil {
			http.Error(w, "controller unavailable", http.StatusServiceUnavailable)
			return
		}
		ctl.Reset()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\"ok\":true}\n"))
	})

	// Operator injection goes through the same path as a radio word, so every
	// link hears the replies.
	mux.HandleFunc("/api/command", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		if ctl == nil {
			http.Error(w, "controller unavailable", http.StatusServiceUnavailable)
			return
		}
		var req CommandRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, 4096))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
			return
		}
		if req.Word == nil {
			http.Error(w, "word is required", http.StatusBadRequest)
			return
		}
		if *req.Word < 0 || *req.Word > int(word.Mask) {
			http.Error(w, fmt.Sprintf("word must be in [0,%d]", int(word.Mask)), http.StatusBadRequest)
			return
		}
		replies, err := ctl.SubmitRaw(SourceOperator, uint16(*req.Word))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in := word.Word(*req.Word)
		resp := CommandResponse{
			In:      ReplyView{Word: int(in), Text: in.String()},
			Replies: make([]ReplyView, 0, len(replies)),
		}
		for _, rw := range replies {
			resp.Replies = append(resp.Replies, ReplyView{Word: int(rw), Text: rw.String()})
		}
		writeJSON(w, resp)
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}

	mux.HandleFunc("/api/about", func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		resp := AboutResponse{
			Service:   serviceName,
			NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
			GoVersion: runtime.Version(),
		}
		if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
			resp.ModulePath = bi.Main.Path
			resp.Version = bi.Main.Version
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					resp.Commit = s.Value
				case "vcs.modified":
					resp.Dirty = s.Value == "true"
				}
			}
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if !allow(w, r, http.MethodGet) {
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>%s</title></head><body>", serviceName)
		_, _ = fmt.Fprintf(w, "<h1>%s</h1>", serviceName)
		_, _ = fmt.Fprintf(w, "<p>See <a href=\"/api/status\">/api/status</a> and <a href=\"/api/logs?format=text\">/api/logs</a>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>aircraft=%d\nwords_in=%d\nreplies_out=%d\nuptime_sec=%d</pre>",
			snap.Arbiter.Active, snap.Counters.WordsIn, snap.Counters.RepliesOut, snap.UptimeSec,
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
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
