package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/TrackRecon/internal/services/poller"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type opsHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)
	handler  http.Handler
}

func runOpsHTTPServer(ctx context.Context, opts opsHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return errors.Wrap(err, "listen ops http")
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: opts.handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statsResponse is the local poller stats plus the last run of any process sharing the Redis.
type statsResponse struct {
	poller.Stats
	SharedLastSummary      json.RawMessage `json:"sharedLastSummary,omitempty"`
	SharedLastSummaryError string          `json:"sharedLastSummaryError,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newOpsRouter(rec *reconciler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, c := range rec.ready {
			if err := c.check(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":     "not ready",
					"dependency": c.name,
					"error":      err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		out := statsResponse{Stats: rec.poller.Stats()}
		if rec.sharedLastRun != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			b, ok, err := rec.sharedLastRun(ctx)
			switch {
			case err != nil:
				out.SharedLastSummaryError = err.Error()
			case ok:
				out.SharedLastSummary = json.RawMessage(b)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		rec.poller.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
	})

	if rec.metrics != nil {
		r.Handle("/metrics", rec.metrics.Handler())
	}

	return r
}
