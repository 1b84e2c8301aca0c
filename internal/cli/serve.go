package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depglobe/pkg/metrics"
	"github.com/matzehuels/depglobe/pkg/usage"
)

const (
	geoJSONContentType = "application/geo+json"
	shutdownTimeout    = 5 * time.Second
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the artifact over HTTP",
		Long: `Serve exposes the current artifact as GeoJSON for map frontends:

  GET /usage.geojson   the FeatureCollection, read from the store per request
  GET /healthz         liveness
  GET /metrics         request counters in the Prometheus format`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Serve.Addr = addr
			}
			if err := cfg.ValidateStore(); err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := newStore(ctx, cfg.Store, c.Logger)
			if err != nil {
				return err
			}
			defer store.Close()

			src, ok := store.(usage.Raw)
			if !ok {
				return errors.New("store cannot serve its raw artifact")
			}
			return c.serve(ctx, cfg.Serve.Addr, newServeHandler(src, metrics.New(), c.Logger))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")
	return cmd
}

// serve runs h on addr until ctx is cancelled, then shuts down gracefully.
func (c *CLI) serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c.Logger.Info("serving artifact", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	c.Logger.Info("server stopped")
	return ctx.Err()
}

// newServeHandler routes the artifact, health and metrics endpoints.
func newServeHandler(src usage.Raw, rec *metrics.Recorder, logger *log.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(instrument(rec, logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/usage.geojson", func(w http.ResponseWriter, req *http.Request) {
		data, err := src.Raw(req.Context())
		if err != nil {
			logger.Error("read artifact", "err", err)
			http.Error(w, "artifact unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", geoJSONContentType)
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	})

	r.Method(http.MethodGet, "/metrics", rec.Handler())
	return r
}

// instrument logs each request and counts it by route pattern.
func instrument(rec *metrics.Recorder, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			rec.OnServe(route, status)
			logger.Debug("request", "method", r.Method, "route", route, "status", status,
				"duration", time.Since(start).Round(time.Microsecond))
		})
	}
}
