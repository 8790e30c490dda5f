package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radioreach/stationmap/internal/compose"
	"github.com/radioreach/stationmap/internal/config"
	"github.com/radioreach/stationmap/internal/entity"
	"github.com/radioreach/stationmap/internal/loader"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the map document API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		src, closeSrc, err := newSource(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSrc()

		router := buildRouter(cfg, src, loader.NewCache())

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the API routes over a source and its snapshot cache.
func buildRouter(cfg *config.Config, src loader.Source, cache *loader.Cache) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateBurst))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/stations", func(w http.ResponseWriter, req *http.Request) {
		ds, err := cache.Load(req.Context(), src)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stations": ds.StationNames()})
	})

	r.Get("/api/map", func(w http.ResponseWriter, req *http.Request) {
		ds, err := cache.Load(req.Context(), src)
		if err != nil {
			writeError(w, err)
			return
		}

		opts, err := composeOptions(cfg, parseStations(req), 0)
		if err != nil {
			writeError(w, err)
			return
		}

		doc, err := compose.Compose(ds, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	})

	r.Get("/api/map/legend", func(w http.ResponseWriter, req *http.Request) {
		ds, err := cache.Load(req.Context(), src)
		if err != nil {
			writeError(w, err)
			return
		}

		opts, err := composeOptions(cfg, parseStations(req), 0)
		if err != nil {
			writeError(w, err)
			return
		}

		doc, err := compose.Compose(ds, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc.Legend)
	})

	r.Post("/api/cache/invalidate", func(w http.ResponseWriter, req *http.Request) {
		cache.Invalidate()
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "invalidated",
			"stats":  cache.Stats(),
		})
	})

	return r
}

// rateLimit applies a single shared limiter across all requests.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func parseStations(req *http.Request) []string {
	raw := req.URL.Query().Get("stations")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

// writeError maps domain failures to status codes. Integrity and style
// resolution failures are the client's data problem, not the server's.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if entity.IsDataIntegrity(err) || compose.IsStyleResolution(err) {
		status = http.StatusUnprocessableEntity
	}
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
