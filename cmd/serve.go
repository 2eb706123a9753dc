package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ashkite/cityseed/internal/geo"
)

var servePort int

// cityCounter is the part of the store the count endpoint needs.
type cityCounter interface {
	CountCities(ctx context.Context) (int, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the nearest-city lookup server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(newLocator(st, cfg), st, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(locator *geo.Locator, counter cityCounter, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/cities", func(r chi.Router) {
		r.Get("/nearest", func(w http.ResponseWriter, req *http.Request) {
			lat, latErr := strconv.ParseFloat(req.URL.Query().Get("lat"), 64)
			lon, lonErr := strconv.ParseFloat(req.URL.Query().Get("lon"), 64)
			if latErr != nil || lonErr != nil || !geo.ValidCoordinates(lat, lon) {
				writeError(w, http.StatusBadRequest, "lat and lon must be valid decimal degrees")
				return
			}

			m, err := locator.Nearest(req.Context(), lat, lon)
			if err != nil {
				zap.L().Error("nearest lookup failed",
					zap.Float64("lat", lat),
					zap.Float64("lon", lon),
					zap.Error(err),
				)
				writeError(w, http.StatusInternalServerError, "lookup failed")
				return
			}
			if m == nil {
				writeError(w, http.StatusNotFound, "no city within range")
				return
			}
			writeJSON(w, http.StatusOK, m)
		})

		r.Get("/count", func(w http.ResponseWriter, req *http.Request) {
			n, err := counter.CountCities(req.Context())
			if err != nil {
				zap.L().Error("count cities failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "count failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]int{"count": n})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
