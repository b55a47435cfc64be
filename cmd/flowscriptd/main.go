// Command flowscriptd runs a FlowScript Engine behind an HTTP surface:
// a REST API to register workflows and drive executions, and a
// WebSocket endpoint to stream one execution's events live.
//
// Grounded on the teacher's cmd/server/main.go (flag parsing, BunStore
// construction, graceful shutdown via signal.Notify + http.Server.Shutdown),
// narrowed to FlowScript's engine/store/transport wiring.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flowscript-dev/flowscript"
	"github.com/flowscript-dev/flowscript/internal/infrastructure/config"
	"github.com/flowscript-dev/flowscript/internal/infrastructure/logger"
	"github.com/flowscript-dev/flowscript/internal/transport/httpapi"
	"github.com/flowscript-dev/flowscript/internal/transport/streamws"
)

func main() {
	var (
		port       = flag.String("port", "", "Server port (overrides config)")
		enableCORS = flag.Bool("cors", true, "Enable CORS on the REST API")
		apiKeys    = flag.String("api-keys", "", "Comma-separated API keys for REST authentication")
	)
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	log := logger.Setup(cfg.LogLevel)
	log.Info().Str("version", "0.1.0").Str("port", cfg.Port).Msg("starting flowscriptd")

	engine, err := flowscript.New(flowscript.Options{
		Logger:           log,
		DatabaseDSN:      cfg.DatabaseDSN,
		DefaultOpenAIKey: cfg.OpenAIAPIKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build engine")
	}
	log.Info().Bool("persistent", cfg.DatabaseDSN != "").Msg("engine initialized")

	var auth streamws.Authenticator
	if cfg.JWTSecret != "" {
		auth = streamws.NewJWTAuth(cfg.JWTSecret)
		log.Info().Msg("stream auth: jwt")
	} else {
		auth = streamws.NewNoAuth()
		log.Info().Msg("stream auth: none (anonymous)")
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", httpapi.NewServer(engine.Manager, engine.RegisterWorkflowJSON, log, httpapi.ServerConfig{
		EnableCORS: *enableCORS,
		APIKeys:    parseAPIKeys(*apiKeys),
	}))
	mux.Handle("/stream", streamws.NewServer(engine.Manager, auth, log))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming endpoint needs an unbounded write deadline
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", httpServer.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().
		Str("health", "GET /health").
		Str("create_workflow", "POST /api/v1/workflows").
		Str("start_execution", "POST /api/v1/executions").
		Str("get_execution", "GET /api/v1/executions/{id}").
		Str("resume", "POST /api/v1/executions/{id}/resume/{nodeId}").
		Str("cancel", "POST /api/v1/executions/{id}/cancel").
		Str("stream", "GET /stream?executionId=...").
		Msg("available endpoints")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		os.Exit(1)
	}
	log.Info().Msg("exited gracefully")
}

func parseAPIKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
