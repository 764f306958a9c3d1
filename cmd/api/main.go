// The api binary serves the parsing API over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/amoreno/finparse/internal/api/handlers"
	"github.com/amoreno/finparse/internal/api/middleware"
	"github.com/amoreno/finparse/internal/config"
	"github.com/amoreno/finparse/internal/jobs/inmemory"
	"github.com/amoreno/finparse/internal/llm"
	"github.com/amoreno/finparse/internal/logger"
	"github.com/amoreno/finparse/internal/ocr"
	"github.com/amoreno/finparse/internal/pipeline"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	provider := buildProvider(cfg)
	if provider == nil {
		log.Warn().Msg("no AI provider configured, escalation tiers disabled")
	}

	var extractor ocr.TextExtractor
	if cfg.OCR.Endpoint != "" {
		extractor = ocr.NewHTTPExtractor(cfg.OCR.Endpoint, cfg.OCR.Timeout)
	} else {
		log.Warn().Msg("no OCR endpoint configured, receipt images disabled")
	}

	pipe := pipeline.New(pipeline.Options{
		Provider:  provider,
		Extractor: extractor,
		Logger:    log,
	})

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 4, jobStore)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	if err := jobQueue.Start(workerCtx, inmemory.HandlerFor(pipe)); err != nil {
		log.Fatal().Err(err).Msg("start job workers")
	}

	parseHandler := handlers.NewParseHandler(pipe, jobQueue, cfg.Server.MaxUploadBytes, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)
	runsHandler := handlers.NewRunsHandler(pipe.Runs())

	mux := http.NewServeMux()

	mux.HandleFunc("/api/parse", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			parseHandler.Parse(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			parseHandler.Export(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if runID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "run ID is required")
			return
		}
		runsHandler.GetRun(w, r, runID)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("queue shutdown")
	}
}

func buildProvider(cfg config.Config) llm.Provider {
	switch cfg.LLM.Provider {
	case "gemini":
		return llm.NewGeminiProvider(cfg.LLM.Model)
	default:
		if cfg.LLM.APIKey == "" {
			return nil
		}
		return llm.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Endpoint, cfg.LLM.Timeout)
	}
}
