// The cli binary parses a single file and prints the result, useful for
// trying the pipeline without running the API server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amoreno/finparse/internal/config"
	"github.com/amoreno/finparse/internal/csvparse"
	"github.com/amoreno/finparse/internal/llm"
	"github.com/amoreno/finparse/internal/logger"
	"github.com/amoreno/finparse/internal/ocr"
	"github.com/amoreno/finparse/internal/pipeline"
)

func main() {
	var (
		filePath    = flag.String("file", "", "path of the file to parse (required)")
		mimeType    = flag.String("mime", "", "MIME type override; inferred from the extension when empty")
		categories  = flag.String("categories", "", "comma-separated category taxonomy; empty selects the default")
		preferences = flag.String("preferences", "", "JSON object mapping descriptions to categories")
		format      = flag.String("format", "json", "output format: json or csv")
		timeout     = flag.Duration("timeout", 2*time.Minute, "overall parse timeout")
	)
	flag.Parse()

	log := logger.New()

	if *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *format != "json" && *format != "csv" {
		log.Fatal().Str("format", *format).Msg("format must be json or csv")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("read input file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	var extractor ocr.TextExtractor
	if cfg.OCR.Endpoint != "" {
		extractor = ocr.NewHTTPExtractor(cfg.OCR.Endpoint, cfg.OCR.Timeout)
	}

	pipe := pipeline.New(pipeline.Options{
		Provider:  buildProvider(cfg),
		Extractor: extractor,
		Logger:    log,
	})

	req := pipeline.ParseRequest{
		Data:     data,
		MimeType: resolveMimeType(*mimeType, *filePath),
		Filename: filepath.Base(*filePath),
	}
	if *categories != "" {
		for _, c := range strings.Split(*categories, ",") {
			if c = strings.TrimSpace(c); c != "" {
				req.Categories = append(req.Categories, c)
			}
		}
	}
	if *preferences != "" {
		if err := json.Unmarshal([]byte(*preferences), &req.Preferences); err != nil {
			log.Fatal().Err(err).Msg("preferences must be a JSON object")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := pipe.Parse(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Str("file", req.Filename).Msg("parse failed")
	}

	log.Info().
		Str("level", string(result.Quality.Level)).
		Int("score", result.Quality.Score).
		Str("tier", result.Diagnostics.Tier).
		Int("rows", len(result.Rows)).
		Msg("parse completed")

	switch *format {
	case "csv":
		if len(result.Rows) == 0 {
			log.Fatal().Msg("no transaction rows to export; use -format json for receipts")
		}
		fmt.Print(csvparse.ToCanonicalCSV(result.Rows))
	default:
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("encode result")
		}
		fmt.Println(string(out))
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

var extensionTypes = map[string]string{
	".csv": "text/csv",
	".tsv": "text/tab-separated-values",
	".txt": "text/plain",
	".pdf": "application/pdf",
	".jpg": "image/jpeg",
	".png": "image/png",
}

func resolveMimeType(override, path string) string {
	if override != "" {
		return override
	}
	return extensionTypes[strings.ToLower(filepath.Ext(path))]
}
