package main

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"

	"github.com/zombor/receipt-insight/internal/config"
	"github.com/zombor/receipt-insight/internal/extraction"
	"github.com/zombor/receipt-insight/internal/insight"
	"github.com/zombor/receipt-insight/internal/llm"
)

// newCache opens the configured insight cache. The returned func releases it.
func newCache(ctx context.Context, cfg *config.Config) (insight.Cache, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Cache.Backend {
	case "file":
		slog.Info("Initializing file cache...", "dir", cfg.Cache.Dir)
		c, err := insight.NewFileCache(cfg.Cache.Dir)
		return c, noop, err
	case "bolt":
		slog.Info("Initializing bolt cache...", "path", cfg.Cache.BoltPath)
		c, err := insight.NewBoltCache(cfg.Cache.BoltPath)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	case "s3":
		slog.Info("Initializing S3 cache...", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
		c, err := insight.NewS3Cache(ctx, insight.S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.PathStyle,
		})
		return c, noop, err
	}
	return nil, noop, fmt.Errorf("invalid cache backend %q", cfg.Cache.Backend)
}

// newGenerator creates the configured language model client
func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		slog.Info("Initializing Gemini...", "model", cfg.LLM.GeminiModel)
		return llm.NewGemini(ctx, cfg.LLM.GeminiKey, cfg.LLM.GeminiModel)
	case "ollama":
		slog.Info("Initializing Ollama...", "url", cfg.LLM.OllamaURL, "model", cfg.LLM.OllamaModel)
		return llm.NewOllama(cfg.LLM.OllamaURL, cfg.LLM.OllamaModel)
	case "openai":
		slog.Info("Initializing OpenAI...", "model", cfg.LLM.OpenAIModel)
		return llm.NewOpenAI(cfg.LLM.OpenAIKey, cfg.LLM.OpenAIModel, cfg.LLM.OpenAIBaseURL)
	}
	return nil, fmt.Errorf("invalid llm provider %q", cfg.LLM.Provider)
}

// googleOptions authenticates the Google Cloud REST clients
func googleOptions(cfg *config.Config) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.Google.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.Google.APIKey))
	}
	if cfg.Google.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Google.CredentialsFile))
	}
	return opts
}

// newExtractor routes images and PDFs to the configured text extractors
func newExtractor(ctx context.Context, cfg *config.Config, model llm.Generator) (extraction.TextExtractor, error) {
	visionModel, _ := model.(llm.VisionGenerator)

	var router extraction.ByKind

	switch cfg.Google.ImageOCR {
	case "vision":
		slog.Info("Initializing Cloud Vision OCR...", "language_hints", cfg.Google.LanguageHints)
		ocr, err := extraction.NewVisionOCR(ctx, cfg.Google.LanguageHints, googleOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		router.Image = ocr
	case "model":
		if visionModel == nil {
			return nil, fmt.Errorf("llm provider %q cannot read images", cfg.LLM.Provider)
		}
		router.Image = extraction.NewModelOCR(visionModel)
	default:
		return nil, fmt.Errorf("invalid image-ocr %q", cfg.Google.ImageOCR)
	}

	switch cfg.Google.PDFOCR {
	case "documentai":
		slog.Info("Initializing Document AI...", "processor", cfg.Google.Processor, "location", cfg.Google.Location)
		docai, err := extraction.NewDocumentAI(ctx, extraction.DocumentAIOptions{
			ProjectID:   cfg.Google.Project,
			Location:    cfg.Google.Location,
			ProcessorID: cfg.Google.Processor,
		}, googleOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		router.PDF = docai
	case "pdftext":
		router.PDF = extraction.PDFText{}
	case "model":
		if visionModel == nil {
			return nil, fmt.Errorf("llm provider %q cannot read images", cfg.LLM.Provider)
		}
		router.PDF = extraction.NewModelOCR(visionModel)
	default:
		return nil, fmt.Errorf("invalid pdf-ocr %q", cfg.Google.PDFOCR)
	}

	return router, nil
}

// newTranslator creates the configured translator
func newTranslator(ctx context.Context, cfg *config.Config) (extraction.Translator, error) {
	if cfg.Google.Translator == "none" {
		return extraction.Passthrough{}, nil
	}
	slog.Info("Initializing Cloud Translation...", "target", cfg.Google.TargetLanguage)
	return extraction.NewGoogleTranslate(ctx, googleOptions(cfg)...)
}
