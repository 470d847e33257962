// Package config parses command-line flags, environment variables and an
// optional .env file into the typed settings each component is built from.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

// EnvPrefix is prepended to every flag name to form its environment variable
const EnvPrefix = "RECEIPT_INSIGHT"

// Config holds every setting of the receipt-insight server
type Config struct {
	Server  Server
	Storage Storage
	Cache   Cache
	S3      S3
	Google  Google
	LLM     LLM
	Limits  Limits
	Log     Log

	ShowVersion bool
}

type Server struct {
	Port       int
	AuthUser   string
	AuthPass   string
	CORSOrigin string
}

type Storage struct {
	UploadsDir string
}

// Cache selects where extraction results are kept: file, bolt or s3
type Cache struct {
	Backend  string
	Dir      string
	BoltPath string
}

type S3 struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// Google configures the OCR and translation collaborators
type Google struct {
	APIKey          string
	CredentialsFile string
	ImageOCR        string // vision or model
	PDFOCR          string // documentai, pdftext or model
	Project         string
	Location        string
	Processor       string
	LanguageHints   []string
	Translator      string // google or none
	TargetLanguage  string
}

// LLM selects the generative model used for extraction and questions
type LLM struct {
	Provider      string // gemini, ollama or openai
	GeminiKey     string
	GeminiModel   string
	OllamaURL     string
	OllamaModel   string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	CallTimeout   time.Duration
}

// Limits throttles the endpoints that call the language model
type Limits struct {
	RPS   float64
	Burst int
}

type Log struct {
	Level  string
	Format string
}

// Load reads envFile when it exists, then parses args with environment
// fallbacks. The returned help text is meant for printing on error.
func Load(args []string, envFile string) (*Config, string, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	flags := ff.NewFlagSet("receipt-insight")
	var (
		port        = flags.IntLong("port", 8080, "HTTP server port")
		authUser    = flags.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = flags.StringLong("auth-pass", "", "Basic auth password (optional)")
		corsOrigin  = flags.StringLong("cors-origin", "*", "Value of Access-Control-Allow-Origin")
		uploadsDir  = flags.StringLong("uploads", "./uploads", "Receipt upload directory")
		cacheType   = flags.StringLong("cache", "file", "Insight cache backend: 'file', 'bolt' or 's3'")
		cacheDir    = flags.StringLong("insights", "./insights", "Insight directory for the file cache")
		boltPath    = flags.StringLong("db", "receipt-insight.db", "Database file path for the bolt cache")
		s3Endpoint  = flags.StringLong("s3-endpoint", "", "S3 endpoint URL (empty for AWS)")
		s3Region    = flags.StringLong("s3-region", "us-east-1", "S3 region")
		s3Bucket    = flags.StringLong("s3-bucket", "", "S3 bucket for the s3 cache")
		s3Prefix    = flags.StringLong("s3-prefix", "insights/", "S3 key prefix")
		s3Key       = flags.StringLong("s3-access-key", "", "S3 access key ID (optional)")
		s3Secret    = flags.StringLong("s3-secret-key", "", "S3 secret access key (optional)")
		s3PathStyle = flags.BoolLong("s3-path-style", "Use path-style S3 addressing (MinIO)")
		googleKey   = flags.StringLong("google-api-key", "", "Google Cloud API key for Vision and Translation")
		googleCreds = flags.StringLong("google-credentials", "", "Google service account JSON file")
		imageOCR    = flags.StringLong("image-ocr", "vision", "Image text extraction: 'vision' or 'model'")
		pdfOCR      = flags.StringLong("pdf-ocr", "documentai", "PDF text extraction: 'documentai', 'pdftext' or 'model'")
		project     = flags.StringLong("docai-project", "", "Document AI project ID")
		location    = flags.StringLong("docai-location", "us", "Document AI processor location")
		processor   = flags.StringLong("docai-processor", "", "Document AI processor ID")
		hints       = flags.StringLong("language-hints", "en,hi,fr,de,ar,ta,zh", "Comma-separated OCR language hints")
		translator  = flags.StringLong("translator", "google", "Translator: 'google' or 'none'")
		target      = flags.StringLong("target-language", "en", "Language receipts are translated into")
		provider    = flags.StringLong("llm", "gemini", "LLM provider: 'gemini', 'ollama' or 'openai'")
		geminiKey   = flags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = flags.StringLong("gemini-model", "gemini-1.5-pro", "Google Gemini model name")
		ollamaURL   = flags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = flags.StringLong("ollama-model", "llama3.1", "Ollama model name")
		openaiKey   = flags.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel = flags.StringLong("openai-model", "gpt-4.1-mini", "OpenAI model name")
		openaiURL   = flags.StringLong("openai-base-url", "", "OpenAI-compatible base URL (optional)")
		callTimeout = flags.DurationLong("call-timeout", 60*time.Second, "Timeout for each OCR, translation or LLM call")
		llmRPS      = flags.Float64Long("llm-rps", 1, "Requests per second allowed on LLM-backed endpoints")
		llmBurst    = flags.IntLong("llm-burst", 3, "Burst allowed on LLM-backed endpoints")
		logLevel    = flags.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat   = flags.StringLong("log-format", "text", "Log format: 'text' or 'json'")
		showVersion = flags.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(flags, args, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		return nil, ffhelp.Flags(flags).String(), err
	}

	cfg := &Config{
		Server: Server{
			Port:       *port,
			AuthUser:   *authUser,
			AuthPass:   *authPass,
			CORSOrigin: *corsOrigin,
		},
		Storage: Storage{UploadsDir: *uploadsDir},
		Cache: Cache{
			Backend:  strings.ToLower(*cacheType),
			Dir:      *cacheDir,
			BoltPath: *boltPath,
		},
		S3: S3{
			Endpoint:        *s3Endpoint,
			Region:          *s3Region,
			Bucket:          *s3Bucket,
			Prefix:          *s3Prefix,
			AccessKeyID:     *s3Key,
			SecretAccessKey: *s3Secret,
			PathStyle:       *s3PathStyle,
		},
		Google: Google{
			APIKey:          *googleKey,
			CredentialsFile: *googleCreds,
			ImageOCR:        strings.ToLower(*imageOCR),
			PDFOCR:          strings.ToLower(*pdfOCR),
			Project:         *project,
			Location:        *location,
			Processor:       *processor,
			LanguageHints:   splitList(*hints),
			Translator:      strings.ToLower(*translator),
			TargetLanguage:  *target,
		},
		LLM: LLM{
			Provider:      strings.ToLower(*provider),
			GeminiKey:     firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY")),
			GeminiModel:   *geminiModel,
			OllamaURL:     *ollamaURL,
			OllamaModel:   *ollamaModel,
			OpenAIKey:     firstNonEmpty(*openaiKey, os.Getenv("OPENAI_API_KEY")),
			OpenAIModel:   *openaiModel,
			OpenAIBaseURL: *openaiURL,
			CallTimeout:   *callTimeout,
		},
		Limits: Limits{RPS: *llmRPS, Burst: *llmBurst},
		Log: Log{
			Level:  strings.ToLower(*logLevel),
			Format: strings.ToLower(*logFormat),
		},
		ShowVersion: *showVersion,
	}

	return cfg, ffhelp.Flags(flags).String(), nil
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	if c.Storage.UploadsDir == "" {
		errs = append(errs, errors.New("uploads directory is required"))
	}

	switch c.Cache.Backend {
	case "file":
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("insights directory is required for the file cache"))
		}
	case "bolt":
		if c.Cache.BoltPath == "" {
			errs = append(errs, errors.New("database path is required for the bolt cache"))
		}
	case "s3":
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3 bucket is required for the s3 cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid cache backend %q (valid: file, bolt, s3)", c.Cache.Backend))
	}

	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiKey == "" {
			errs = append(errs, errors.New("gemini api key is required; set --gemini-key or GEMINI_API_KEY"))
		}
	case "ollama":
	case "openai":
		if c.LLM.OpenAIKey == "" {
			errs = append(errs, errors.New("openai api key is required; set --openai-key or OPENAI_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid llm provider %q (valid: gemini, ollama, openai)", c.LLM.Provider))
	}

	visionModel := c.LLM.Provider == "gemini" || c.LLM.Provider == "ollama"

	switch c.Google.ImageOCR {
	case "vision":
	case "model":
		if !visionModel {
			errs = append(errs, fmt.Errorf("image-ocr 'model' needs a vision-capable llm, not %q", c.LLM.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid image-ocr %q (valid: vision, model)", c.Google.ImageOCR))
	}

	switch c.Google.PDFOCR {
	case "documentai":
		if c.Google.Project == "" || c.Google.Processor == "" {
			errs = append(errs, errors.New("docai-project and docai-processor are required for pdf-ocr 'documentai'"))
		}
	case "pdftext":
	case "model":
		if !visionModel {
			errs = append(errs, fmt.Errorf("pdf-ocr 'model' needs a vision-capable llm, not %q", c.LLM.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid pdf-ocr %q (valid: documentai, pdftext, model)", c.Google.PDFOCR))
	}

	switch c.Google.Translator {
	case "google", "none":
	default:
		errs = append(errs, fmt.Errorf("invalid translator %q (valid: google, none)", c.Google.Translator))
	}
	if c.Google.TargetLanguage == "" {
		errs = append(errs, errors.New("target language is required"))
	}

	if c.LLM.CallTimeout <= 0 {
		errs = append(errs, errors.New("call timeout must be positive"))
	}
	if c.Limits.RPS <= 0 || c.Limits.Burst < 1 {
		errs = append(errs, errors.New("llm-rps must be positive and llm-burst at least 1"))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q (valid: text, json)", c.Log.Format))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
