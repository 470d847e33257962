package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/insight"
	"github.com/zombor/receipt-insight/internal/llm"
	"github.com/zombor/receipt-insight/internal/media"
	"github.com/zombor/receipt-insight/internal/metrics"
)

// Stage names reported to logs and metrics
const (
	StageExtractText = "extract_text"
	StageTranslate   = "translate"
	StageStructure   = "structure"
	StageParse       = "parse"
)

const (
	defaultTargetLanguage = "en"
	defaultCallTimeout    = 60 * time.Second
)

// Pipeline runs OCR, translation and structured extraction for one document.
// It never reads or writes the insight cache.
type Pipeline struct {
	extractor  TextExtractor
	translator Translator
	generator  llm.Generator
	target     string
	timeout    time.Duration
	metrics    metrics.Recorder
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithTargetLanguage sets the language receipt text is translated into
func WithTargetLanguage(lang string) Option {
	return func(p *Pipeline) {
		if lang != "" {
			p.target = lang
		}
	}
}

// WithCallTimeout bounds each collaborator call
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMetrics reports stage durations and outcomes to rec
func WithMetrics(rec metrics.Recorder) Option {
	return func(p *Pipeline) {
		if rec != nil {
			p.metrics = rec
		}
	}
}

func NewPipeline(extractor TextExtractor, translator Translator, generator llm.Generator, opts ...Option) *Pipeline {
	if translator == nil {
		translator = Passthrough{}
	}
	p := &Pipeline{
		extractor:  extractor,
		translator: translator,
		generator:  generator,
		target:     defaultTargetLanguage,
		timeout:    defaultCallTimeout,
		metrics:    metrics.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExtractText recognises the text of a document
func (p *Pipeline) ExtractText(ctx context.Context, data []byte, kind media.Kind) (string, error) {
	if !kind.Supported() {
		return "", apperr.Unsupported(fmt.Sprintf("kind %q", kind))
	}
	return p.call(ctx, StageExtractText, func(ctx context.Context) (string, error) {
		return p.extractor.ExtractText(ctx, data, kind)
	})
}

// Translate converts recognised text into the target language
func (p *Pipeline) Translate(ctx context.Context, text string) (string, error) {
	return p.call(ctx, StageTranslate, func(ctx context.Context) (string, error) {
		return p.translator.Translate(ctx, text, p.target)
	})
}

// RequestStructuredExtraction asks the model for the receipt JSON and returns its raw reply
func (p *Pipeline) RequestStructuredExtraction(ctx context.Context, text string) (string, error) {
	prompt := BuildExtractionPrompt(text)
	return p.call(ctx, StageStructure, func(ctx context.Context) (string, error) {
		return p.generator.Generate(ctx, prompt)
	})
}

// Parse pulls the JSON object out of a model reply and decodes it
func (p *Pipeline) Parse(raw string) (*insight.Result, error) {
	start := time.Now()
	result, err := parseReply(raw)
	p.metrics.ObserveStage(StageParse, time.Since(start), err)
	if err != nil {
		slog.Warn("Model reply could not be parsed", "error", err, "reply_length", len(raw))
	}
	return result, err
}

func parseReply(raw string) (*insight.Result, error) {
	block, ok := ExtractEmbeddedJSON(raw)
	if !ok {
		return nil, apperr.Malformed(errors.New("no JSON object in model reply"))
	}
	return ParseResult(block)
}

// Run executes every stage in order and stops at the first failure
func (p *Pipeline) Run(ctx context.Context, data []byte, kind media.Kind) (*insight.Result, error) {
	text, err := p.ExtractText(ctx, data, kind)
	if err != nil {
		return nil, err
	}

	translated, err := p.Translate(ctx, text)
	if err != nil {
		return nil, err
	}

	raw, err := p.RequestStructuredExtraction(ctx, translated)
	if err != nil {
		return nil, err
	}

	return p.Parse(raw)
}

// call runs one collaborator stage under the per-call timeout. Errors outside
// the shared taxonomy are reported as external service failures.
func (p *Pipeline) call(ctx context.Context, stage string, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	out, err := fn(callCtx)
	elapsed := time.Since(start)

	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil && !errors.Is(err, apperr.ErrUnsupportedMedia) && !errors.Is(err, apperr.ErrMalformedJSON) {
		err = apperr.External(stage, err)
	}

	p.metrics.ObserveStage(stage, elapsed, err)
	if err != nil {
		slog.Error("Pipeline stage failed", "stage", stage, "duration", elapsed, "error", err)
		return "", err
	}

	slog.Debug("Pipeline stage finished", "stage", stage, "duration", elapsed, "output_length", len(out))
	return out, nil
}
