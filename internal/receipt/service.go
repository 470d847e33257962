package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/insight"
	"github.com/zombor/receipt-insight/internal/media"
	"github.com/zombor/receipt-insight/internal/metrics"
)

// ErrEmptyUpload is returned for uploads without any bytes
var ErrEmptyUpload = errors.New("uploaded file is empty")

// Pipeline extracts an insight result from receipt bytes
type Pipeline interface {
	Run(ctx context.Context, data []byte, kind media.Kind) (*insight.Result, error)
}

// Assistant answers questions about receipts
type Assistant interface {
	Answer(ctx context.Context, results []*insight.Result, question string) (string, error)
	SuggestCategory(ctx context.Context, text string) (string, error)
}

// CategoryReport is a category breakdown ready for charting
type CategoryReport struct {
	Categories []*insight.CategoryTotal `json:"categories"`
	Total      insight.Number           `json:"total"`
}

func newCategoryReport(b insight.Breakdown) *CategoryReport {
	return &CategoryReport{
		Categories: b.Sorted(),
		Total:      insight.Number{Value: b.Sum(), Valid: true},
	}
}

// Service handles receipt operations
type Service struct {
	store     Store
	cache     insight.Cache
	pipeline  Pipeline
	assistant Assistant
	metrics   metrics.Recorder
}

// NewService creates a new Service. A nil recorder discards measurements.
func NewService(store Store, cache insight.Cache, pipeline Pipeline, assistant Assistant, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		store:     store,
		cache:     cache,
		pipeline:  pipeline,
		assistant: assistant,
		metrics:   recorder,
	}
}

// Upload stores a receipt file. Extraction waits until the insight is first viewed.
func (s *Service) Upload(filename string, data []byte) (*Receipt, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	id, err := s.store.Save(filename, data)
	if err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	slog.Info("Receipt uploaded", "id", id, "filename", filename, "size", len(data))
	return receiptFromID(id, false), nil
}

// List returns all receipts, most recent first
func (s *Service) List(ctx context.Context) ([]*Receipt, error) {
	ids, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	cached := make(map[string]bool)
	keys, err := s.cache.Keys(ctx)
	if err != nil {
		slog.Warn("Failed to list cached insights", "error", err)
	}
	for _, k := range keys {
		cached[k] = true
	}

	receipts := make([]*Receipt, 0, len(ids))
	for _, id := range ids {
		receipts = append(receipts, receiptFromID(id, cached[id]))
	}
	return receipts, nil
}

// View returns the insight for a receipt, running the pipeline only when
// nothing is cached yet. The boolean reports whether the cache answered.
// Failed runs leave the cache untouched so the next view retries.
func (s *Service) View(ctx context.Context, id string) (*insight.Result, bool, error) {
	result, ok, err := s.cache.Get(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrMalformedJSON):
		slog.Warn("Cached insight is corrupt, extracting again", "id", id, "error", err)
	case err != nil:
		return nil, false, fmt.Errorf("reading cached insight: %w", err)
	}
	s.metrics.CacheLookup(ok)
	if ok {
		return result, true, nil
	}

	data, kind, err := s.store.Read(id)
	if err != nil {
		return nil, false, err
	}

	result, err = s.pipeline.Run(ctx, data, kind)
	if err != nil {
		slog.Error("Failed to extract receipt",
			"id", id,
			"kind", kind,
			"file_size", len(data),
			"error", err,
		)
		return nil, false, fmt.Errorf("extracting receipt %s: %w", id, err)
	}

	if err := s.cache.Put(ctx, id, result); err != nil {
		return nil, false, fmt.Errorf("caching insight: %w", err)
	}

	slog.Info("Receipt extracted", "id", id, "vendor", result.Vendor, "items", len(result.Items))
	return result, false, nil
}

// HasInsight reports whether a usable insight is cached for the receipt.
// Lookup errors count as not cached.
func (s *Service) HasInsight(ctx context.Context, id string) bool {
	_, ok, err := s.cache.Get(ctx, id)
	return err == nil && ok
}

// Breakdown returns the category totals of one receipt
func (s *Service) Breakdown(ctx context.Context, id string) (*CategoryReport, error) {
	result, _, err := s.View(ctx, id)
	if err != nil {
		return nil, err
	}
	return newCategoryReport(insight.AggregateByCategory(result.Items)), nil
}

// HistoryBreakdown returns the category totals across every cached insight
func (s *Service) HistoryBreakdown(ctx context.Context) (*CategoryReport, error) {
	results, err := s.cache.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading insights: %w", err)
	}
	return newCategoryReport(insight.AggregateResults(results)), nil
}

// Delete removes a receipt's cached insight and then its file, so a failure
// never leaves an insight without a receipt. Deleting twice succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting insight: %w", err)
	}
	if err := s.store.Delete(id); err != nil {
		return fmt.Errorf("deleting receipt file: %w", err)
	}

	slog.Info("Receipt deleted", "id", id)
	return nil
}

// File returns the raw bytes and MIME type of a receipt
func (s *Service) File(id string) ([]byte, string, error) {
	data, _, err := s.store.Read(id)
	if err != nil {
		return nil, "", err
	}
	return data, media.ContentType(id), nil
}

// Ask answers a question using every cached insight
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	results, err := s.cache.All(ctx)
	if err != nil {
		return "", fmt.Errorf("loading insights: %w", err)
	}
	return s.assistant.Answer(ctx, results, question)
}

// Categorize suggests an expense category for receipt text
func (s *Service) Categorize(ctx context.Context, text string) (string, error) {
	return s.assistant.SuggestCategory(ctx, text)
}

// Reconcile removes cached insights whose receipt file no longer exists
// and returns how many were removed.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	ids, err := s.store.List()
	if err != nil {
		return 0, fmt.Errorf("listing receipts: %w", err)
	}
	keys, err := s.cache.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing insights: %w", err)
	}

	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	removed := 0
	for _, key := range keys {
		if known[key] {
			continue
		}
		if err := s.cache.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("deleting orphaned insight %s: %w", key, err)
		}
		slog.Info("Removed orphaned insight", "id", key)
		removed++
	}
	return removed, nil
}
