// Package assistant answers free-form questions about stored receipts and
// suggests expense categories, both by asking a language model.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/insight"
	"github.com/zombor/receipt-insight/internal/llm"
)

// ErrEmptyQuestion is returned when there is nothing to ask
var ErrEmptyQuestion = errors.New("question is required")

// ErrEmptyText is returned when there is no receipt text to categorise
var ErrEmptyText = errors.New("receipt text is required")

// ExpenseCategories are the coarse categories offered for a whole receipt
var ExpenseCategories = []string{
	"Food & Dining", "Groceries", "Transportation", "Shopping", "Entertainment",
	"Bills & Utilities", "Healthcare", "Education", "Travel", "Other",
}

const queryPrompt = `You are a smart financial assistant. A user has shared parsed receipt data with you. You can answer queries about:
- their past expenses
- category breakdowns
- vendor-specific totals
- time-based trends (weekly/monthly)
- financial planning advice

You can also ask counter-questions if something looks interesting.

Respond based on the data you have been given. Do not limit yourself to the item categories; analyse the receipts as a whole and respond accordingly.

Receipt Data:
%s

Now answer the user's question: %q
`

const categoryPrompt = `Given this receipt text:
%q

What is the most appropriate expense category from this list?
[%s]

Respond ONLY with the best category.`

// Assistant sends receipt questions to a language model
type Assistant struct {
	model   llm.Generator
	timeout time.Duration
}

// New creates an Assistant. A zero timeout leaves the caller's context as the only bound.
func New(model llm.Generator, timeout time.Duration) *Assistant {
	return &Assistant{model: model, timeout: timeout}
}

// BuildQueryPrompt embeds every result and the question into one instruction
func BuildQueryPrompt(results []*insight.Result, question string) (string, error) {
	if results == nil {
		results = []*insight.Result{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding receipt data: %w", err)
	}
	return fmt.Sprintf(queryPrompt, data, question), nil
}

// Answer asks the model about the given results and returns its reply unmodified.
// Every call is a fresh round trip; answers are never cached.
func (a *Assistant) Answer(ctx context.Context, results []*insight.Result, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	prompt, err := BuildQueryPrompt(results, question)
	if err != nil {
		return "", err
	}

	slog.Info("Answering receipt question", "receipts", len(results), "question_length", len(question))

	answer, err := a.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return answer, nil
}

// SuggestCategory picks one of ExpenseCategories for a receipt's text.
// Replies outside the list map to "Other".
func (a *Assistant) SuggestCategory(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	prompt := fmt.Sprintf(categoryPrompt, text, strings.Join(ExpenseCategories, ", "))
	reply, err := a.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return matchCategory(reply), nil
}

func (a *Assistant) generate(ctx context.Context, prompt string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	reply, err := a.model.Generate(ctx, prompt)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return "", apperr.External("assistant", err)
	}
	return reply, nil
}

func matchCategory(reply string) string {
	reply = strings.Trim(strings.TrimSpace(reply), `"'.*`)
	for _, c := range ExpenseCategories {
		if strings.EqualFold(reply, c) {
			return c
		}
	}
	for _, c := range ExpenseCategories {
		if strings.Contains(strings.ToLower(reply), strings.ToLower(c)) {
			return c
		}
	}
	return "Other"
}
