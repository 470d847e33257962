package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/zombor/receipt-insight/internal/apperr"
)

const defaultOpenAIModel = shared.ResponsesModel("gpt-4.1-mini")

// OpenAI implements Generator with the OpenAI Responses API
type OpenAI struct {
	client *openai.Client
	model  shared.ResponsesModel
}

// NewOpenAI creates a client; baseURL may point at any Responses-compatible endpoint
func NewOpenAI(apiKey, modelName, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	model := defaultOpenAIModel
	if modelName != "" {
		model = shared.ResponsesModel(modelName)
	}
	return &OpenAI{client: &client, model: model}, nil
}

// Generate sends the prompt as a single user message
func (a *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
	})
	if err != nil {
		return "", apperr.External("openai", fmt.Errorf("call OpenAI: %w", err))
	}

	output := resp.OutputText()
	if strings.TrimSpace(output) == "" {
		return "", apperr.External("openai", errors.New("model returned an empty response"))
	}
	return output, nil
}

// Close is a no-op; the SDK client holds no resources
func (a *OpenAI) Close() error {
	return nil
}
