package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "Summarize the provided article as a professional AI researcher, " +
	"focusing on key insights, technical advancements, and implications for the field. " +
	"Deliver a concise %s summary, prioritizing critical details like model capabilities, " +
	"benchmark results, architectural innovations, and governance trends. Exclude filler " +
	"words, irrelevant details, and any reference to this prompt. Use precise, technical " +
	"language suitable for an expert audience."

// Settings configures the OpenAI-compatible summarizer. BaseURL may
// point at any chat-completions endpoint, e.g. OpenRouter.
type Settings struct {
	Model         string
	APIKey        string
	BaseURL       string
	SummaryLength string
	MaxInputChars int
}

// OpenAI implements Summarizer with the official openai-go SDK.
type OpenAI struct {
	model         string
	summaryLength string
	maxInputChars int
	opts          []option.RequestOption
}

// NewOpenAI validates settings and builds the client options.
func NewOpenAI(cfg Settings) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("summarizer api key missing")
	}
	if cfg.Model == "" {
		return nil, errors.New("summarizer model is required")
	}
	if cfg.SummaryLength == "" {
		cfg.SummaryLength = "200 word"
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 48000
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		model:         cfg.Model,
		summaryLength: cfg.SummaryLength,
		maxInputChars: cfg.MaxInputChars,
		opts:          opts,
	}, nil
}

// Summarize sends the article body to the provider and returns the
// summary text. Empty input is a ContentError; every provider-side
// failure is a ProviderError.
func (o *OpenAI) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ContentError{Reason: "empty article body"}
	}
	if len(text) > o.maxInputChars {
		text = text[:o.maxInputChars]
	}

	client := openai.NewClient(o.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemPrompt, o.summaryLength)),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &ProviderError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Err: errors.New("no choices in response")}
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", &ProviderError{Err: errors.New("empty summary in response")}
	}
	return summary, nil
}
