package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// schemaResult is the strict structured-output shape requested from the
// model. Parse still accepts looser output from models without schema support.
type schemaResult struct {
	Decision           string `json:"decision" jsonschema:"enum=forward,enum=stop,enum=ok"`
	TargetExecutorName string `json:"target_executor_name" jsonschema:"description=Organization the complaint is forwarded to; empty when none"`
	IsBlockingBounce   bool   `json:"is_blocking_bounce"`
	ModeratorMessage   string `json:"moderator_message"`
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxTokens  int
	MaxRetries int
}

// OpenAIClassifier talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClassifier struct {
	client    openai.Client
	model     string
	timeout   time.Duration
	maxTokens int
	schema    any
	logger    *zap.Logger
}

func NewOpenAI(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 400
	}

	return &OpenAIClassifier{
		client:    openai.NewClient(opts...),
		model:     model,
		timeout:   timeout,
		maxTokens: maxTokens,
		schema:    generateSchema[schemaResult](),
		logger:    logger,
	}, nil
}

func (c *OpenAIClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, newError(KindMalformed, "encode request: %v", err)
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(string(payload)),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(0.1),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "executor_response_classification",
					Description: openai.String("Football classification of an executor response"),
					Schema:      c.schema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &Error{Kind: KindTimeout, Err: err}
		}
		return Result{}, &Error{Kind: KindTransport, Err: err}
	}

	c.logger.Debug("classifier call completed",
		zap.String("model", c.model),
		zap.Int64("complaint_id", req.ComplaintID),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return Result{}, newError(KindMalformed, "no choices in response")
	}

	return Parse(resp.Choices[0].Message.Content)
}

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
