package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog/log"
)

// OpenAI summarizes through an OpenAI compatible chat completion endpoint.
type OpenAI struct {
	client  openai.Client
	cfg     Config
	prompts *Prompts
	schema  *jsonschema.Resolved
	usage   *UsageLog
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	prompts, err := LoadPrompts()
	if err != nil {
		return nil, err
	}
	schema, err := qualitativeSchema()
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAI{
		client:  openai.NewClient(opts...),
		cfg:     cfg,
		prompts: prompts,
		schema:  schema,
		usage:   NewUsageLog(cfg.UsageLogPath),
	}, nil
}

func (o *OpenAI) Summarize(ctx context.Context, ex Excerpt) (*Qualitative, error) {
	user, err := o.prompts.Summary.RenderUser(ex)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log.Info().Str("epic", ex.EpicKey).Str("model", o.cfg.Model).Int("nodes", len(ex.Nodes)).Msg("Requesting qualitative summary")

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(o.prompts.Summary.System),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion for %s: %w", ex.EpicKey, err)
	}

	if err := o.usage.Record(Usage{
		Timestamp:        time.Now().UTC(),
		Task:             "summary",
		Epic:             ex.EpicKey,
		Model:            o.cfg.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to record token usage")
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	raw, err := ExtractJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	q, err := decodeQualitative(o.schema, raw)
	if err != nil {
		return nil, err
	}

	log.Info().Str("epic", ex.EpicKey).Int64("tokens", resp.Usage.TotalTokens).Dur("elapsed", time.Since(start)).Msg("Qualitative summary received")
	return q, nil
}
