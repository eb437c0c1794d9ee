package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/config"
	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"
)

const summaryPrompt = "You are a senior agile coach. Given per-person sprint figures (logged hours, planned hours, " +
	"utilization percent) and data quality notes, write a short plain-text paragraph for the team: who is over or " +
	"under plan, overall utilization, and anything that looks off. No markdown."

type Client struct {
	key   string
	model string
	cli   openai.Client
	log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger, opts ...option.RequestOption) *Client {
	model := cfg.OpenAIModel
	if strings.TrimSpace(model) == "" {
		model = "gpt-4.1-mini"
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(cfg.OpenAIKey)}, opts...)
	if cfg.OpenAITimeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.OpenAITimeout))
	}
	return &Client{key: cfg.OpenAIKey, model: model, cli: openai.NewClient(reqOpts...), log: log}
}

// Summarize turns report figures into a short narrative for the digest.
func (c *Client) Summarize(ctx context.Context, kpis map[string]float64, notes []string) (string, error) {
	if strings.TrimSpace(c.key) == "" {
		return "", errors.New("openai: missing key")
	}
	c.log.Info().Str("model", c.model).Int("kpis", len(kpis)).Msg("openai Summarize call")
	payload := map[string]any{"kpis": kpis, "notes": notes}
	userContent := ""
	if b, err := json.Marshal(payload); err == nil {
		userContent = string(b)
	}
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summaryPrompt),
			openai.UserMessage(userContent),
		},
	}
	resp, err := c.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
