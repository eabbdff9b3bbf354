package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/hitoshi/jobnavi/internal/model"
)

// OpenAIClient はOpenAIのチャット補完APIを使うCompleter実装。
type OpenAIClient struct {
	llm     llms.Model
	model   string
	timeout time.Duration
}

var _ Completer = (*OpenAIClient)(nil)

// NewOpenAIClient はOpenAIClientを生成する。
func NewOpenAIClient(apiKey, modelName string, timeout time.Duration) (*OpenAIClient, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAIクライアントの初期化に失敗しました: %w", err)
	}
	return &OpenAIClient{llm: llm, model: modelName, timeout: timeout}, nil
}

// Complete はチャット補完を1回実行する。タイムアウトは呼び出しごとに適用される。
// プロバイダのエラー詳細はログへ出し、呼び出し元には一律のGATEWAY_FAILUREを返す。
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userPrompt),
	}

	start := time.Now()
	resp, err := c.llm.GenerateContent(ctx, messages, llms.WithMaxTokens(maxOutputTokens))
	if err != nil {
		slog.Error("AI completion failed",
			slog.String("model", c.model),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return "", model.NewGatewayFailureError()
	}
	if len(resp.Choices) == 0 {
		slog.Error("AI completion returned no choices",
			slog.String("model", c.model),
		)
		return "", model.NewGatewayFailureError()
	}

	slog.Debug("AI completion succeeded",
		slog.String("model", c.model),
		slog.Duration("elapsed", time.Since(start)),
	)
	return resp.Choices[0].Content, nil
}
