// Package gateway は外部AIプロバイダへの呼び出しを抽象化する。
// 呼び出し失敗はラップして返し、呼び出し元が予約のロールバックを行う。
package gateway

import (
	"context"
	"strings"
)

// Completer はAIモデルへの単発の補完リクエストを表すインターフェース。
type Completer interface {
	// Complete はシステムプロンプトとユーザー入力から応答テキストを生成する。
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, error)
}

// CompleteJSON はJSON応答を期待する補完を行い、モデルがmarkdownの
// コードフェンスで囲んで返した場合にそれを除去して返す。
func CompleteJSON(ctx context.Context, c Completer, systemPrompt, userPrompt string, maxOutputTokens int) (string, error) {
	raw, err := c.Complete(ctx, systemPrompt, userPrompt, maxOutputTokens)
	if err != nil {
		return "", err
	}
	return StripCodeFence(raw), nil
}

// StripCodeFence は ```json ... ``` 形式のコードフェンスを取り除く。
// フェンスが無い場合は前後の空白のみ除去して返す。
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
