// Package credit はAIトークン残高の台帳（Ledger）を提供する。
// 残高はストレージの条件付きアトミック更新のみで変更され、
// 予約（Reserve）とロールバック（Release）の対で消費を管理する。
package credit

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator はプロンプトの推定消費トークン数を算出するインターフェース。
// 推定値は入力トークンの見積もり + 出力トークンの上限で、実測ではない。
type Estimator interface {
	// EstimateCost はプロンプトと出力上限から消費トークン数を見積もる。
	// 戻り値は必ず1以上。
	EstimateCost(prompt string, maxOutputTokens int) int64
}

// HeuristicEstimator は文字数ベースの決定的な見積もりを行う。
// 入力は約4文字=1トークンとして概算する。
type HeuristicEstimator struct{}

// EstimateCost はプロンプト長/4 + 出力上限を返す。最小値は1。
func (HeuristicEstimator) EstimateCost(prompt string, maxOutputTokens int) int64 {
	cost := int64(len(prompt)/4 + maxOutputTokens)
	if cost < 1 {
		return 1
	}
	return cost
}

// TiktokenEstimator はtiktokenのエンコーディングによる正確な入力トークン数を使う。
// エンコーディングの初期化に失敗した場合（オフライン環境等）は
// HeuristicEstimatorへフォールバックする。
type TiktokenEstimator struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
	fallback HeuristicEstimator
}

// NewTiktokenEstimator はTiktokenEstimatorを生成する。
// エンコーディングは初回利用時に遅延ロードされる。
func NewTiktokenEstimator() *TiktokenEstimator {
	return &TiktokenEstimator{}
}

// EstimateCost は符号化した入力トークン数 + 出力上限を返す。最小値は1。
func (e *TiktokenEstimator) EstimateCost(prompt string, maxOutputTokens int) int64 {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tiktoken encoding unavailable, falling back to heuristic estimator",
				slog.String("error", err.Error()),
			)
			return
		}
		e.encoding = enc
	})

	if e.encoding == nil {
		return e.fallback.EstimateCost(prompt, maxOutputTokens)
	}

	cost := int64(len(e.encoding.Encode(prompt, nil, nil)) + maxOutputTokens)
	if cost < 1 {
		return 1
	}
	return cost
}
