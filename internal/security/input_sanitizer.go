// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizerService はユーザー入力の自由テキスト（チャットメッセージ、
// 求人作成ウィザードの回答）をサニタイズし、保存・表示時のXSSリスクから
// ユーザーを保護する。bluemondayライブラリのStrictPolicyを使用し、
// HTMLタグを一切許可しない。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizerService は自由テキスト入力のサニタイズ機能のインターフェースを定義する。
// 会話ターンの入力とウィザード回答の保存前に使用される。
type InputSanitizerService interface {
	// SanitizeText は入力からHTMLタグをすべて除去し、前後の空白を取り除いて返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはタグと属性を一切許可しないため、script等の危険な要素は
// もちろん、整形用のタグもすべてプレーンテキストに落とされる。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力からHTMLタグをすべて除去して返す。
func (s *inputSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
