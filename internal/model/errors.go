package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: billing, validation, chat, auth, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	ErrCodeBudgetExceeded      = "BUDGET_EXCEEDED"
	ErrCodeNoJobQuota          = "NO_JOB_QUOTA"
	ErrCodeInvalidFieldAnswer  = "INVALID_FIELD_ANSWER"
	ErrCodeDuplicateJob        = "DUPLICATE_JOB"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeGatewayFailure      = "GATEWAY_FAILURE"
	ErrCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	ErrCodeJobNotFound         = "JOB_NOT_FOUND"
	ErrCodeInvalidRole         = "INVALID_ROLE"
)

// 予算超過のスコープ識別子。APIErrorのMessageとは別にコードとして返す。
const (
	BudgetScopeUserDaily   = "user_daily_budget_exceeded"
	BudgetScopeGlobalDaily = "global_daily_budget_exceeded"
)

// InsufficientCreditsError はAIトークン残高不足を表す。
// 致命的エラーではなく、呼び出し元はpayment_requiredとして応答する。
type InsufficientCreditsError struct {
	FreeBalance int64
	PaidBalance int64
}

// Error はerrorインターフェースを実装する。
func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("[%s] AIトークン残高が不足しています（無料: %d / 購入済み: %d）",
		ErrCodeInsufficientCredits, e.FreeBalance, e.PaidBalance)
}

// APIError は統一エラーフォーマットへ変換する。
func (e *InsufficientCreditsError) APIError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientCredits,
		Message:  fmt.Sprintf("AIトークン残高が不足しています（無料: %d / 購入済み: %d）。", e.FreeBalance, e.PaidBalance),
		Category: "billing",
		Action:   "トークンを購入するか、明日以降に再度お試しください。",
	}
}

// BudgetExceededError は日次予算上限の超過を表す。
// ScopeはBudgetScopeUserDailyまたはBudgetScopeGlobalDaily。
type BudgetExceededError struct {
	Scope string
}

// Error はerrorインターフェースを実装する。
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("[%s] %s", ErrCodeBudgetExceeded, e.Scope)
}

// APIError は統一エラーフォーマットへ変換する。
func (e *BudgetExceededError) APIError() *APIError {
	msg := "本日のAI利用上限に達しました。"
	if e.Scope == BudgetScopeGlobalDaily {
		msg = "本日のサービス全体のAI利用上限に達しました。"
	}
	return &APIError{
		Code:     ErrCodeBudgetExceeded,
		Message:  msg,
		Category: "billing",
		Action:   "日付が変わってから再度お試しください。",
	}
}

// NoJobQuotaError は求人掲載枠の残数不足を表す。
type NoJobQuotaError struct {
	FreeSlots int
	PaidSlots int
}

// Error はerrorインターフェースを実装する。
func (e *NoJobQuotaError) Error() string {
	return fmt.Sprintf("[%s] 求人掲載枠がありません（無料: %d / 購入済み: %d）",
		ErrCodeNoJobQuota, e.FreeSlots, e.PaidSlots)
}

// APIError は統一エラーフォーマットへ変換する。
func (e *NoJobQuotaError) APIError() *APIError {
	return &APIError{
		Code:     ErrCodeNoJobQuota,
		Message:  "求人掲載枠の残りがありません。",
		Category: "billing",
		Action:   "掲載枠を購入するか、サブスクリプションをご契約ください。",
	}
}

// NewInvalidFieldAnswerError は求人作成ウィザードの回答が不正な場合のエラーを生成する。
func NewInvalidFieldAnswerError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFieldAnswer,
		Message:  fmt.Sprintf("「%s」の回答を解釈できませんでした: %s", field, reason),
		Category: "validation",
		Action:   "ヒントを参考に、もう一度入力してください。",
	}
}

// NewDuplicateJobError は短時間内の同一求人の重複投稿エラーを生成する。
func NewDuplicateJobError(title, location string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateJob,
		Message:  fmt.Sprintf("同じ内容の求人（%s / %s）が数分以内に投稿されています。", title, location),
		Category: "validation",
		Action:   "重複投稿でない場合は、5分以上あけてから再度お試しください。",
	}
}

// NewValidationFailedError は求人下書きの確定時バリデーションエラーを生成する。
func NewValidationFailedError(fields []string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("以下の項目が不正です: %v", fields),
		Category: "validation",
		Action:   "求人作成をやり直してください。",
	}
}

// NewGatewayFailureError はAIゲートウェイの呼び出し失敗エラーを生成する。
// 予約済みトークンはロールバック済みであることを前提とする。
func NewGatewayFailureError() *APIError {
	return &APIError{
		Code:     ErrCodeGatewayFailure,
		Message:  "AIアシスタントへの接続に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewAccountNotFoundError はアカウントが見つからない場合のエラーを生成する。
func NewAccountNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("アカウントが見つかりません: %s", accountID),
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewJobNotFoundError は求人が見つからない場合のエラーを生成する。
func NewJobNotFoundError(jobID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("指定された求人が見つかりません: %s", jobID),
		Category: "validation",
		Action:   "求人IDまたは番号を確認してください。",
	}
}

// NewInvalidRoleError は操作がアカウント種別に許可されていない場合のエラーを生成する。
func NewInvalidRoleError(role Role) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("この操作は%sアカウントでは利用できません。", role),
		Category: "auth",
		Action:   "アカウント種別を確認してください。",
	}
}
