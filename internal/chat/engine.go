// Package chat は会話アシスタントの中核を提供する。
// 1ターンの流れ: セッション読込 → 意図分類/ウィザード進行 →
// AI呼び出し（予約→予算チェック→実行→失敗時ロールバック）→
// セッション更新 → 応答。資源を予約したすべての経路は、自然消費か
// 明示的なロールバックのどちらか一方に必ず到達する。
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jobnavi/internal/budget"
	"github.com/hitoshi/jobnavi/internal/credit"
	"github.com/hitoshi/jobnavi/internal/entitlement"
	"github.com/hitoshi/jobnavi/internal/gateway"
	"github.com/hitoshi/jobnavi/internal/metrics"
	"github.com/hitoshi/jobnavi/internal/model"
	"github.com/hitoshi/jobnavi/internal/repository"
	"github.com/hitoshi/jobnavi/internal/security"
)

// ターン応答のアクション種別
const (
	ActionGreeting             = "greeting"
	ActionMessage              = "message"
	ActionShowJobs             = "show_jobs"
	ActionApplySuccess         = "apply_success"
	ActionJobCreationStep      = "job_creation_step"
	ActionJobCreationCancelled = "job_creation_cancelled"
	ActionPostJobSuccess       = "post_job_success"
	ActionPaymentRequired      = "payment_required"
	ActionError                = "error"
)

// TurnResult は1ターンの応答を表す。Payloadの型はActionにより異なる。
type TurnResult struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Payload any    `json:"payload,omitempty"`
}

// EngineDeps はEngineの依存をまとめる。
type EngineDeps struct {
	Accounts     repository.AccountRepository
	Jobs         repository.JobRepository
	Applications repository.ApplicationRepository
	Sessions     repository.ChatSessionRepository

	Ledger    *credit.Ledger
	Limiter   *budget.Limiter
	Reservoir *entitlement.Reservoir
	Completer gateway.Completer
	Estimator credit.Estimator
	Sanitizer security.InputSanitizerService
	Metrics   metrics.MetricsCollector

	MaxOutputTokens int
	SearchLimit     int
	DuplicateWindow time.Duration
}

// Engine は会話アシスタントのターン処理を実装する。
type Engine struct {
	accounts     repository.AccountRepository
	jobs         repository.JobRepository
	applications repository.ApplicationRepository
	sessions     repository.ChatSessionRepository

	ledger    *credit.Ledger
	limiter   *budget.Limiter
	reservoir *entitlement.Reservoir
	completer gateway.Completer
	estimator credit.Estimator
	sanitizer security.InputSanitizerService
	metrics   metrics.MetricsCollector

	maxOutputTokens int
	searchLimit     int
	duplicateWindow time.Duration

	now func() time.Time
}

// NewEngine はEngineを生成する。
func NewEngine(deps EngineDeps) *Engine {
	if deps.SearchLimit <= 0 {
		deps.SearchLimit = 5
	}
	if deps.DuplicateWindow <= 0 {
		deps.DuplicateWindow = 5 * time.Minute
	}
	return &Engine{
		accounts:        deps.Accounts,
		jobs:            deps.Jobs,
		applications:    deps.Applications,
		sessions:        deps.Sessions,
		ledger:          deps.Ledger,
		limiter:         deps.Limiter,
		reservoir:       deps.Reservoir,
		completer:       deps.Completer,
		estimator:       deps.Estimator,
		sanitizer:       deps.Sanitizer,
		metrics:         deps.Metrics,
		maxOutputTokens: deps.MaxOutputTokens,
		searchLimit:     deps.SearchLimit,
		duplicateWindow: deps.DuplicateWindow,
		now:             time.Now,
	}
}

// HandleTurn は1会話ターンを処理する。roleが指定されている場合は
// アカウントの種別と一致しなければならない。支払い系のソフトエラーは
// payment_requiredアクションとして返り、エラーにはならない。
func (e *Engine) HandleTurn(ctx context.Context, accountID string, role model.Role, message string) (*TurnResult, error) {
	text := e.sanitizer.SanitizeText(message)

	account, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError(accountID)
	}
	if role != "" && role != account.Role {
		return nil, model.NewInvalidRoleError(role)
	}

	if isClear(text) {
		if err := e.sessions.Deactivate(ctx, accountID); err != nil {
			return nil, fmt.Errorf("セッションの非アクティブ化に失敗しました: %w", err)
		}
		result := &TurnResult{Message: clearedText, Action: ActionMessage}
		e.metrics.RecordTurn(result.Action)
		return result, nil
	}

	session, err := e.loadOrCreateSession(ctx, accountID)
	if err != nil {
		return nil, err
	}
	session.AppendMessage(model.ChatMessage{
		Role:      model.MessageRoleUser,
		Content:   text,
		CreatedAt: e.now(),
	})

	var result *TurnResult
	switch account.Role {
	case model.RoleEmployer:
		result, err = e.handleEmployerTurn(ctx, session, account, text)
	case model.RoleSeeker:
		result, err = e.handleSeekerTurn(ctx, session, account, text)
	default:
		return nil, model.NewInvalidRoleError(account.Role)
	}
	if err != nil {
		result = e.softFailureResult(err)
		if result == nil {
			return nil, err
		}
	}

	session.AppendMessage(model.ChatMessage{
		Role:      model.MessageRoleAssistant,
		Content:   result.Message,
		Action:    result.Action,
		Payload:   result.Payload,
		CreatedAt: e.now(),
	})
	if err := e.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	e.metrics.RecordTurn(result.Action)
	return result, nil
}

// loadOrCreateSession はアクティブなセッションを読み込む。
// 存在しない場合は遅延生成する。
func (e *Engine) loadOrCreateSession(ctx context.Context, accountID string) (*model.ChatSession, error) {
	session, err := e.sessions.FindActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session != nil {
		return session, nil
	}

	session = &model.ChatSession{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Active:    true,
		CreatedAt: e.now(),
		UpdatedAt: e.now(),
	}
	if err := e.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}
	return session, nil
}

// softFailureResult はターン内で許容されるソフトエラーを応答へ変換する。
// 変換できないエラーの場合はnilを返し、呼び出し元がそのまま返す。
func (e *Engine) softFailureResult(err error) *TurnResult {
	var insufficient *model.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		apiErr := insufficient.APIError()
		return &TurnResult{Message: apiErr.Message, Action: ActionPaymentRequired, Payload: apiErr}
	}
	var budgetErr *model.BudgetExceededError
	if errors.As(err, &budgetErr) {
		apiErr := budgetErr.APIError()
		return &TurnResult{Message: apiErr.Message, Action: ActionPaymentRequired, Payload: apiErr}
	}
	var quotaErr *model.NoJobQuotaError
	if errors.As(err, &quotaErr) {
		apiErr := quotaErr.APIError()
		return &TurnResult{Message: apiErr.Message, Action: ActionPaymentRequired, Payload: apiErr}
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return &TurnResult{Message: apiErr.Message, Action: ActionError, Payload: apiErr}
	}
	return nil
}

// isPaymentErr は支払い系のソフトエラー（ターン全体を短絡させる）かどうかを返す。
func isPaymentErr(err error) bool {
	var insufficient *model.InsufficientCreditsError
	var budgetErr *model.BudgetExceededError
	return errors.As(err, &insufficient) || errors.As(err, &budgetErr)
}

// completeWithCredits はAI呼び出しを課金ガードで包む。
// Ledger予約 → Limiterチェック → ゲートウェイ呼び出しの順で進み、
// 予約後に失敗したすべての経路で予約を返金する。
func (e *Engine) completeWithCredits(ctx context.Context, accountID, systemPrompt, userPrompt string) (string, error) {
	cost := e.estimator.EstimateCost(systemPrompt+userPrompt, e.maxOutputTokens)

	res, err := e.ledger.Reserve(ctx, accountID, cost)
	if err != nil {
		return "", err
	}
	e.metrics.RecordReservation(string(res.Pool))

	if err := e.limiter.Check(accountID, cost); err != nil {
		e.rollback(ctx, res)
		var budgetErr *model.BudgetExceededError
		if errors.As(err, &budgetErr) {
			e.metrics.RecordBudgetRejection(budgetErr.Scope)
		}
		return "", err
	}

	start := e.now()
	out, err := e.completer.Complete(ctx, systemPrompt, userPrompt, e.maxOutputTokens)
	e.metrics.RecordGatewayLatency(time.Since(start))
	if err != nil {
		e.metrics.RecordGatewayFailure()
		e.rollback(ctx, res)
		e.limiter.Refund(accountID, cost)
		return "", err
	}
	return out, nil
}

// rollback は予約を返金し、失敗してもターンを止めずログに残す。
func (e *Engine) rollback(ctx context.Context, res *credit.Reservation) {
	if err := e.ledger.Release(ctx, res); err != nil {
		slog.Error("token rollback failed",
			slog.String("account_id", res.AccountID),
			slog.String("pool", string(res.Pool)),
			slog.Int64("amount", res.Amount),
			slog.String("error", err.Error()),
		)
		return
	}
	e.metrics.RecordRollback(string(res.Pool))
}
