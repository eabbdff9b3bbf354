package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/jobnavi/internal/model"
)

// 求人企業側のターン処理。状態機械:
// idle → awaiting_field[i] (i=0..K-1) → awaiting_confirmation →
// posted | cancelled。キャンセルはどの状態からでも受け付ける。

// JobCreationPayload はjob_creation_stepアクションに付随するデータ。
type JobCreationPayload struct {
	Step       *model.PostingStep `json:"step,omitempty"`
	StepIndex  int                `json:"step_index"`
	TotalSteps int                `json:"total_steps"`
	Draft      *model.JobDraft    `json:"draft,omitempty"`
	Confirming bool               `json:"confirming"`
}

func (e *Engine) handleEmployerTurn(ctx context.Context, session *model.ChatSession, account *model.Account, text string) (*TurnResult, error) {
	flow := session.PostingFlow

	if flow == nil || !flow.Active {
		switch {
		case isPostJob(text):
			flow = newPostingFlow()
			session.PostingFlow = flow
			return &TurnResult{
				Message: formatStepQuestion(flow.CurrentStep()),
				Action:  ActionJobCreationStep,
				Payload: stepPayload(flow),
			}, nil
		case isGreeting(text):
			return &TurnResult{Message: greetingEmployerText, Action: ActionGreeting}, nil
		default:
			return e.generalReply(ctx, account.ID, employerSystemPrompt, text)
		}
	}

	if isCancel(text) {
		session.PostingFlow = nil
		return &TurnResult{
			Message: "求人の作成をキャンセルしました。下書きは破棄されます。",
			Action:  ActionJobCreationCancelled,
		}, nil
	}

	if flow.AwaitingConfirmation() {
		return e.handleConfirmation(ctx, session, account, text)
	}
	return e.handleFieldAnswer(ctx, session, account, text)
}

// handleFieldAnswer はawaiting_field[i]状態の回答を処理する。
// 分類はAnswer（値を抽出して次へ）、General（雑談として応答、状態維持）、
// InvalidAnswer（理由を説明して同じ質問を再提示）の3通り。
func (e *Engine) handleFieldAnswer(ctx context.Context, session *model.ChatSession, account *model.Account, text string) (*TurnResult, error) {
	flow := session.PostingFlow
	step := flow.CurrentStep()

	normalize, ok := fieldNormalizers[step.Field]
	if !ok {
		return nil, fmt.Errorf("未定義のウィザードフィールドです: %s", step.Field)
	}

	value, err := normalize(text)
	if err != nil {
		if looksLikeQuestion(text) {
			// 無関係な質問は状態を変えずに答え、同じ質問を再提示する
			reply, rerr := e.generalReply(ctx, account.ID, employerSystemPrompt, text)
			if rerr != nil {
				return nil, rerr
			}
			return &TurnResult{
				Message: reply.Message + "\n\n" + formatStepQuestion(step),
				Action:  ActionJobCreationStep,
				Payload: stepPayload(flow),
			}, nil
		}
		apiErr := model.NewInvalidFieldAnswerError(step.Field, err.Error())
		slog.Debug("wizard answer rejected",
			slog.String("account_id", account.ID),
			slog.String("field", step.Field),
		)
		return &TurnResult{
			Message: formatInvalidAnswer(step, err.Error()),
			Action:  ActionJobCreationStep,
			Payload: apiErr,
		}, nil
	}

	flow.Answers[step.Field] = value
	flow.CurrentIndex++

	if flow.AwaitingConfirmation() {
		draft := buildDraft(flow.Answers)
		return &TurnResult{
			Message: formatDraftSummary(draft),
			Action:  ActionJobCreationStep,
			Payload: confirmationPayload(flow, draft),
		}, nil
	}
	return &TurnResult{
		Message: formatStepQuestion(flow.CurrentStep()),
		Action:  ActionJobCreationStep,
		Payload: stepPayload(flow),
	}, nil
}

// handleConfirmation はawaiting_confirmation状態の返事を処理する。
// 肯定 → 確定、否定 → キャンセル、どちらでもない → 確認を再提示。
func (e *Engine) handleConfirmation(ctx context.Context, session *model.ChatSession, account *model.Account, text string) (*TurnResult, error) {
	flow := session.PostingFlow

	switch {
	case isNegative(text):
		session.PostingFlow = nil
		return &TurnResult{
			Message: "求人の作成をキャンセルしました。下書きは破棄されます。",
			Action:  ActionJobCreationCancelled,
		}, nil
	case isAffirmative(text):
		return e.finalizeJob(ctx, session, account)
	default:
		draft := buildDraft(flow.Answers)
		return &TurnResult{
			Message: "恐れ入ります、「はい」か「いいえ」でお答えください。\n\n" + formatDraftSummary(draft),
			Action:  ActionJobCreationStep,
			Payload: confirmationPayload(flow, draft),
		}, nil
	}
}

// finalizeJob は下書き全体の検証 → 重複ガード → 掲載枠の予約 →
// 求人の作成を行う。永続化に失敗した場合は予約を返却する。
func (e *Engine) finalizeJob(ctx context.Context, session *model.ChatSession, account *model.Account) (*TurnResult, error) {
	draft := buildDraft(session.PostingFlow.Answers)

	if invalid := validateDraft(draft); len(invalid) > 0 {
		session.PostingFlow = nil
		apiErr := model.NewValidationFailedError(invalid)
		return &TurnResult{Message: apiErr.Message, Action: ActionError, Payload: apiErr}, nil
	}

	dup, err := e.jobs.HasRecentDuplicate(ctx, account.ID, draft.Title, draft.Location, e.duplicateWindow)
	if err != nil {
		return nil, fmt.Errorf("重複求人の確認に失敗しました: %w", err)
	}
	if dup {
		session.PostingFlow = nil
		apiErr := model.NewDuplicateJobError(draft.Title, draft.Location)
		return &TurnResult{Message: apiErr.Message, Action: ActionError, Payload: apiErr}, nil
	}

	// 枠の不足はNoJobQuotaErrorとして上位でpayment_requiredに変換される。
	// 購入後に同じ下書きで確定し直せるよう、フローは破棄しない。
	res, err := e.reservoir.Reserve(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:          uuid.NewString(),
		EmployerID:  account.ID,
		Title:       draft.Title,
		Category:    draft.Category,
		Location:    draft.Location,
		Salary:      draft.Salary,
		JobType:     draft.JobType,
		Experience:  draft.Experience,
		Description: draft.Description,
		Status:      model.JobStatusActive,
		PostedAt:    e.now(),
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		if rerr := e.reservoir.Release(ctx, res); rerr != nil {
			slog.Error("job slot rollback failed",
				slog.String("account_id", account.ID),
				slog.String("error", rerr.Error()),
			)
		}
		return nil, fmt.Errorf("求人の作成に失敗しました: %w", err)
	}

	session.PostingFlow = nil
	slog.Info("job posted",
		slog.String("account_id", account.ID),
		slog.String("job_id", job.ID),
		slog.String("slot_source", string(res.Source)),
	)
	return &TurnResult{
		Message: fmt.Sprintf("求人「%s」を掲載しました！応募が届いたらお知らせします。", job.Title),
		Action:  ActionPostJobSuccess,
		Payload: job,
	}, nil
}

func stepPayload(flow *model.PostingFlow) *JobCreationPayload {
	return &JobCreationPayload{
		Step:       flow.CurrentStep(),
		StepIndex:  flow.CurrentIndex,
		TotalSteps: len(flow.Steps),
	}
}

func confirmationPayload(flow *model.PostingFlow, draft model.JobDraft) *JobCreationPayload {
	return &JobCreationPayload{
		StepIndex:  flow.CurrentIndex,
		TotalSteps: len(flow.Steps),
		Draft:      &draft,
		Confirming: true,
	}
}

// looksLikeQuestion はウィザード中の無関係な質問かどうかの簡易判定。
func looksLikeQuestion(text string) bool {
	return strings.ContainsAny(text, "?？") ||
		strings.Contains(text, "ですか") ||
		strings.Contains(text, "とは")
}
