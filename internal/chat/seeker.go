package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/jobnavi/internal/model"
)

// 求職者側のターン処理。逐次ウィザードではなく、1ターンごとに
// Search | Apply | Similar | General へ分類して振り分ける。

const seekerSystemPrompt = `あなたは求人プラットフォーム「JobNavi」の親切なアシスタントです。
求職者の質問に日本語で簡潔に答えてください。仕事探しに関係する話題へ
自然に誘導してください。`

const employerSystemPrompt = `あなたは求人プラットフォーム「JobNavi」の親切なアシスタントです。
求人企業の質問に日本語で簡潔に答えてください。求人の掲載方法について
聞かれたら「求人を出したい」と入力するよう案内してください。`

// ApplyResultPayload はapply_successアクションに付随するデータ。
type ApplyResultPayload struct {
	Applied        []*model.Job `json:"applied"`
	AlreadyApplied []*model.Job `json:"already_applied"`
}

func (e *Engine) handleSeekerTurn(ctx context.Context, session *model.ChatSession, account *model.Account, text string) (*TurnResult, error) {
	// スラッシュコマンドはAIコストゼロで処理する
	if filter, ok := parseSlashSearch(text); ok {
		return e.runSearch(ctx, session, filter)
	}
	if strings.HasPrefix(strings.TrimSpace(text), "/apply") {
		return e.handleApply(ctx, session, account, text)
	}

	if isGreeting(text) {
		return &TurnResult{Message: greetingSeekerText, Action: ActionGreeting}, nil
	}

	in, confident := classifyIntent(text)
	if !confident {
		raw, err := e.completeWithCredits(ctx, account.ID, intentSystemPrompt, text)
		switch {
		case err == nil:
			in = parseIntentResponse(raw)
		case isPaymentErr(err):
			return nil, err
		default:
			// ゲートウェイ障害時はgeneralのまま決定的フォールバックへ
			in = intentGeneral
		}
	}

	switch in {
	case intentSearch:
		filter, err := e.extractSearchFilters(ctx, account.ID, text)
		if err != nil {
			return nil, err
		}
		if filter.Location == "" && session.Memory.PreferredLocation != "" {
			filter.Location = session.Memory.PreferredLocation
		}
		return e.runSearch(ctx, session, filter)
	case intentSimilar:
		return e.handleSimilar(ctx, session)
	case intentApply:
		return e.handleApply(ctx, session, account, text)
	default:
		return e.generalReply(ctx, account.ID, seekerSystemPrompt, text)
	}
}

// extractSearchFilters は自由文から検索条件を抽出する。AI抽出を優先し、
// ゲートウェイ障害時と解釈不能な応答時は決定的な抽出へフォールバックする。
func (e *Engine) extractSearchFilters(ctx context.Context, accountID, text string) (model.JobFilter, error) {
	raw, err := e.completeWithCredits(ctx, accountID, filterSystemPrompt, text)
	if err != nil {
		if isPaymentErr(err) {
			return model.JobFilter{}, err
		}
		return extractFilters(text), nil
	}
	if filter, ok := parseFilterResponse(raw); ok {
		return filter, nil
	}
	return extractFilters(text), nil
}

// runSearch は検索を実行し、セッションの記憶を更新する。
// 勤務地条件で0件だった場合は勤務地のみ外して1回だけ再試行する。
// それでも0件なら空の結果を返す。無関係な求人では決して代替しない。
func (e *Engine) runSearch(ctx context.Context, session *model.ChatSession, filter model.JobFilter) (*TurnResult, error) {
	jobs, err := e.jobs.Search(ctx, filter, e.searchLimit)
	if err != nil {
		return nil, fmt.Errorf("求人の検索に失敗しました: %w", err)
	}

	locationDropped := false
	if len(jobs) == 0 && filter.Location != "" {
		jobs, err = e.jobs.Search(ctx, filter.WithoutLocation(), e.searchLimit)
		if err != nil {
			return nil, fmt.Errorf("求人の検索に失敗しました: %w", err)
		}
		locationDropped = true
	}

	// 記憶は依頼された条件のまま保存する（フォールバックの結果ではなく）
	session.Memory.LastFilters = &filter
	if filter.Location != "" {
		session.Memory.PreferredLocation = filter.Location
	}
	if filter.Category != "" {
		session.Memory.PreferredCategory = filter.Category
	}

	ids := make([]string, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}
	session.LastShownJobIDs = ids

	if len(jobs) == 0 {
		return &TurnResult{Message: noResultsText, Action: ActionShowJobs, Payload: []*model.Job{}}, nil
	}

	message := formatJobList(jobs)
	if locationDropped {
		message = fmt.Sprintf("「%s」では見つからなかったため、勤務地の条件を外して検索しました。\n\n%s",
			filter.Location, message)
	}
	return &TurnResult{Message: message, Action: ActionShowJobs, Payload: jobs}, nil
}

// handleSimilar は直前の検索条件から勤務地以外を引き継いで再検索する。
func (e *Engine) handleSimilar(ctx context.Context, session *model.ChatSession) (*TurnResult, error) {
	if session.Memory.LastFilters == nil {
		return &TurnResult{
			Message: "まだ検索履歴がありません。まずは「仕事を探して」と話しかけてください。",
			Action:  ActionMessage,
		}, nil
	}
	return e.runSearch(ctx, session, *session.Memory.LastFilters)
}

// handleApply は応募対象を解決して応募する。対象の解決順序は
// 明示的なID → 直前の一覧への序数参照 → メッセージからの再検索。
// 応募は(求人, 求職者)ごとに冪等で、2回目以降は「応募済み」と報告する。
func (e *Engine) handleApply(ctx context.Context, session *model.ChatSession, account *model.Account, text string) (*TurnResult, error) {
	target, ok := resolveApplyTarget(text, session.LastShownJobIDs)
	if !ok {
		filter := extractFilters(text)
		if filter.IsEmpty() {
			return &TurnResult{
				Message: "どの求人に応募するか分かりませんでした。まず検索してから「1番に応募」のように教えてください。",
				Action:  ActionMessage,
			}, nil
		}
		jobs, err := e.jobs.Search(ctx, filter, 1)
		if err != nil {
			return nil, fmt.Errorf("求人の検索に失敗しました: %w", err)
		}
		if len(jobs) == 0 {
			return &TurnResult{
				Message: "条件に合う応募先が見つかりませんでした。",
				Action:  ActionMessage,
			}, nil
		}
		target = applyTarget{jobIDs: []string{jobs[0].ID}}
	}

	payload := &ApplyResultPayload{}
	for _, jobID := range target.jobIDs {
		job, err := e.jobs.FindByID(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("求人の取得に失敗しました: %w", err)
		}
		if job == nil || job.Status != model.JobStatusActive {
			return nil, model.NewJobNotFoundError(jobID)
		}

		inserted, err := e.applications.Create(ctx, &model.Application{
			ID:        uuid.NewString(),
			JobID:     job.ID,
			SeekerID:  account.ID,
			Status:    model.ApplicationStatusPending,
			AppliedAt: e.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("応募の作成に失敗しました: %w", err)
		}
		if inserted {
			payload.Applied = append(payload.Applied, job)
		} else {
			payload.AlreadyApplied = append(payload.AlreadyApplied, job)
		}
	}

	slog.Info("apply turn completed",
		slog.String("account_id", account.ID),
		slog.Int("applied", len(payload.Applied)),
		slog.Int("already_applied", len(payload.AlreadyApplied)),
	)
	return &TurnResult{
		Message: formatApplyResult(payload),
		Action:  ActionApplySuccess,
		Payload: payload,
	}, nil
}

// generalReply は雑談への応答をAIで生成する。ゲートウェイ障害時は
// 決定的な謝罪文へフォールバックし、会話を継続する。
func (e *Engine) generalReply(ctx context.Context, accountID, systemPrompt, text string) (*TurnResult, error) {
	raw, err := e.completeWithCredits(ctx, accountID, systemPrompt, text)
	if err != nil {
		if isPaymentErr(err) {
			return nil, err
		}
		return &TurnResult{Message: generalFallbackText, Action: ActionMessage}, nil
	}
	return &TurnResult{Message: strings.TrimSpace(raw), Action: ActionMessage}, nil
}

// formatApplyResult は応募結果の報告テキストを組み立てる。
func formatApplyResult(p *ApplyResultPayload) string {
	var parts []string
	if len(p.Applied) > 0 {
		titles := make([]string, len(p.Applied))
		for i, job := range p.Applied {
			titles[i] = "「" + job.Title + "」"
		}
		parts = append(parts, fmt.Sprintf("%sに応募しました！", strings.Join(titles, "、")))
	}
	for _, job := range p.AlreadyApplied {
		parts = append(parts, fmt.Sprintf("「%s」にはすでに応募済みです。", job.Title))
	}
	if len(parts) == 0 {
		return "応募できる求人がありませんでした。"
	}
	return strings.Join(parts, "\n")
}
