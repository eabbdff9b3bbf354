package chat

import (
	"fmt"
	"strings"

	"github.com/hitoshi/jobnavi/internal/model"
)

// 決定的な応答テキスト。AIゲートウェイが使えない場合でも
// 会話が完結するよう、すべての応答にテンプレートを用意する。

const (
	greetingSeekerText   = "こんにちは！お仕事探しをお手伝いします。「渋谷でカフェの仕事を探して」のように話しかけてください。"
	greetingEmployerText = "こんにちは！求人の掲載をお手伝いします。「求人を出したい」と話しかけると作成を開始します。"
	clearedText          = "会話の履歴をクリアしました。新しい会話を始めましょう。"
	generalFallbackText  = "申し訳ありません、うまく聞き取れませんでした。お仕事探しのことなら「仕事を探して」と話しかけてください。"
	noResultsText        = "条件に合う求人が見つかりませんでした。条件を変えてもう一度お試しください。"
)

// newPostingFlow は求人作成ウィザードの初期状態を生成する。
// 質問文は決定的で、フィールドの順序は固定。
func newPostingFlow() *model.PostingFlow {
	return &model.PostingFlow{
		Active: true,
		Steps: []model.PostingStep{
			{
				Field:    "category",
				Question: "どんな職種の募集ですか？",
				Hint:     "例: 飲食、接客・販売、配送・物流、事務、清掃 など",
			},
			{
				Field:    "location",
				Question: "勤務地はどこですか？",
				Hint:     "例: 渋谷駅徒歩5分、横浜市西区 など",
			},
			{
				Field:    "salary",
				Question: "給与はいくらですか？",
				Hint:     "例: 時給1,200円、月給25万円 など",
			},
			{
				Field:    "job_type",
				Question: "雇用形態を教えてください。",
				Hint:     "フルタイム / パートタイム",
			},
			{
				Field:    "experience",
				Question: "必要な経験はありますか？",
				Hint:     "未経験可 / 1年以上 / 3年以上 / 5年以上",
			},
			{
				Field:    "description",
				Question: "仕事内容を詳しく教えてください。",
				Hint:     "業務内容、シフト、待遇などを10文字以上で",
			},
		},
		CurrentIndex: 0,
		Answers:      make(map[string]string),
	}
}

// formatJobList は検索結果の一覧テキストを組み立てる。
func formatJobList(jobs []*model.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d件の求人が見つかりました。\n", len(jobs))
	for i, job := range jobs {
		fmt.Fprintf(&b, "\n%d. %s\n   %s / %s / %s / %s\n",
			i+1, job.Title, job.Category, job.Location, job.Salary, job.JobType)
	}
	b.WriteString("\n応募するには「1番に応募」のように番号で教えてください。")
	return b.String()
}

// formatDraftSummary は確認待ち状態で提示する下書きの要約を組み立てる。
func formatDraftSummary(d model.JobDraft) string {
	var b strings.Builder
	b.WriteString("以下の内容で求人を作成します。よろしいですか？（はい / いいえ）\n")
	fmt.Fprintf(&b, "\nタイトル: %s\n", d.Title)
	fmt.Fprintf(&b, "職種: %s\n", d.Category)
	fmt.Fprintf(&b, "勤務地: %s\n", d.Location)
	fmt.Fprintf(&b, "給与: %s\n", d.Salary)
	fmt.Fprintf(&b, "雇用形態: %s\n", d.JobType)
	fmt.Fprintf(&b, "必要経験: %s\n", d.Experience)
	fmt.Fprintf(&b, "仕事内容: %s\n", d.Description)
	return b.String()
}

// formatStepQuestion はウィザードの次の質問テキストを組み立てる。
func formatStepQuestion(step *model.PostingStep) string {
	if step.Hint == "" {
		return step.Question
	}
	return fmt.Sprintf("%s\n（%s）", step.Question, step.Hint)
}

// formatInvalidAnswer は回答を解釈できなかった場合の再質問テキストを組み立てる。
func formatInvalidAnswer(step *model.PostingStep, reason string) string {
	return fmt.Sprintf("%s\nもう一度お願いします。%s", reason, formatStepQuestion(step))
}
