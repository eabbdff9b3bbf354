package chat

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/hitoshi/jobnavi/internal/gateway"
)

// intent は求職者メッセージの分類結果を表す。
type intent string

const (
	intentSearch  intent = "search"
	intentApply   intent = "apply"
	intentSimilar intent = "similar"
	intentGeneral intent = "general"
)

// キーワード一致によるゼロコスト分類の対応表。
// AIフォールバックより先に必ずこちらを試す。
var (
	searchKeywords = []string{
		"探して", "探したい", "探す", "検索", "求人", "仕事ある", "仕事を見",
		"仕事ない", "働きたい", "募集して", "search", "find a job",
	}
	applyKeywords = []string{
		"応募", "申し込", "エントリー", "apply",
	}
	similarKeywords = []string{
		"似た", "似ている", "同じような", "他の求人", "他にも", "ほかに", "similar",
	}
	cancelKeywords = []string{
		"キャンセル", "やめる", "やめます", "中止", "cancel",
	}
	clearKeywords = []string{
		"クリア", "リセット", "履歴を消", "clear", "reset",
	}
	greetingKeywords = []string{
		"こんにちは", "こんばんは", "おはよう", "はじめまして",
	}
	postJobKeywords = []string{
		"求人を出", "求人を作", "求人作成", "募集を出", "募集したい", "掲載したい",
		"人を雇", "採用したい", "post a job",
	}
	affirmativeKeywords = []string{
		"はい", "お願いします", "確定", "投稿して", "それで",
	}
	negativeKeywords = []string{
		"いいえ", "いえ", "やめ", "破棄",
	}
)

func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func isCancel(text string) bool { return matchesAny(text, cancelKeywords) }
func isClear(text string) bool  { return matchesAny(text, clearKeywords) }

func isGreeting(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "hello", "hi", "hey":
		return true
	}
	return matchesAny(text, greetingKeywords)
}
func isPostJob(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/post") || matchesAny(text, postJobKeywords)
}

// isAffirmative は確認待ち状態での肯定の返事を判定する。
// 英語の短い返事は部分一致だと誤検知するため完全一致で判定する。
func isAffirmative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "ok", "yes", "y":
		return true
	}
	return matchesAny(text, affirmativeKeywords)
}

// isNegative は確認待ち状態での否定の返事を判定する。
func isNegative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "no", "n":
		return true
	}
	return matchesAny(text, negativeKeywords)
}

// classifyIntent はキーワード一致で求職者メッセージを分類する。
// 確信を持って分類できない場合はokがfalseになり、AIフォールバックへ回す。
func classifyIntent(text string) (intent, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "/search") || strings.HasPrefix(trimmed, "/jobs") {
		return intentSearch, true
	}
	if strings.HasPrefix(trimmed, "/apply") {
		return intentApply, true
	}

	// applyはsearchの語を含むことが多いため先に判定する
	if matchesAny(text, applyKeywords) {
		return intentApply, true
	}
	if matchesAny(text, similarKeywords) {
		return intentSimilar, true
	}
	if matchesAny(text, searchKeywords) {
		return intentSearch, true
	}
	return intentGeneral, false
}

const intentSystemPrompt = `あなたは求人プラットフォームのアシスタントです。
ユーザーのメッセージを次のいずれかに分類し、JSONのみで答えてください。
- "search": 仕事・求人を探している
- "apply": 求人への応募を希望している
- "similar": 直前に見た求人と似たものを求めている
- "general": それ以外の雑談・質問
出力形式: {"intent": "<分類>"}`

// parseIntentResponse はAI分類フォールバックの応答を解釈する。
// 解釈できない応答はgeneralとして扱う。
func parseIntentResponse(raw string) intent {
	var parsed struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(gateway.StripCodeFence(raw)), &parsed); err != nil {
		slog.Debug("intent classification returned unparsable JSON",
			slog.String("raw", raw),
		)
		return intentGeneral
	}

	switch intent(parsed.Intent) {
	case intentSearch, intentApply, intentSimilar:
		return intent(parsed.Intent)
	default:
		return intentGeneral
	}
}
