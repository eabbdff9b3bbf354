package chat

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/hitoshi/jobnavi/internal/gateway"
	"github.com/hitoshi/jobnavi/internal/model"
)

// 検索条件の抽出。スラッシュコマンドはゼロコスト、自由文は
// 決定的な抽出を基本にAI抽出で補強する。

var (
	ordinalPattern  = regexp.MustCompile(`([0-9０-９]+)\s*(?:番目|番|つ目|件目)`)
	leadingDigits   = regexp.MustCompile(`^[0-9]+$`)
	jobIDPattern    = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	locationPattern = regexp.MustCompile(`([^\s、。]{2,10})(?:で働|で仕事|での仕事|周辺|付近|エリア)`)
	hourlyPattern   = regexp.MustCompile(`時給\s*([0-9,]+)\s*円?\s*(?:以上)?`)
)

// parseSlashSearch は /search key=value 形式のショートカットを解釈する。
// 例: /search category=飲食 location=渋谷 salary=1200
func parseSlashSearch(text string) (model.JobFilter, bool) {
	trimmed := strings.TrimSpace(text)
	var rest string
	switch {
	case strings.HasPrefix(trimmed, "/search"):
		rest = strings.TrimPrefix(trimmed, "/search")
	case strings.HasPrefix(trimmed, "/jobs"):
		rest = strings.TrimPrefix(trimmed, "/jobs")
	default:
		return model.JobFilter{}, false
	}

	var filter model.JobFilter
	for _, token := range strings.Fields(rest) {
		key, value, found := strings.Cut(token, "=")
		if !found {
			// key=value形式でないトークンはキーワード扱い
			if filter.Keyword == "" {
				filter.Keyword = token
			}
			continue
		}
		switch key {
		case "category":
			filter.Category = value
		case "location":
			filter.Location = value
		case "type", "job_type":
			filter.JobType = value
		case "experience":
			filter.Experience = value
		case "language":
			filter.Language = value
		case "salary", "min_salary":
			if n, err := strconv.Atoi(strings.ReplaceAll(value, ",", "")); err == nil {
				filter.SalaryFloor = n
			}
		case "keyword", "q":
			filter.Keyword = value
		}
	}
	return filter, true
}

// extractFilters は自由文から決定的に検索条件を抽出する。
// AI抽出が使えない場合のフォールバックでもある。
func extractFilters(text string) model.JobFilter {
	var filter model.JobFilter

	if category, err := normalizeCategory(text); err == nil {
		filter.Category = category
	}
	if m := locationPattern.FindStringSubmatch(text); m != nil {
		filter.Location = m[1]
	}
	if m := hourlyPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			filter.SalaryFloor = n
		}
	}
	if jobType, err := normalizeJobType(text); err == nil {
		filter.JobType = jobType
	}
	if strings.Contains(text, "未経験") {
		filter.Experience = "未経験可"
	}

	return filter
}

const filterSystemPrompt = `あなたは求人プラットフォームの検索アシスタントです。
ユーザーのメッセージから検索条件を抽出し、JSONのみで答えてください。
不明なフィールドはnullまたは省略してください。値を推測で補わないでください。
出力形式: {"category": "...", "location": "...", "job_type": "...",
"experience": "...", "language": "...", "keyword": "...", "salary_floor": 0}
categoryの選択肢: 接客・販売, 飲食, 配送・物流, 事務, 製造・軽作業, 清掃, 警備, 介護, IT・エンジニア, その他
job_typeの選択肢: フルタイム, パートタイム`

// parseFilterResponse はAI抽出の応答を検索条件へ変換する。
// 解釈できない応答の場合はokがfalseになる。
func parseFilterResponse(raw string) (model.JobFilter, bool) {
	var parsed struct {
		Category    string `json:"category"`
		Location    string `json:"location"`
		JobType     string `json:"job_type"`
		Experience  string `json:"experience"`
		Language    string `json:"language"`
		Keyword     string `json:"keyword"`
		SalaryFloor int    `json:"salary_floor"`
	}
	if err := json.Unmarshal([]byte(gateway.StripCodeFence(raw)), &parsed); err != nil {
		slog.Debug("filter extraction returned unparsable JSON",
			slog.String("raw", raw),
		)
		return model.JobFilter{}, false
	}

	filter := model.JobFilter{
		Location:    strings.TrimSpace(parsed.Location),
		Language:    strings.TrimSpace(parsed.Language),
		Keyword:     strings.TrimSpace(parsed.Keyword),
		SalaryFloor: parsed.SalaryFloor,
	}
	// 選択肢に無い値はAIの幻覚として捨て、条件を勝手に広げも狭めもしない
	if containsString(model.JobCategories, parsed.Category) {
		filter.Category = parsed.Category
	}
	if containsString(model.JobTypes, parsed.JobType) {
		filter.JobType = parsed.JobType
	}
	if containsString(model.ExperienceLevels, parsed.Experience) {
		filter.Experience = parsed.Experience
	}
	return filter, true
}

// applyTarget は応募対象の解決結果を表す。
type applyTarget struct {
	jobIDs []string
}

// resolveApplyTarget は応募対象を次の優先順位で解決する:
// 明示的なID → 直前に提示した一覧への序数・「全部」参照 → なし（呼び出し元が再検索）。
func resolveApplyTarget(text string, lastShown []string) (applyTarget, bool) {
	if id := jobIDPattern.FindString(strings.ToLower(text)); id != "" {
		return applyTarget{jobIDs: []string{id}}, true
	}

	if len(lastShown) > 0 {
		if strings.Contains(text, "全部") || strings.Contains(text, "すべて") ||
			strings.Contains(text, "全て") || strings.Contains(strings.ToLower(text), "all") {
			return applyTarget{jobIDs: lastShown}, true
		}
		if idx, ok := parseOrdinal(text); ok {
			if idx >= 1 && idx <= len(lastShown) {
				return applyTarget{jobIDs: []string{lastShown[idx-1]}}, true
			}
			return applyTarget{}, false
		}
		if strings.Contains(text, "最初") || strings.Contains(text, "一番上") {
			return applyTarget{jobIDs: []string{lastShown[0]}}, true
		}
	}
	return applyTarget{}, false
}

// parseOrdinal は「2番目」「３つ目」や裸の数字から1始まりの序数を取り出す。
func parseOrdinal(text string) (int, bool) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "/apply"))
	if leadingDigits.MatchString(trimmed) {
		n, err := strconv.Atoi(trimmed)
		return n, err == nil
	}

	m := ordinalPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(normalizeDigits(m[1]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// normalizeDigits は全角数字を半角へ変換する。
func normalizeDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '０' && r <= '９' {
			r = r - '０' + '0'
		}
		b.WriteRune(r)
	}
	return b.String()
}
