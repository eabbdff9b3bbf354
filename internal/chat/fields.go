package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/jobnavi/internal/model"
)

// フィールド別の決定的ノーマライザ。AIによる抽出が使えない場合でも
// ウィザードが単独で完走できるよう、すべて純粋関数として実装する。

const (
	maxLocationLength    = 100
	maxSalaryLength      = 100
	minDescriptionLength = 10
	maxDescriptionLength = 2000
)

var salaryNumberPattern = regexp.MustCompile(`(\d[\d,]*)`)

// categoryAliases はカテゴリ名そのものを含まない言い回しの対応表。
var categoryAliases = map[string]string{
	"カフェ":     "飲食",
	"レストラン":   "飲食",
	"居酒屋":     "飲食",
	"キッチン":    "飲食",
	"ホール":     "飲食",
	"販売":      "接客・販売",
	"接客":      "接客・販売",
	"レジ":      "接客・販売",
	"アパレル":    "接客・販売",
	"ドライバー":   "配送・物流",
	"配達":      "配送・物流",
	"倉庫":      "配送・物流",
	"配送":      "配送・物流",
	"オフィス":    "事務",
	"経理":      "事務",
	"受付":      "事務",
	"工場":      "製造・軽作業",
	"製造":      "製造・軽作業",
	"軽作業":     "製造・軽作業",
	"ピッキング":   "製造・軽作業",
	"ハウスキーパー": "清掃",
	"掃除":      "清掃",
	"ガードマン":   "警備",
	"ヘルパー":    "介護",
	"プログラマー":  "IT・エンジニア",
	"エンジニア":   "IT・エンジニア",
	"開発":      "IT・エンジニア",
}

// normalizeCategory は入力を定義済みカテゴリのいずれかへ正規化する。
func normalizeCategory(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("カテゴリが入力されていません")
	}

	for _, c := range model.JobCategories {
		if input == c || strings.Contains(input, c) {
			return c, nil
		}
	}
	for alias, c := range categoryAliases {
		if strings.Contains(input, alias) {
			return c, nil
		}
	}
	return "", fmt.Errorf("「%s」に対応するカテゴリが見つかりません", input)
}

// normalizeLocation は勤務地の表記を正規化する。
func normalizeLocation(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("勤務地が入力されていません")
	}
	if utf8.RuneCountInString(input) > maxLocationLength {
		return "", fmt.Errorf("勤務地が長すぎます（%d文字以内）", maxLocationLength)
	}
	return input, nil
}

// normalizeSalary は給与の表記を検証する。数値を含まない入力は拒否する。
func normalizeSalary(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("給与が入力されていません")
	}
	if utf8.RuneCountInString(input) > maxSalaryLength {
		return "", fmt.Errorf("給与の表記が長すぎます（%d文字以内）", maxSalaryLength)
	}
	if !salaryNumberPattern.MatchString(input) {
		return "", fmt.Errorf("金額が読み取れません")
	}
	return input, nil
}

// normalizeJobType は雇用形態を定義済みの選択肢へ正規化する。
func normalizeJobType(input string) (string, error) {
	input = strings.TrimSpace(input)
	lower := strings.ToLower(input)

	switch {
	case strings.Contains(input, "フルタイム"),
		strings.Contains(input, "正社員"),
		strings.Contains(lower, "full"):
		return "フルタイム", nil
	case strings.Contains(input, "パート"),
		strings.Contains(input, "アルバイト"),
		strings.Contains(input, "バイト"),
		strings.Contains(lower, "part"):
		return "パートタイム", nil
	}
	return "", fmt.Errorf("「%s」を雇用形態として解釈できません", input)
}

// normalizeExperience は必要経験を定義済みの選択肢へ正規化する。
func normalizeExperience(input string) (string, error) {
	input = strings.TrimSpace(input)

	switch {
	case strings.Contains(input, "未経験"),
		strings.Contains(input, "不問"),
		strings.Contains(input, "なし"),
		strings.Contains(input, "無し"):
		return "未経験可", nil
	case strings.Contains(input, "5年"), strings.Contains(input, "５年"):
		return "5年以上", nil
	case strings.Contains(input, "3年"), strings.Contains(input, "３年"):
		return "3年以上", nil
	case strings.Contains(input, "1年"), strings.Contains(input, "１年"):
		return "1年以上", nil
	}
	for _, level := range model.ExperienceLevels {
		if strings.Contains(input, level) {
			return level, nil
		}
	}
	return "", fmt.Errorf("「%s」を必要経験として解釈できません", input)
}

// normalizeDescription は仕事内容の説明文を検証する。
func normalizeDescription(input string) (string, error) {
	input = strings.TrimSpace(input)
	n := utf8.RuneCountInString(input)
	if n < minDescriptionLength {
		return "", fmt.Errorf("仕事内容が短すぎます（%d文字以上）", minDescriptionLength)
	}
	if n > maxDescriptionLength {
		return "", fmt.Errorf("仕事内容が長すぎます（%d文字以内）", maxDescriptionLength)
	}
	return input, nil
}

// fieldNormalizers はウィザードのフィールド名と対応するノーマライザの対応表。
var fieldNormalizers = map[string]func(string) (string, error){
	"category":    normalizeCategory,
	"location":    normalizeLocation,
	"salary":      normalizeSalary,
	"job_type":    normalizeJobType,
	"experience":  normalizeExperience,
	"description": normalizeDescription,
}

// buildDraft はウィザードの回答から求人の下書きを組み立てる。
// タイトルはカテゴリと勤務地から導出する。
func buildDraft(answers map[string]string) model.JobDraft {
	return model.JobDraft{
		Title:       fmt.Sprintf("【%s】%sスタッフ募集", answers["location"], answers["category"]),
		Category:    answers["category"],
		Location:    answers["location"],
		Salary:      answers["salary"],
		JobType:     answers["job_type"],
		Experience:  answers["experience"],
		Description: answers["description"],
	}
}

// validateDraft は確定前の下書き全体を検証し、不正なフィールド名を返す。
func validateDraft(d model.JobDraft) []string {
	var invalid []string

	if !containsString(model.JobCategories, d.Category) {
		invalid = append(invalid, "category")
	}
	if _, err := normalizeLocation(d.Location); err != nil {
		invalid = append(invalid, "location")
	}
	if _, err := normalizeSalary(d.Salary); err != nil {
		invalid = append(invalid, "salary")
	}
	if !containsString(model.JobTypes, d.JobType) {
		invalid = append(invalid, "job_type")
	}
	if !containsString(model.ExperienceLevels, d.Experience) {
		invalid = append(invalid, "experience")
	}
	if _, err := normalizeDescription(d.Description); err != nil {
		invalid = append(invalid, "description")
	}

	return invalid
}

// parseSalaryFloor は給与表記から下限判定に使う最初の数値を取り出す。
// 数値が無い場合は0を返す。
func parseSalaryFloor(input string) int {
	m := salaryNumberPattern.FindString(input)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
