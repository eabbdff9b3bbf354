package model

import "time"

// JobStatus は求人の掲載状態を表す。
type JobStatus string

const (
	// JobStatusActive は応募受付中の求人を示す。
	JobStatusActive JobStatus = "active"
	// JobStatusFilled は採用決定済みの求人を示す。
	JobStatusFilled JobStatus = "filled"
	// JobStatusClosed は掲載終了した求人を示す。
	JobStatusClosed JobStatus = "closed"
)

// Job は掲載済みの求人を表す。
type Job struct {
	ID         string
	EmployerID string
	Title      string
	Category   string
	Location   string
	Salary     string
	JobType    string
	Experience string

	Description string

	Status            JobStatus
	ApplicationsCount int
	PostedAt          time.Time
}

// JobFilter は求人検索の条件を表す。ゼロ値のフィールドは条件に含めない。
// Keywordはタイトルと説明文に対する部分一致検索。
type JobFilter struct {
	Category    string
	Location    string
	JobType     string
	Experience  string
	Language    string
	Keyword     string
	SalaryFloor int
}

// WithoutLocation は勤務地条件のみを外したコピーを返す。
// 勤務地条件で0件だった検索の再試行に使用する。
func (f JobFilter) WithoutLocation() JobFilter {
	f.Location = ""
	return f
}

// IsEmpty はすべての条件が未指定かどうかを返す。
func (f JobFilter) IsEmpty() bool {
	return f == (JobFilter{})
}

// ApplicationStatus は応募の選考状態を表す。
type ApplicationStatus string

const (
	// ApplicationStatusPending は選考待ちの応募を示す。
	ApplicationStatusPending ApplicationStatus = "pending"
	// ApplicationStatusShortlisted は書類通過した応募を示す。
	ApplicationStatusShortlisted ApplicationStatus = "shortlisted"
	// ApplicationStatusRejected は不採用となった応募を示す。
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Application は求人への応募を表す。
// (JobID, SeekerID)の組はストレージのユニーク制約により一意。
type Application struct {
	ID          string
	JobID       string
	SeekerID    string
	CoverLetter string
	Status      ApplicationStatus
	AppliedAt   time.Time
}

// JobCategories は求人カテゴリの選択肢。ウィザードのバリデーションに使用する。
var JobCategories = []string{
	"接客・販売",
	"飲食",
	"配送・物流",
	"事務",
	"製造・軽作業",
	"清掃",
	"警備",
	"介護",
	"IT・エンジニア",
	"その他",
}

// JobTypes は雇用形態の選択肢。
var JobTypes = []string{"フルタイム", "パートタイム"}

// ExperienceLevels は必要経験の選択肢。
var ExperienceLevels = []string{"未経験可", "1年以上", "3年以上", "5年以上"}
