package model

import "time"

// MessageRole は会話メッセージの発話者を表す。
type MessageRole string

const (
	// MessageRoleUser は利用者の発話を示す。
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant はアシスタントの応答を示す。
	MessageRoleAssistant MessageRole = "assistant"
)

// ChatMessage は会話セッション内の1メッセージを表す。
// Actionは応答の種別（show_jobs等）、Payloadは応答に付随する構造化データ。
type ChatMessage struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Action    string      `json:"action,omitempty"`
	Payload   any         `json:"payload,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// PostingStep は求人作成ウィザードの1ステップを表す。
type PostingStep struct {
	Field    string `json:"field"`
	Question string `json:"question"`
	Hint     string `json:"hint,omitempty"`
}

// PostingFlow は求人企業の求人作成ウィザードの進行状態を表す。
// CurrentIndexは0..len(Steps)の範囲で単調増加し、len(Steps)に達すると
// 確認待ち状態になる。キャンセルまたは確定でフロー全体が破棄される。
type PostingFlow struct {
	Active       bool              `json:"active"`
	Steps        []PostingStep     `json:"steps"`
	CurrentIndex int               `json:"current_index"`
	Answers      map[string]string `json:"answers"`
}

// AwaitingConfirmation は全フィールドの回答が揃い確認待ちかどうかを返す。
func (f *PostingFlow) AwaitingConfirmation() bool {
	return f.Active && f.CurrentIndex >= len(f.Steps)
}

// CurrentStep は現在回答待ちのステップを返す。確認待ちの場合はnil。
func (f *PostingFlow) CurrentStep() *PostingStep {
	if !f.Active || f.CurrentIndex >= len(f.Steps) {
		return nil
	}
	return &f.Steps[f.CurrentIndex]
}

// SessionMemory はセッションをまたいで引き継ぐ利用者の嗜好を表す。
// 後続ターンの検索条件補完と序数参照の解決に使用する。
type SessionMemory struct {
	PreferredLocation string     `json:"preferred_location,omitempty"`
	PreferredCategory string     `json:"preferred_category,omitempty"`
	LastFilters       *JobFilter `json:"last_filters,omitempty"`
}

// ChatSession はアカウントごとの会話セッションを表す。
// アクティブなセッションはアカウントあたり1件（ストレージの部分ユニーク制約）。
// 「クリア」操作は非アクティブ化のみ行い、次のターンで新規セッションを遅延生成する。
type ChatSession struct {
	ID        string
	AccountID string
	Active    bool

	Messages        []ChatMessage `json:"messages"`
	LastShownJobIDs []string      `json:"last_shown_job_ids,omitempty"`
	PostingFlow     *PostingFlow  `json:"posting_flow,omitempty"`
	Memory          SessionMemory `json:"memory"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppendMessage は会話履歴にメッセージを追加する。
func (s *ChatSession) AppendMessage(msg ChatMessage) {
	s.Messages = append(s.Messages, msg)
}

// JobDraft はウィザードの回答から組み立てた求人の下書きを表す。
// 全フィールドのバリデーションとEntitlement予約の成功後にのみJobとして永続化される。
type JobDraft struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	JobType     string `json:"job_type"`
	Experience  string `json:"experience"`
	Description string `json:"description"`
}
