// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/jobnavi/internal/model"
)

// AccountRepository はアカウントデータの永続化インターフェース。
// 残高の変更メソッドはすべて単一の条件付きUPDATE文で実装されることを前提とする。
// アプリケーション側でのread-modify-writeは残高不変条件（>= 0）を破るため禁止。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// Create はアカウントを作成する。
	Create(ctx context.Context, account *model.Account) error

	// DecrementTokens は指定プールの残高が十分な場合のみアトミックに減算する。
	// 減算できた場合はtrueを返す。残高不足の場合はfalseを返し、減算は行われない。
	DecrementTokens(ctx context.Context, id string, pool model.TokenPool, tokens int64) (bool, error)

	// IncrementTokens は指定プールの残高を無条件に加算する。ロールバック用。
	IncrementTokens(ctx context.Context, id string, pool model.TokenPool, tokens int64) error

	// TokenBalances は現在のAIトークン残高（無料・購入済み）を返す。
	TokenBalances(ctx context.Context, id string) (free, paid int64, err error)

	// DecrementJobSlot は指定プールの掲載枠が残っている場合のみアトミックに1減算する。
	// 減算できた場合はtrueを返す。
	DecrementJobSlot(ctx context.Context, id string, source model.JobSlotSource) (bool, error)

	// IncrementJobSlot は指定プールの掲載枠を1加算する。ロールバック用。
	// sourceがsubscriptionの場合は何もしない。
	IncrementJobSlot(ctx context.Context, id string, source model.JobSlotSource) error

	// JobSlotBalances は現在の掲載枠残数（無料・購入済み）を返す。
	JobSlotBalances(ctx context.Context, id string) (free, paid int, err error)

	// AddPaidJobSlots は購入済み掲載枠をn加算する。決済完了時のクレジット付与用。
	AddPaidJobSlots(ctx context.Context, id string, n int) error

	// CapFreeJobSlots は無料掲載枠をceilingに切り詰める。
	// ceiling以下の場合は何もしない冪等な操作。古いレコードの過大な残数を補正する。
	CapFreeJobSlots(ctx context.Context, id string, ceiling int) error

	// ExtendSubscription はサブスクリプション期限を延長する。
	// 新しい期限は GREATEST(now, 現在の期限) + days日（積み増し。リセットではない）。
	ExtendSubscription(ctx context.Context, id, plan string, days int) error
}

// JobRepository は求人データの永続化インターフェース。
type JobRepository interface {
	// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Job, error)

	// Create は求人を作成する。
	Create(ctx context.Context, job *model.Job) error

	// Search はフィルタに合致するactiveな求人をposted_at降順で返す。
	Search(ctx context.Context, filter model.JobFilter, limit int) ([]*model.Job, error)

	// HasRecentDuplicate は同一の(employer, title, location)の求人が
	// within以内に作成されているかを返す。二重投稿の防止に使用する。
	HasRecentDuplicate(ctx context.Context, employerID, title, location string, within time.Duration) (bool, error)
}

// ApplicationRepository は応募データの永続化インターフェース。
type ApplicationRepository interface {
	// Create は応募を作成する。(job_id, seeker_id)が既に存在する場合は
	// 何も挿入せずfalseを返す（冪等）。挿入された場合のみ該当求人の
	// applications_countを同一トランザクションで+1する。
	Create(ctx context.Context, app *model.Application) (bool, error)

	// ListBySeeker は求職者の応募一覧をapplied_at降順で返す。
	ListBySeeker(ctx context.Context, seekerID string, limit int) ([]*model.Application, error)
}

// ChatSessionRepository は会話セッションの永続化インターフェース。
// セッションは1ターン内でread-mutate-saveされる。同一アカウントの同時ターンは
// last-write-winsを許容する（楽観ロックが必要になった場合はstateにversion列を追加する）。
type ChatSessionRepository interface {
	// FindActiveByAccount はアカウントのアクティブなセッションを取得する。
	// 存在しない場合はnilを返す。
	FindActiveByAccount(ctx context.Context, accountID string) (*model.ChatSession, error)

	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.ChatSession) error

	// Save はセッションのstateとupdated_atを上書き保存する。
	Save(ctx context.Context, session *model.ChatSession) error

	// Deactivate はアカウントのアクティブなセッションを非アクティブ化する。
	// 次のターンで新規セッションが遅延生成される。
	Deactivate(ctx context.Context, accountID string) error

	// DeleteInactiveBefore は指定時刻より前に更新された非アクティブな
	// セッションを削除し、削除件数を返す。クリーンアップジョブ用。
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
