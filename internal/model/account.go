// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアカウントの種別を表す。
type Role string

const (
	// RoleSeeker は求職者アカウントを示す。
	RoleSeeker Role = "seeker"
	// RoleEmployer は求人企業アカウントを示す。
	RoleEmployer Role = "employer"
)

// TokenPool はAIトークン残高のプール種別を表す。
type TokenPool string

const (
	// TokenPoolFree は無料付与トークンのプール。
	TokenPoolFree TokenPool = "free"
	// TokenPoolPaid は購入済みトークンのプール。
	TokenPoolPaid TokenPool = "paid"
)

// JobSlotSource は求人掲載枠の引き当て元を表す。
type JobSlotSource string

const (
	// JobSlotSourceSubscription はサブスクリプション契約による掲載。残数は減算しない。
	JobSlotSourceSubscription JobSlotSource = "subscription"
	// JobSlotSourceFree は無料掲載枠による掲載。
	JobSlotSourceFree JobSlotSource = "free"
	// JobSlotSourcePaid は購入済み掲載枠による掲載。
	JobSlotSourcePaid JobSlotSource = "paid"
)

// Account はプラットフォーム利用者（求職者または求人企業）を表す。
// 残高フィールドはすべて0以上を不変条件とし、変更はストレージ層の
// 条件付きアトミック更新のみで行う。アプリケーション側でread-modify-writeしない。
type Account struct {
	ID           string
	Phone        string
	Name         string
	Role         Role
	BusinessName string
	Location     string
	Languages    []string
	Skills       []string

	// AIトークン残高（消費は無料プール優先）
	AIFreeTokens int64
	AIPaidTokens int64

	// 求人掲載枠の残数
	FreeJobSlots int
	PaidJobSlots int

	// サブスクリプション。未契約の場合はPlanが空でExpiresAtがnil。
	SubscriptionPlan      string
	SubscriptionExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasActiveSubscription は指定時刻において有効なサブスクリプション契約が
// あるかどうかを返す。
func (a *Account) HasActiveSubscription(now time.Time) bool {
	return a.SubscriptionPlan != "" &&
		a.SubscriptionExpiresAt != nil &&
		a.SubscriptionExpiresAt.After(now)
}
