// Package entitlement は求人掲載枠の予約を管理する。
// 枠はサブスクリプション→無料枠→購入済み枠の優先順位で消費される。
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hitoshi/jobnavi/internal/model"
	"github.com/hitoshi/jobnavi/internal/repository"
)

// Reservoir は掲載枠の予約・返却・付与を提供する。
type Reservoir struct {
	accountRepo repository.AccountRepository

	// 旧仕様で付与された過大な無料枠をここまで切り詰める
	freeSlotCeiling int

	now func() time.Time
}

// NewReservoir はReservoirを生成する。
func NewReservoir(accountRepo repository.AccountRepository, freeSlotCeiling int) *Reservoir {
	return &Reservoir{
		accountRepo:     accountRepo,
		freeSlotCeiling: freeSlotCeiling,
		now:             time.Now,
	}
}

// SlotReservation は成立した掲載枠の予約。投稿失敗時の返却に使う。
// Releaseは何度呼んでも1回しか返却されない。
type SlotReservation struct {
	AccountID string
	Source    model.JobSlotSource

	released atomic.Bool
}

// Reserve は掲載枠を1つ予約する。有効なサブスクリプションがあれば
// 枠を消費せずに成立する。なければ無料枠→購入済み枠の順で
// アトミックに減算を試み、どちらも無ければNoJobQuotaErrorを返す。
func (r *Reservoir) Reserve(ctx context.Context, accountID string) (*SlotReservation, error) {
	account, err := r.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError(accountID)
	}

	if account.HasActiveSubscription(r.now()) {
		return &SlotReservation{AccountID: accountID, Source: model.JobSlotSourceSubscription}, nil
	}

	// 旧データの過大な無料枠を先に補正してから消費する
	if err := r.accountRepo.CapFreeJobSlots(ctx, accountID, r.freeSlotCeiling); err != nil {
		return nil, fmt.Errorf("無料掲載枠の補正に失敗しました: %w", err)
	}

	for _, source := range []model.JobSlotSource{model.JobSlotSourceFree, model.JobSlotSourcePaid} {
		ok, err := r.accountRepo.DecrementJobSlot(ctx, accountID, source)
		if err != nil {
			return nil, fmt.Errorf("掲載枠の予約に失敗しました: %w", err)
		}
		if ok {
			return &SlotReservation{AccountID: accountID, Source: source}, nil
		}
	}

	free, paid, err := r.accountRepo.JobSlotBalances(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("掲載枠残数の取得に失敗しました: %w", err)
	}
	return nil, &model.NoJobQuotaError{FreeSlots: free, PaidSlots: paid}
}

// Release は予約した掲載枠を返却する。サブスクリプション由来の予約は
// 枠を消費していないため何もしない。nilと返却済みの予約にも何もしない（冪等）。
func (r *Reservoir) Release(ctx context.Context, res *SlotReservation) error {
	if res == nil {
		return nil
	}
	if !res.released.CompareAndSwap(false, true) {
		return nil
	}
	if res.Source == model.JobSlotSourceSubscription {
		return nil
	}

	if err := r.accountRepo.IncrementJobSlot(ctx, res.AccountID, res.Source); err != nil {
		res.released.Store(false)
		return fmt.Errorf("掲載枠の返却に失敗しました: %w", err)
	}

	slog.Info("job slot reservation released",
		slog.String("account_id", res.AccountID),
		slog.String("source", string(res.Source)),
	)
	return nil
}

// RenewSubscription はサブスクリプション期限を延長する。
// 期限は現在の期限（過去なら現在時刻）からdays日の積み増しで、リセットされない。
func (r *Reservoir) RenewSubscription(ctx context.Context, accountID, plan string, days int) error {
	if days <= 0 {
		return fmt.Errorf("延長日数が不正です: %d", days)
	}
	if err := r.accountRepo.ExtendSubscription(ctx, accountID, plan, days); err != nil {
		return fmt.Errorf("サブスクリプションの延長に失敗しました: %w", err)
	}
	return nil
}

// CreditJobSlots は購入済み掲載枠をn加算する。決済完了時に呼ばれる。
func (r *Reservoir) CreditJobSlots(ctx context.Context, accountID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("付与する掲載枠数が不正です: %d", n)
	}
	if err := r.accountRepo.AddPaidJobSlots(ctx, accountID, n); err != nil {
		return fmt.Errorf("掲載枠の付与に失敗しました: %w", err)
	}
	return nil
}
