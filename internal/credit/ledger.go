package credit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hitoshi/jobnavi/internal/model"
	"github.com/hitoshi/jobnavi/internal/repository"
)

// Ledger はアカウント別のトークン残高を管理する台帳。
// 消費は必ず無料プール→有料プールの順で試みる。
type Ledger struct {
	accountRepo repository.AccountRepository
}

// NewLedger はLedgerを生成する。
func NewLedger(accountRepo repository.AccountRepository) *Ledger {
	return &Ledger{accountRepo: accountRepo}
}

// Reservation は成立した予約を表す。失敗時のロールバックに使う。
// Releaseは何度呼んでも1回しか返金されない。
type Reservation struct {
	AccountID string
	Pool      model.TokenPool
	Amount    int64

	released atomic.Bool
}

// Reserve は推定コスト分のトークンをアカウントの残高から差し引く。
// 無料プールに足りなければ有料プールを試み、どちらも不足なら
// InsufficientCreditsErrorを返す。差し引きはストレージの条件付き
// アトミック更新で行われ、残高が負になることはない。
func (l *Ledger) Reserve(ctx context.Context, accountID string, cost int64) (*Reservation, error) {
	if cost < 1 {
		cost = 1
	}

	for _, pool := range []model.TokenPool{model.TokenPoolFree, model.TokenPoolPaid} {
		ok, err := l.accountRepo.DecrementTokens(ctx, accountID, pool, cost)
		if err != nil {
			return nil, fmt.Errorf("トークンの予約に失敗しました: %w", err)
		}
		if ok {
			return &Reservation{AccountID: accountID, Pool: pool, Amount: cost}, nil
		}
	}

	free, paid, err := l.accountRepo.TokenBalances(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("トークン残高の取得に失敗しました: %w", err)
	}
	return nil, &model.InsufficientCreditsError{FreeBalance: free, PaidBalance: paid}
}

// Release は予約したトークンを差し引いたプールへ返金する。
// nilの予約と返金済みの予約には何もしない（冪等）。
func (l *Ledger) Release(ctx context.Context, res *Reservation) error {
	if res == nil {
		return nil
	}
	if !res.released.CompareAndSwap(false, true) {
		return nil
	}

	if err := l.accountRepo.IncrementTokens(ctx, res.AccountID, res.Pool, res.Amount); err != nil {
		// 返金に失敗した場合は再試行できるようフラグを戻す
		res.released.Store(false)
		return fmt.Errorf("トークンの返金に失敗しました: %w", err)
	}

	slog.Info("token reservation released",
		slog.String("account_id", res.AccountID),
		slog.String("pool", string(res.Pool)),
		slog.Int64("amount", res.Amount),
	)
	return nil
}

// Grant は指定プールへトークンを加算する。購入やプラン付与で使う。
func (l *Ledger) Grant(ctx context.Context, accountID string, pool model.TokenPool, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("付与するトークン数が不正です: %d", amount)
	}
	if err := l.accountRepo.IncrementTokens(ctx, accountID, pool, amount); err != nil {
		return fmt.Errorf("トークンの付与に失敗しました: %w", err)
	}
	return nil
}
