// Package budget はAIトークン消費の日次上限を管理する。
// カウンタはプロセス内メモリに保持され、日付（UTC）単位でリセットされる。
// 残高の台帳とは独立したサーキットブレーカーとして機能する。
package budget

import (
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/jobnavi/internal/model"
)

// 非当日キーの掃除を始めるマップサイズの閾値
const pruneThreshold = 10000

// Limiter は日次のトークン消費上限を強制する。
// ユーザー別上限とプロセス全体の上限を持ち、どちらかを超える
// 消費の申告はBudgetExceededErrorで拒否される。
type Limiter struct {
	mu            sync.Mutex
	userCounters  map[string]int64 // key: accountID + "|" + YYYY-MM-DD
	globalCounter map[string]int64 // key: YYYY-MM-DD

	userDailyLimit   int64
	globalDailyLimit int64
	disabled         bool

	now func() time.Time
}

// NewLimiter はLimiterを生成する。disabledがtrueの場合、Checkは常に成功する。
func NewLimiter(userDailyLimit, globalDailyLimit int64, disabled bool) *Limiter {
	return &Limiter{
		userCounters:     make(map[string]int64),
		globalCounter:    make(map[string]int64),
		userDailyLimit:   userDailyLimit,
		globalDailyLimit: globalDailyLimit,
		disabled:         disabled,
		now:              time.Now,
	}
}

// Check は消費予定のトークン数を当日のカウンタへ加算する。
// ユーザー別・全体のいずれかの上限を超える場合はカウンタを変更せずに
// BudgetExceededErrorを返す。両方の判定と加算は単一のロック内で行われる。
func (l *Limiter) Check(accountID string, tokens int64) error {
	if l.disabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	day := l.now().UTC().Format("2006-01-02")
	userKey := accountID + "|" + day

	if l.userCounters[userKey]+tokens > l.userDailyLimit {
		return &model.BudgetExceededError{Scope: model.BudgetScopeUserDaily}
	}
	if l.globalCounter[day]+tokens > l.globalDailyLimit {
		return &model.BudgetExceededError{Scope: model.BudgetScopeGlobalDaily}
	}

	l.userCounters[userKey] += tokens
	l.globalCounter[day] += tokens

	if len(l.userCounters) > pruneThreshold {
		l.prune(day)
	}
	return nil
}

// Refund は失敗したターンの消費分をカウンタから差し戻す。
// 日付が替わっていてキーが存在しない場合は何もしない。
func (l *Limiter) Refund(accountID string, tokens int64) {
	if l.disabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	day := l.now().UTC().Format("2006-01-02")
	userKey := accountID + "|" + day

	if cur, ok := l.userCounters[userKey]; ok {
		if cur < tokens {
			l.userCounters[userKey] = 0
		} else {
			l.userCounters[userKey] = cur - tokens
		}
	}
	if cur, ok := l.globalCounter[day]; ok {
		if cur < tokens {
			l.globalCounter[day] = 0
		} else {
			l.globalCounter[day] = cur - tokens
		}
	}
}

// prune は当日以外のキーを削除する。呼び出し側でロックを保持していること。
func (l *Limiter) prune(today string) {
	for key := range l.userCounters {
		if !strings.HasSuffix(key, today) {
			delete(l.userCounters, key)
		}
	}
	for day := range l.globalCounter {
		if day != today {
			delete(l.globalCounter, day)
		}
	}
}
