package credit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/jobnavi/internal/model"
)

type mockAccountRepo struct {
	decrementTokensFunc func(ctx context.Context, accountID string, pool model.TokenPool, amount int64) (bool, error)
	incrementTokensFunc func(ctx context.Context, accountID string, pool model.TokenPool, amount int64) error
	tokenBalancesFunc   func(ctx context.Context, accountID string) (int64, int64, error)
}

func (m *mockAccountRepo) DecrementTokens(ctx context.Context, accountID string, pool model.TokenPool, amount int64) (bool, error) {
	return m.decrementTokensFunc(ctx, accountID, pool, amount)
}

func (m *mockAccountRepo) IncrementTokens(ctx context.Context, accountID string, pool model.TokenPool, amount int64) error {
	return m.incrementTokensFunc(ctx, accountID, pool, amount)
}

func (m *mockAccountRepo) TokenBalances(ctx context.Context, accountID string) (int64, int64, error) {
	return m.tokenBalancesFunc(ctx, accountID)
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAccountRepo) Create(ctx context.Context, account *model.Account) error {
	return errors.New("not implemented")
}

func (m *mockAccountRepo) DecrementJobSlot(ctx context.Context, accountID string, source model.JobSlotSource) (bool, error) {
	return false, errors.New("not implemented")
}

func (m *mockAccountRepo) IncrementJobSlot(ctx context.Context, accountID string, source model.JobSlotSource) error {
	return errors.New("not implemented")
}

func (m *mockAccountRepo) JobSlotBalances(ctx context.Context, accountID string) (int, int, error) {
	return 0, 0, errors.New("not implemented")
}

func (m *mockAccountRepo) AddPaidJobSlots(ctx context.Context, accountID string, count int) error {
	return errors.New("not implemented")
}

func (m *mockAccountRepo) CapFreeJobSlots(ctx context.Context, accountID string, ceiling int) error {
	return errors.New("not implemented")
}

func (m *mockAccountRepo) ExtendSubscription(ctx context.Context, accountID, plan string, days int) error {
	return errors.New("not implemented")
}

// balanceAccountRepo は実ストレージの条件付き更新を模したインメモリ実装。
// 並行テストで残高が負にならないことを検証するために使う。
type balanceAccountRepo struct {
	mockAccountRepo
	mu   sync.Mutex
	free int64
	paid int64
}

func (b *balanceAccountRepo) DecrementTokens(ctx context.Context, accountID string, pool model.TokenPool, amount int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch pool {
	case model.TokenPoolFree:
		if b.free >= amount {
			b.free -= amount
			return true, nil
		}
	case model.TokenPoolPaid:
		if b.paid >= amount {
			b.paid -= amount
			return true, nil
		}
	}
	return false, nil
}

func (b *balanceAccountRepo) IncrementTokens(ctx context.Context, accountID string, pool model.TokenPool, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pool == model.TokenPoolFree {
		b.free += amount
	} else {
		b.paid += amount
	}
	return nil
}

func (b *balanceAccountRepo) TokenBalances(ctx context.Context, accountID string) (int64, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.free, b.paid, nil
}

func TestLedgerReserveFreePoolFirst(t *testing.T) {
	repo := &balanceAccountRepo{free: 100, paid: 100}
	ledger := NewLedger(repo)

	res, err := ledger.Reserve(context.Background(), "acc-1", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pool != model.TokenPoolFree {
		t.Errorf("expected free pool, got %s", res.Pool)
	}
	if repo.free != 40 || repo.paid != 100 {
		t.Errorf("expected balances (40, 100), got (%d, %d)", repo.free, repo.paid)
	}
}

func TestLedgerReserveFallsBackToPaidPool(t *testing.T) {
	repo := &balanceAccountRepo{free: 10, paid: 100}
	ledger := NewLedger(repo)

	res, err := ledger.Reserve(context.Background(), "acc-1", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pool != model.TokenPoolPaid {
		t.Errorf("expected paid pool, got %s", res.Pool)
	}
	// 無料プールは部分消費されず残る
	if repo.free != 10 || repo.paid != 40 {
		t.Errorf("expected balances (10, 40), got (%d, %d)", repo.free, repo.paid)
	}
}

func TestLedgerReserveInsufficientCredits(t *testing.T) {
	repo := &balanceAccountRepo{free: 10, paid: 20}
	ledger := NewLedger(repo)

	res, err := ledger.Reserve(context.Background(), "acc-1", 60)
	if res != nil {
		t.Fatal("expected nil reservation")
	}

	var insufficientErr *model.InsufficientCreditsError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected InsufficientCreditsError, got %v", err)
	}
	if insufficientErr.FreeBalance != 10 || insufficientErr.PaidBalance != 20 {
		t.Errorf("expected balances (10, 20), got (%d, %d)",
			insufficientErr.FreeBalance, insufficientErr.PaidBalance)
	}
	// 残高は一切変わらない
	if repo.free != 10 || repo.paid != 20 {
		t.Errorf("balances must be untouched, got (%d, %d)", repo.free, repo.paid)
	}
}

func TestLedgerReserveMinimumCost(t *testing.T) {
	repo := &balanceAccountRepo{free: 5}
	ledger := NewLedger(repo)

	res, err := ledger.Reserve(context.Background(), "acc-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Amount != 1 {
		t.Errorf("expected minimum amount 1, got %d", res.Amount)
	}
}

func TestLedgerReleaseIsIdempotent(t *testing.T) {
	repo := &balanceAccountRepo{free: 100}
	ledger := NewLedger(repo)

	res, err := ledger.Reserve(context.Background(), "acc-1", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.free != 70 {
		t.Fatalf("expected free balance 70, got %d", repo.free)
	}

	for i := 0; i < 3; i++ {
		if err := ledger.Release(context.Background(), res); err != nil {
			t.Fatalf("release %d failed: %v", i, err)
		}
	}
	if repo.free != 100 {
		t.Errorf("expected free balance 100 after release, got %d", repo.free)
	}
}

func TestLedgerReleaseNilReservation(t *testing.T) {
	ledger := NewLedger(&balanceAccountRepo{})
	if err := ledger.Release(context.Background(), nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLedgerReleaseRetriesAfterFailure(t *testing.T) {
	attempts := 0
	repo := &mockAccountRepo{
		decrementTokensFunc: func(ctx context.Context, accountID string, pool model.TokenPool, amount int64) (bool, error) {
			return true, nil
		},
		incrementTokensFunc: func(ctx context.Context, accountID string, pool model.TokenPool, amount int64) error {
			attempts++
			if attempts == 1 {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	ledger := NewLedger(repo)

	res, err := ledger.Reserve(context.Background(), "acc-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ledger.Release(context.Background(), res); err == nil {
		t.Fatal("expected first release to fail")
	}
	if err := ledger.Release(context.Background(), res); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	// 成功後はもう返金されない
	if err := ledger.Release(context.Background(), res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 increment attempts, got %d", attempts)
	}
}

func TestLedgerConcurrentReserveNeverOverdraws(t *testing.T) {
	repo := &balanceAccountRepo{free: 50, paid: 50}
	ledger := NewLedger(repo)

	const workers = 20
	var wg sync.WaitGroup
	granted := make(chan *Reservation, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.Reserve(context.Background(), "acc-1", 10)
			if err == nil {
				granted <- res
			}
		}()
	}
	wg.Wait()
	close(granted)

	var total int64
	for res := range granted {
		total += res.Amount
	}
	if total != 100 {
		t.Errorf("expected exactly 100 tokens granted, got %d", total)
	}
	if repo.free != 0 || repo.paid != 0 {
		t.Errorf("expected balances (0, 0), got (%d, %d)", repo.free, repo.paid)
	}
}

func TestLedgerGrantRejectsNonPositiveAmount(t *testing.T) {
	ledger := NewLedger(&balanceAccountRepo{})
	if err := ledger.Grant(context.Background(), "acc-1", model.TokenPoolPaid, 0); err == nil {
		t.Error("expected error for zero amount")
	}
}

func TestHeuristicEstimatorMinimumOne(t *testing.T) {
	var e HeuristicEstimator
	if got := e.EstimateCost("", 0); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestHeuristicEstimatorCountsPromptAndOutput(t *testing.T) {
	var e HeuristicEstimator
	prompt := make([]byte, 400)
	for i := range prompt {
		prompt[i] = 'a'
	}
	if got := e.EstimateCost(string(prompt), 128); got != 228 {
		t.Errorf("expected 228, got %d", got)
	}
}

func TestHeuristicEstimatorDeterministic(t *testing.T) {
	var e HeuristicEstimator
	first := e.EstimateCost("カフェの接客の仕事を探しています", 256)
	for i := 0; i < 5; i++ {
		time.Sleep(time.Millisecond)
		if got := e.EstimateCost("カフェの接客の仕事を探しています", 256); got != first {
			t.Fatalf("estimate changed between calls: %d != %d", got, first)
		}
	}
}
