package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/jobnavi/internal/model"
)

type mockAccountRepo struct {
	findByIDFunc         func(ctx context.Context, id string) (*model.Account, error)
	decrementJobSlotFunc func(ctx context.Context, id string, source model.JobSlotSource) (bool, error)
	incrementJobSlotFunc func(ctx context.Context, id string, source model.JobSlotSource) error
	jobSlotBalancesFunc  func(ctx context.Context, id string) (int, int, error)
	capFreeJobSlotsFunc  func(ctx context.Context, id string, ceiling int) error
	addPaidJobSlotsFunc  func(ctx context.Context, id string, n int) error
	extendFunc           func(ctx context.Context, id, plan string, days int) error
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockAccountRepo) Create(ctx context.Context, account *model.Account) error {
	return errors.New("not implemented")
}

func (m *mockAccountRepo) DecrementTokens(ctx context.Context, id string, pool model.TokenPool, tokens int64) (bool, error) {
	return false, errors.New("not implemented")
}

func (m *mockAccountRepo) IncrementTokens(ctx context.Context, id string, pool model.TokenPool, tokens int64) error {
	return errors.New("not implemented")
}

func (m *mockAccountRepo) TokenBalances(ctx context.Context, id string) (int64, int64, error) {
	return 0, 0, errors.New("not implemented")
}

func (m *mockAccountRepo) DecrementJobSlot(ctx context.Context, id string, source model.JobSlotSource) (bool, error) {
	return m.decrementJobSlotFunc(ctx, id, source)
}

func (m *mockAccountRepo) IncrementJobSlot(ctx context.Context, id string, source model.JobSlotSource) error {
	return m.incrementJobSlotFunc(ctx, id, source)
}

func (m *mockAccountRepo) JobSlotBalances(ctx context.Context, id string) (int, int, error) {
	return m.jobSlotBalancesFunc(ctx, id)
}

func (m *mockAccountRepo) AddPaidJobSlots(ctx context.Context, id string, n int) error {
	return m.addPaidJobSlotsFunc(ctx, id, n)
}

func (m *mockAccountRepo) CapFreeJobSlots(ctx context.Context, id string, ceiling int) error {
	return m.capFreeJobSlotsFunc(ctx, id, ceiling)
}

func (m *mockAccountRepo) ExtendSubscription(ctx context.Context, id, plan string, days int) error {
	return m.extendFunc(ctx, id, plan, days)
}

func activeSubscriber() *model.Account {
	expires := time.Now().Add(24 * time.Hour)
	return &model.Account{
		ID:                    "emp-1",
		Role:                  model.RoleEmployer,
		SubscriptionPlan:      "premium",
		SubscriptionExpiresAt: &expires,
	}
}

func TestReservoirSubscriptionConsumesNoSlot(t *testing.T) {
	decremented := false
	repo := &mockAccountRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Account, error) {
			return activeSubscriber(), nil
		},
		decrementJobSlotFunc: func(ctx context.Context, id string, source model.JobSlotSource) (bool, error) {
			decremented = true
			return true, nil
		},
		capFreeJobSlotsFunc: func(ctx context.Context, id string, ceiling int) error {
			return nil
		},
	}
	reservoir := NewReservoir(repo, 2)

	res, err := reservoir.Reserve(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != model.JobSlotSourceSubscription {
		t.Errorf("expected subscription source, got %s", res.Source)
	}
	if decremented {
		t.Error("subscription must not consume a slot")
	}
}

func TestReservoirExpiredSubscriptionFallsThrough(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	repo := &mockAccountRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Account, error) {
			return &model.Account{
				ID:                    "emp-1",
				Role:                  model.RoleEmployer,
				SubscriptionPlan:      "premium",
				SubscriptionExpiresAt: &expired,
			}, nil
		},
		capFreeJobSlotsFunc: func(ctx context.Context, id string, ceiling int) error {
			return nil
		},
		decrementJobSlotFunc: func(ctx context.Context, id string, source model.JobSlotSource) (bool, error) {
			return source == model.JobSlotSourceFree, nil
		},
	}
	reservoir := NewReservoir(repo, 2)

	res, err := reservoir.Reserve(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != model.JobSlotSourceFree {
		t.Errorf("expected free slot, got %s", res.Source)
	}
}

func TestReservoirFreeSlotBeforePaid(t *testing.T) {
	var tried []model.JobSlotSource
	repo := &mockAccountRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Account, error) {
			return &model.Account{ID: "emp-1", Role: model.RoleEmployer}, nil
		},
		capFreeJobSlotsFunc: func(ctx context.Context, id string, ceiling int) error {
			return nil
		},
		decrementJobSlotFunc: func(ctx context.Context, id string, source model.JobSlotSource) (bool, error) {
			tried = append(tried, source)
			return source == model.JobSlotSourcePaid, nil
		},
	}
	reservoir := NewReservoir(repo, 2)

	res, err := reservoir.Reserve(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != model.JobSlotSourcePaid {
		t.Errorf("expected paid slot, got %s", res.Source)
	}
	if len(tried) != 2 || tried[0] != model.JobSlotSourceFree {
		t.Errorf("expected free tried first, got %v", tried)
	}
}

func TestReservoirNoQuota(t *testing.T) {
	repo := &mockAccountRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Account, error) {
			return &model.Account{ID: "emp-1", Role: model.RoleEmployer}, nil
		},
		capFreeJobSlotsFunc: func(ctx context.Context, id string, ceiling int) error {
			return nil
		},
		decrementJobSlotFunc: func(ctx context.Context, id string, source model.JobSlotSource) (bool, error) {
			return false, nil
		},
		jobSlotBalancesFunc: func(ctx context.Context, id string) (int, int, error) {
			return 0, 0, nil
		},
	}
	reservoir := NewReservoir(repo, 2)

	_, err := reservoir.Reserve(context.Background(), "emp-1")
	var quotaErr *model.NoJobQuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected NoJobQuotaError, got %v", err)
	}
}

func TestReservoirCapsLegacyFreeSlots(t *testing.T) {
	capped := false
	repo := &mockAccountRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Account, error) {
			return &model.Account{ID: "emp-1", Role: model.RoleEmployer, FreeJobSlots: 15}, nil
		},
		capFreeJobSlotsFunc: func(ctx context.Context, id string, ceiling int) error {
			if ceiling != 2 {
				t.Errorf("expected ceiling 2, got %d", ceiling)
			}
			capped = true
			return nil
		},
		decrementJobSlotFunc: func(ctx context.Context, id string, source model.JobSlotSource) (bool, error) {
			if !capped {
				t.Error("free slots must be capped before consuming")
			}
			return source == model.JobSlotSourceFree, nil
		},
	}
	reservoir := NewReservoir(repo, 2)

	if _, err := reservoir.Reserve(context.Background(), "emp-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !capped {
		t.Error("expected CapFreeJobSlots to be called")
	}
}

func TestReservoirAccountNotFound(t *testing.T) {
	repo := &mockAccountRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Account, error) {
			return nil, nil
		},
	}
	reservoir := NewReservoir(repo, 2)

	_, err := reservoir.Reserve(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing account")
	}
}

func TestReservoirReleaseIsIdempotent(t *testing.T) {
	increments := 0
	repo := &mockAccountRepo{
		incrementJobSlotFunc: func(ctx context.Context, id string, source model.JobSlotSource) error {
			increments++
			return nil
		},
	}
	reservoir := NewReservoir(repo, 2)

	res := &SlotReservation{AccountID: "emp-1", Source: model.JobSlotSourceFree}
	for i := 0; i < 3; i++ {
		if err := reservoir.Release(context.Background(), res); err != nil {
			t.Fatalf("release %d failed: %v", i, err)
		}
	}
	if increments != 1 {
		t.Errorf("expected exactly 1 increment, got %d", increments)
	}
}

func TestReservoirReleaseSubscriptionIsNoop(t *testing.T) {
	repo := &mockAccountRepo{
		incrementJobSlotFunc: func(ctx context.Context, id string, source model.JobSlotSource) error {
			t.Error("subscription release must not touch storage")
			return nil
		},
	}
	reservoir := NewReservoir(repo, 2)

	res := &SlotReservation{AccountID: "emp-1", Source: model.JobSlotSourceSubscription}
	if err := reservoir.Release(context.Background(), res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReservoirReleaseNil(t *testing.T) {
	reservoir := NewReservoir(&mockAccountRepo{}, 2)
	if err := reservoir.Release(context.Background(), nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReservoirRenewSubscriptionStacksDays(t *testing.T) {
	var gotPlan string
	var gotDays int
	repo := &mockAccountRepo{
		extendFunc: func(ctx context.Context, id, plan string, days int) error {
			gotPlan = plan
			gotDays = days
			return nil
		},
	}
	reservoir := NewReservoir(repo, 2)

	if err := reservoir.RenewSubscription(context.Background(), "emp-1", "premium", 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPlan != "premium" || gotDays != 30 {
		t.Errorf("expected (premium, 30), got (%s, %d)", gotPlan, gotDays)
	}
}

func TestReservoirRenewSubscriptionRejectsNonPositiveDays(t *testing.T) {
	reservoir := NewReservoir(&mockAccountRepo{}, 2)
	if err := reservoir.RenewSubscription(context.Background(), "emp-1", "premium", 0); err == nil {
		t.Error("expected error for zero days")
	}
}

func TestReservoirCreditJobSlots(t *testing.T) {
	var gotN int
	repo := &mockAccountRepo{
		addPaidJobSlotsFunc: func(ctx context.Context, id string, n int) error {
			gotN = n
			return nil
		},
	}
	reservoir := NewReservoir(repo, 2)

	if err := reservoir.CreditJobSlots(context.Background(), "emp-1", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotN != 5 {
		t.Errorf("expected 5 slots credited, got %d", gotN)
	}
}
