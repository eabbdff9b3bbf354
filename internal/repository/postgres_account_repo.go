package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/jobnavi/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
// 残高の減算はすべて「WHERE 残高 >= 減算量」付きの単一UPDATE文で行い、
// RowsAffectedで成否を判定する。同一プールの最後の残高を奪い合う並行リクエストは
// ストレージのアトミック性により高々1つしか成功しない。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// tokenColumn はトークンプールに対応するカラム名を返す。
// カラム名はSQL文字列に連結されるため、既知の値以外を通さない。
func tokenColumn(pool model.TokenPool) (string, error) {
	switch pool {
	case model.TokenPoolFree:
		return "ai_free_tokens", nil
	case model.TokenPoolPaid:
		return "ai_paid_tokens", nil
	default:
		return "", fmt.Errorf("unknown token pool: %q", pool)
	}
}

// slotColumn は掲載枠プールに対応するカラム名を返す。
// subscriptionは残数を持たないためエラーになる。
func slotColumn(source model.JobSlotSource) (string, error) {
	switch source {
	case model.JobSlotSourceFree:
		return "free_job_slots", nil
	case model.JobSlotSourcePaid:
		return "paid_job_slots", nil
	default:
		return "", fmt.Errorf("job slot source has no balance column: %q", source)
	}
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	account := &model.Account{}
	var expiresAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, phone, name, role, business_name, location, languages, skills,
		        ai_free_tokens, ai_paid_tokens, free_job_slots, paid_job_slots,
		        subscription_plan, subscription_expires_at, created_at, updated_at
		 FROM accounts WHERE id = $1`,
		id,
	).Scan(
		&account.ID, &account.Phone, &account.Name, &account.Role,
		&account.BusinessName, &account.Location,
		pq.Array(&account.Languages), pq.Array(&account.Skills),
		&account.AIFreeTokens, &account.AIPaidTokens,
		&account.FreeJobSlots, &account.PaidJobSlots,
		&account.SubscriptionPlan, &expiresAt,
		&account.CreatedAt, &account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}

	if expiresAt.Valid {
		account.SubscriptionExpiresAt = &expiresAt.Time
	}

	return account, nil
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	var expiresAt any
	if account.SubscriptionExpiresAt != nil {
		expiresAt = *account.SubscriptionExpiresAt
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, phone, name, role, business_name, location,
		                       languages, skills, ai_free_tokens, ai_paid_tokens,
		                       free_job_slots, paid_job_slots,
		                       subscription_plan, subscription_expires_at,
		                       created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		account.ID, account.Phone, account.Name, account.Role,
		account.BusinessName, account.Location,
		pq.Array(account.Languages), pq.Array(account.Skills),
		account.AIFreeTokens, account.AIPaidTokens,
		account.FreeJobSlots, account.PaidJobSlots,
		account.SubscriptionPlan, expiresAt,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// DecrementTokens は指定プールの残高が十分な場合のみアトミックに減算する。
func (r *PostgresAccountRepo) DecrementTokens(ctx context.Context, id string, pool model.TokenPool, tokens int64) (bool, error) {
	col, err := tokenColumn(pool)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(
		`UPDATE accounts SET %s = %s - $2, updated_at = now()
		 WHERE id = $1 AND %s >= $2`, col, col, col)

	result, err := r.db.ExecContext(ctx, query, id, tokens)
	if err != nil {
		return false, fmt.Errorf("failed to decrement %s tokens: %w", pool, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// IncrementTokens は指定プールの残高を無条件に加算する。ロールバック用。
func (r *PostgresAccountRepo) IncrementTokens(ctx context.Context, id string, pool model.TokenPool, tokens int64) error {
	col, err := tokenColumn(pool)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`UPDATE accounts SET %s = %s + $2, updated_at = now() WHERE id = $1`, col, col)

	if _, err := r.db.ExecContext(ctx, query, id, tokens); err != nil {
		return fmt.Errorf("failed to increment %s tokens: %w", pool, err)
	}
	return nil
}

// TokenBalances は現在のAIトークン残高を返す。
func (r *PostgresAccountRepo) TokenBalances(ctx context.Context, id string) (int64, int64, error) {
	var free, paid int64
	err := r.db.QueryRowContext(ctx,
		`SELECT ai_free_tokens, ai_paid_tokens FROM accounts WHERE id = $1`,
		id,
	).Scan(&free, &paid)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read token balances: %w", err)
	}
	return free, paid, nil
}

// DecrementJobSlot は指定プールの掲載枠が残っている場合のみアトミックに1減算する。
func (r *PostgresAccountRepo) DecrementJobSlot(ctx context.Context, id string, source model.JobSlotSource) (bool, error) {
	col, err := slotColumn(source)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(
		`UPDATE accounts SET %s = %s - 1, updated_at = now()
		 WHERE id = $1 AND %s > 0`, col, col, col)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to decrement %s job slot: %w", source, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// IncrementJobSlot は指定プールの掲載枠を1加算する。subscriptionは何もしない。
func (r *PostgresAccountRepo) IncrementJobSlot(ctx context.Context, id string, source model.JobSlotSource) error {
	if source == model.JobSlotSourceSubscription {
		return nil
	}

	col, err := slotColumn(source)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`UPDATE accounts SET %s = %s + 1, updated_at = now() WHERE id = $1`, col, col)

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment %s job slot: %w", source, err)
	}
	return nil
}

// JobSlotBalances は現在の掲載枠残数を返す。
func (r *PostgresAccountRepo) JobSlotBalances(ctx context.Context, id string) (int, int, error) {
	var free, paid int
	err := r.db.QueryRowContext(ctx,
		`SELECT free_job_slots, paid_job_slots FROM accounts WHERE id = $1`,
		id,
	).Scan(&free, &paid)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read job slot balances: %w", err)
	}
	return free, paid, nil
}

// AddPaidJobSlots は購入済み掲載枠をn加算する。
func (r *PostgresAccountRepo) AddPaidJobSlots(ctx context.Context, id string, n int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET paid_job_slots = paid_job_slots + $2, updated_at = now()
		 WHERE id = $1`,
		id, n,
	)
	if err != nil {
		return fmt.Errorf("failed to add paid job slots: %w", err)
	}
	return nil
}

// CapFreeJobSlots は無料掲載枠をceilingに切り詰める冪等な操作。
// 過去の付与仕様で上限を超えて残っているレコードの補正用。
func (r *PostgresAccountRepo) CapFreeJobSlots(ctx context.Context, id string, ceiling int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET free_job_slots = $2, updated_at = now()
		 WHERE id = $1 AND free_job_slots > $2`,
		id, ceiling,
	)
	if err != nil {
		return fmt.Errorf("failed to cap free job slots: %w", err)
	}
	return nil
}

// ExtendSubscription はサブスクリプション期限を積み増し方式で延長する。
// 期限切れの場合はnowから、有効期間中の場合は現在の期限からdays日延長する。
func (r *PostgresAccountRepo) ExtendSubscription(ctx context.Context, id, plan string, days int) error {
	interval := fmt.Sprintf("%d days", days)

	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET subscription_plan = $2,
		     subscription_expires_at = GREATEST(now(), COALESCE(subscription_expires_at, now())) + $3::interval,
		     updated_at = now()
		 WHERE id = $1`,
		id, plan, interval,
	)
	if err != nil {
		return fmt.Errorf("failed to extend subscription: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
