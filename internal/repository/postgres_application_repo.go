package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jobnavi/internal/model"
)

// PostgresApplicationRepo はPostgreSQLを使用した応募リポジトリ。
type PostgresApplicationRepo struct {
	db *sql.DB
}

// NewPostgresApplicationRepo はPostgresApplicationRepoを生成する。
func NewPostgresApplicationRepo(db *sql.DB) *PostgresApplicationRepo {
	return &PostgresApplicationRepo{db: db}
}

// Create は応募を作成する。(job_id, seeker_id)のユニーク制約に対する
// ON CONFLICT DO NOTHINGにより冪等で、既に応募済みの場合はfalseを返す。
// 挿入された場合のみ求人のapplications_countを同一トランザクションで+1する。
func (r *PostgresApplicationRepo) Create(ctx context.Context, app *model.Application) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO applications (id, job_id, seeker_id, cover_letter, status, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (job_id, seeker_id) DO NOTHING`,
		app.ID, app.JobID, app.SeekerID, app.CoverLetter, app.Status, app.AppliedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert application: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// 応募済み。カウンタは増やさない。
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET applications_count = applications_count + 1 WHERE id = $1`,
		app.JobID,
	); err != nil {
		return false, fmt.Errorf("failed to increment applications count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// ListBySeeker は求職者の応募一覧をapplied_at降順で返す。
func (r *PostgresApplicationRepo) ListBySeeker(ctx context.Context, seekerID string, limit int) ([]*model.Application, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, job_id, seeker_id, cover_letter, status, applied_at
		 FROM applications
		 WHERE seeker_id = $1
		 ORDER BY applied_at DESC
		 LIMIT $2`,
		seekerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*model.Application
	for rows.Next() {
		app := &model.Application{}
		if err := rows.Scan(
			&app.ID, &app.JobID, &app.SeekerID, &app.CoverLetter,
			&app.Status, &app.AppliedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan application row: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate application rows: %w", err)
	}

	return apps, nil
}

// compile-time interface check
var _ ApplicationRepository = (*PostgresApplicationRepo)(nil)
