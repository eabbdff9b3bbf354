package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/jobnavi/internal/model"
)

// PostgresJobRepo はPostgreSQLを使用した求人リポジトリ。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	job := &model.Job{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, employer_id, title, category, location, salary, job_type,
		        experience, description, status, applications_count, posted_at
		 FROM jobs WHERE id = $1`,
		id,
	).Scan(
		&job.ID, &job.EmployerID, &job.Title, &job.Category, &job.Location,
		&job.Salary, &job.JobType, &job.Experience, &job.Description,
		&job.Status, &job.ApplicationsCount, &job.PostedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job by ID: %w", err)
	}

	return job, nil
}

// Create は求人を作成する。
func (r *PostgresJobRepo) Create(ctx context.Context, job *model.Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, employer_id, title, category, location, salary,
		                   job_type, experience, description, status,
		                   applications_count, posted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.EmployerID, job.Title, job.Category, job.Location,
		job.Salary, job.JobType, job.Experience, job.Description,
		job.Status, job.ApplicationsCount, job.PostedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Search はフィルタに合致するactiveな求人をposted_at降順で返す。
// ゼロ値のフィルタ項目は条件に含めない。勤務地とキーワードは部分一致。
// 給与はsalaryカラムから数値を抽出して下限比較する。
func (r *PostgresJobRepo) Search(ctx context.Context, filter model.JobFilter, limit int) ([]*model.Job, error) {
	conditions := []string{`status = 'active'`}
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Category != "" {
		conditions = append(conditions, `category = `+arg(filter.Category))
	}
	if filter.Location != "" {
		conditions = append(conditions, `location ILIKE `+arg("%"+filter.Location+"%"))
	}
	if filter.JobType != "" {
		conditions = append(conditions, `job_type = `+arg(filter.JobType))
	}
	if filter.Experience != "" {
		conditions = append(conditions, `experience = `+arg(filter.Experience))
	}
	if filter.Language != "" {
		conditions = append(conditions, `description ILIKE `+arg("%"+filter.Language+"%"))
	}
	if filter.Keyword != "" {
		p := arg("%" + filter.Keyword + "%")
		conditions = append(conditions, `(title ILIKE `+p+` OR description ILIKE `+p+`)`)
	}
	if filter.SalaryFloor > 0 {
		// salaryは「月給25万円」のような表記のため、数字部分を抽出して比較する
		conditions = append(conditions,
			`COALESCE(NULLIF(regexp_replace(salary, '\D', '', 'g'), ''), '0')::bigint >= `+arg(filter.SalaryFloor))
	}

	query := `SELECT id, employer_id, title, category, location, salary, job_type,
	                 experience, description, status, applications_count, posted_at
	          FROM jobs WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY posted_at DESC LIMIT ` + arg(limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job := &model.Job{}
		if err := rows.Scan(
			&job.ID, &job.EmployerID, &job.Title, &job.Category, &job.Location,
			&job.Salary, &job.JobType, &job.Experience, &job.Description,
			&job.Status, &job.ApplicationsCount, &job.PostedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job rows: %w", err)
	}

	return jobs, nil
}

// HasRecentDuplicate は同一の(employer, title, location)の求人が
// within以内に作成されているかを返す。
func (r *PostgresJobRepo) HasRecentDuplicate(ctx context.Context, employerID, title, location string, within time.Duration) (bool, error) {
	interval := fmt.Sprintf("%d seconds", int(within.Seconds()))

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM jobs
		     WHERE employer_id = $1 AND title = $2 AND location = $3
		       AND posted_at > now() - $4::interval
		 )`,
		employerID, title, location, interval,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check recent duplicate: %w", err)
	}

	return exists, nil
}

// compile-time interface check
var _ JobRepository = (*PostgresJobRepo)(nil)
