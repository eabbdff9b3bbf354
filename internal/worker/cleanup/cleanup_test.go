package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/jobnavi/internal/model"
)

// mockSessionRepo はChatSessionRepositoryのテスト用実装。
type mockSessionRepo struct {
	deleteInactiveBeforeFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockSessionRepo) FindActiveByAccount(ctx context.Context, accountID string) (*model.ChatSession, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.ChatSession) error {
	return fmt.Errorf("not implemented")
}

func (m *mockSessionRepo) Save(ctx context.Context, session *model.ChatSession) error {
	return fmt.Errorf("not implemented")
}

func (m *mockSessionRepo) Deactivate(ctx context.Context, accountID string) error {
	return fmt.Errorf("not implemented")
}

func (m *mockSessionRepo) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.deleteInactiveBeforeFunc(ctx, cutoff)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestCleanupJob_Run_UsesRetentionCutoff(t *testing.T) {
	var buf bytes.Buffer

	fixed := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	var gotCutoff time.Time
	repo := &mockSessionRepo{
		deleteInactiveBeforeFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 3, nil
		},
	}

	job := NewCleanupJob(repo, newTestLogger(&buf))
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	want := fixed.AddDate(0, 0, -30)
	if !gotCutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", gotCutoff, want)
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockSessionRepo{
		deleteInactiveBeforeFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 7, nil
		},
	}

	job := NewCleanupJob(repo, newTestLogger(&buf))
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["deleted_count"] != float64(7) {
		t.Errorf("deleted_count = %v, want 7", entry["deleted_count"])
	}
}

func TestCleanupJob_Run_PropagatesError(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockSessionRepo{
		deleteInactiveBeforeFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 0, fmt.Errorf("connection refused")
		},
	}

	job := NewCleanupJob(repo, newTestLogger(&buf))
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("Run() はエラーを返さなければならない")
	}
}

func TestCleanupJob_Run_IdempotentWithNoTargets(t *testing.T) {
	var buf bytes.Buffer
	repo := &mockSessionRepo{
		deleteInactiveBeforeFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 0, nil
		},
	}

	job := NewCleanupJob(repo, newTestLogger(&buf))
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("削除対象ゼロでもエラーにならないこと: %v", err)
	}
}
