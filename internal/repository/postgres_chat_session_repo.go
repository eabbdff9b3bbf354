package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/jobnavi/internal/model"
)

// PostgresChatSessionRepo はPostgreSQLを使用した会話セッションリポジトリ。
// 会話履歴・ウィザード進行・メモリはstateカラムにJSONBで保持する。
type PostgresChatSessionRepo struct {
	db *sql.DB
}

// NewPostgresChatSessionRepo はPostgresChatSessionRepoを生成する。
func NewPostgresChatSessionRepo(db *sql.DB) *PostgresChatSessionRepo {
	return &PostgresChatSessionRepo{db: db}
}

// sessionState はstateカラムのJSONB構造。
type sessionState struct {
	Messages        []model.ChatMessage `json:"messages"`
	LastShownJobIDs []string            `json:"last_shown_job_ids,omitempty"`
	PostingFlow     *model.PostingFlow  `json:"posting_flow,omitempty"`
	Memory          model.SessionMemory `json:"memory"`
}

func marshalState(s *model.ChatSession) ([]byte, error) {
	state := sessionState{
		Messages:        s.Messages,
		LastShownJobIDs: s.LastShownJobIDs,
		PostingFlow:     s.PostingFlow,
		Memory:          s.Memory,
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session state: %w", err)
	}
	return data, nil
}

func unmarshalState(data []byte, s *model.ChatSession) error {
	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	s.Messages = state.Messages
	s.LastShownJobIDs = state.LastShownJobIDs
	s.PostingFlow = state.PostingFlow
	s.Memory = state.Memory
	return nil
}

// FindActiveByAccount はアカウントのアクティブなセッションを取得する。
// 存在しない場合はnilを返す。
func (r *PostgresChatSessionRepo) FindActiveByAccount(ctx context.Context, accountID string) (*model.ChatSession, error) {
	session := &model.ChatSession{}
	var stateData []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, active, state, created_at, updated_at
		 FROM chat_sessions
		 WHERE account_id = $1 AND active`,
		accountID,
	).Scan(&session.ID, &session.AccountID, &session.Active, &stateData,
		&session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}

	if err := unmarshalState(stateData, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Create はセッションを作成する。
func (r *PostgresChatSessionRepo) Create(ctx context.Context, session *model.ChatSession) error {
	stateData, err := marshalState(session)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, account_id, active, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.AccountID, session.Active, stateData,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Save はセッションのstateとupdated_atを上書き保存する。
// 同一アカウントの同時ターンはlast-write-wins。
func (r *PostgresChatSessionRepo) Save(ctx context.Context, session *model.ChatSession) error {
	stateData, err := marshalState(session)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET state = $2, active = $3, updated_at = now()
		 WHERE id = $1`,
		session.ID, stateData, session.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session not found: %s", session.ID)
	}
	return nil
}

// Deactivate はアカウントのアクティブなセッションを非アクティブ化する。
func (r *PostgresChatSessionRepo) Deactivate(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET active = FALSE, updated_at = now()
		 WHERE account_id = $1 AND active`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return nil
}

// DeleteInactiveBefore は指定時刻より前に更新された非アクティブな
// セッションを削除し、削除件数を返す。
func (r *PostgresChatSessionRepo) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE NOT active AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ ChatSessionRepository = (*PostgresChatSessionRepo)(nil)
