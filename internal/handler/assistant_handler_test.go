package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/jobnavi/internal/chat"
	"github.com/hitoshi/jobnavi/internal/middleware"
	"github.com/hitoshi/jobnavi/internal/model"
)

// mockEngine はAssistantEngineInterfaceのテスト用実装。
type mockEngine struct {
	handleTurnFunc func(ctx context.Context, accountID string, role model.Role, message string) (*chat.TurnResult, error)
}

func (m *mockEngine) HandleTurn(ctx context.Context, accountID string, role model.Role, message string) (*chat.TurnResult, error) {
	return m.handleTurnFunc(ctx, accountID, role, message)
}

func postTurn(t *testing.T, h *AssistantHandler, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/assistant/turn", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleTurn(w, req)
	return w.Result()
}

func TestHandleTurn_Success(t *testing.T) {
	engine := &mockEngine{
		handleTurnFunc: func(ctx context.Context, accountID string, role model.Role, message string) (*chat.TurnResult, error) {
			if accountID != "acct-1" {
				t.Errorf("accountID = %q, want acct-1", accountID)
			}
			if role != model.RoleSeeker {
				t.Errorf("role = %q, want seeker", role)
			}
			return &chat.TurnResult{
				Message: "2件の求人が見つかりました。",
				Action:  chat.ActionShowJobs,
			}, nil
		},
	}
	h := NewAssistantHandler(engine)

	resp := postTurn(t, h, `{"account_id": "acct-1", "role": "seeker", "message": "渋谷で仕事を探して"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result chat.TurnResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Action != chat.ActionShowJobs {
		t.Errorf("action = %q, want %q", result.Action, chat.ActionShowJobs)
	}
}

func TestHandleTurn_PaymentRequiredReturns402(t *testing.T) {
	apiErr := (&model.InsufficientCreditsError{FreeBalance: 0, PaidBalance: 0}).APIError()
	engine := &mockEngine{
		handleTurnFunc: func(ctx context.Context, accountID string, role model.Role, message string) (*chat.TurnResult, error) {
			return &chat.TurnResult{
				Message: apiErr.Message,
				Action:  chat.ActionPaymentRequired,
				Payload: apiErr,
			}, nil
		},
	}
	h := NewAssistantHandler(engine)

	resp := postTurn(t, h, `{"account_id": "acct-1", "message": "仕事を探して"}`)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusPaymentRequired)
	}

	var result chat.TurnResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Action != chat.ActionPaymentRequired {
		t.Errorf("action = %q, want %q", result.Action, chat.ActionPaymentRequired)
	}
}

func TestHandleTurn_InvalidBody(t *testing.T) {
	h := NewAssistantHandler(&mockEngine{
		handleTurnFunc: func(ctx context.Context, accountID string, role model.Role, message string) (*chat.TurnResult, error) {
			t.Fatal("engine must not be called")
			return nil, nil
		},
	})

	resp := postTurn(t, h, `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleTurn_MissingFields(t *testing.T) {
	h := NewAssistantHandler(&mockEngine{
		handleTurnFunc: func(ctx context.Context, accountID string, role model.Role, message string) (*chat.TurnResult, error) {
			t.Fatal("engine must not be called")
			return nil, nil
		},
	})

	resp := postTurn(t, h, `{"account_id": "acct-1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", body.Code)
	}
}

func TestHandleTurn_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "account not found",
			err:        model.NewAccountNotFoundError("acct-x"),
			wantStatus: http.StatusNotFound,
			wantCode:   model.ErrCodeAccountNotFound,
		},
		{
			name:       "invalid role",
			err:        model.NewInvalidRoleError(model.RoleEmployer),
			wantStatus: http.StatusForbidden,
			wantCode:   model.ErrCodeInvalidRole,
		},
		{
			name:       "gateway failure",
			err:        model.NewGatewayFailureError(),
			wantStatus: http.StatusBadGateway,
			wantCode:   model.ErrCodeGatewayFailure,
		},
		{
			name:       "unexpected error",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAssistantHandler(&mockEngine{
				handleTurnFunc: func(ctx context.Context, accountID string, role model.Role, message string) (*chat.TurnResult, error) {
					return nil, tt.err
				},
			})

			resp := postTurn(t, h, `{"account_id": "acct-1", "message": "こんにちは"}`)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var body middleware.ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}
