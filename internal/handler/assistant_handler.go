package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobnavi/internal/chat"
	"github.com/hitoshi/jobnavi/internal/middleware"
	"github.com/hitoshi/jobnavi/internal/model"
)

// AssistantEngineInterface はアシスタントハンドラーが必要とするエンジンインターフェース。
type AssistantEngineInterface interface {
	// HandleTurn は1会話ターンを処理し、応答アクションを返す。
	HandleTurn(ctx context.Context, accountID string, role model.Role, message string) (*chat.TurnResult, error)
}

// AssistantHandler は会話アシスタントのHTTPハンドラー。
type AssistantHandler struct {
	engine AssistantEngineInterface
}

// NewAssistantHandler はAssistantHandlerを生成する。
func NewAssistantHandler(engine AssistantEngineInterface) *AssistantHandler {
	return &AssistantHandler{
		engine: engine,
	}
}

// turnRequest は会話ターンリクエストのボディ。
type turnRequest struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role,omitempty"`
	Message   string `json:"message"`
}

// HandleTurn は会話の1ターンを処理する。
// POST /api/assistant/turn
//
// 課金系のソフト失敗はHTTP 402で返し、ボディにはアクションと
// 対処方法を含む通常のターン応答を載せる。
func (h *AssistantHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}
	if req.AccountID == "" || req.Message == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "account_idとmessageは必須です。",
			Category: "validation",
			Action:   "必須フィールドを指定してください。",
		})
		return
	}

	result, err := h.engine.HandleTurn(r.Context(), req.AccountID, model.Role(req.Role), req.Message)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Action == chat.ActionPaymentRequired {
		status = http.StatusPaymentRequired
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}

// writeEngineError はエンジンのハードエラーをHTTPステータスへ対応付ける。
func (h *AssistantHandler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadRequest
		switch apiErr.Code {
		case model.ErrCodeAccountNotFound, model.ErrCodeJobNotFound:
			status = http.StatusNotFound
		case model.ErrCodeInvalidRole:
			status = http.StatusForbidden
		case model.ErrCodeGatewayFailure:
			status = http.StatusBadGateway
		}
		middleware.WriteErrorResponse(w, status, apiErr)
		return
	}

	slog.Error("assistant turn failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}
