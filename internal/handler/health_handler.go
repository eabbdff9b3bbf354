package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DBPinger はヘルスチェックが必要とするデータベース接続インターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はサービスのヘルスチェックHTTPハンドラー。
type HealthHandler struct {
	db DBPinger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db DBPinger) *HealthHandler {
	return &HealthHandler{
		db: db,
	}
}

// healthResponse はヘルスチェックのレスポンスボディ。
type healthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// Health はデータベース接続を含むサービスの稼働状態を返す。
// GET /healthz
//
// DBに到達できない場合もHTTP 200でstatus=degradedを返す。
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "connected"
	if err := h.db.PingContext(ctx); err != nil {
		status = "degraded"
		dbStatus = "disconnected"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:    status,
		Database:  dbStatus,
		Service:   "jobnavi",
		Timestamp: time.Now().UTC(),
	})
}
