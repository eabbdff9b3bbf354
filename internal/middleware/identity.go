package middleware

import (
	"net"
	"net/http"
	"strings"
)

// accountIDHeader はクライアントが申告するアカウントIDのヘッダー名。
// 認証レイヤーは持たないため、レート制限とログの識別子として使う。
const accountIDHeader = "X-Account-ID"

// AccountIDFromRequest はリクエストからアカウントIDを取り出す。
// ヘッダーが無い場合はクライアントIPへフォールバックする。
func AccountIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(accountIDHeader)); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
