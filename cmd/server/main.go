// JobNaviのサーバーバイナリ。サブコマンド（serve / worker / migrate /
// healthcheck）の選択と依存関係のワイヤリングはinternal/appが行う。
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/jobnavi/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
