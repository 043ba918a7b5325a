// Package main provides localization for the filterbox CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Apply background filters to videos and serve the results": "動画の背景にフィルタを適用し、結果を配信",
		"Path to a YAML configuration file":                        "YAML設定ファイルのパス",
		"Log level (debug, info, warn, error)":                     "ログレベル（debug, info, warn, error）",
		"Log format (console or json)":                             "ログ形式（consoleまたはjson）",
		"Suppress all log output":                                  "すべてのログ出力を抑制",

		// Serve command
		"Run the HTTP server":                     "HTTPサーバーを起動",
		"Listen address (overrides configuration)": "待ち受けアドレス（設定を上書き）",
		"Shutting down":                           "シャットダウンしています",

		// Process command
		"Process one video into filter variants":   "1本の動画をフィルタバリアントに処理",
		"Filter to apply (repeatable, default: all)": "適用するフィルタ（複数指定可、既定はすべて）",
		"Exactly one video path or URL is required": "動画のパスまたはURLを1つだけ指定してください",
		"Processing %s":                             "%s を処理しています",
		"All variants were already cached":          "すべてのバリアントはキャッシュ済みです",
		"Processed %d frames":                       "%d フレームを処理しました",

		// Cache command
		"Inspect the processed-video cache": "処理済み動画キャッシュを確認",
		"List cached variants":              "キャッシュ済みバリアントの一覧を表示",

		// Version command
		"Show version information": "バージョン情報を表示",
		"filterbox version %s":     "filterbox バージョン %s",

		// Runtime messages
		"No segmenter configured, every pixel is treated as background": "セグメンタが未設定のため、全画素を背景として扱います",
		"Interrupted, shutting down...":                                 "中断されました。シャットダウンしています...",
	})
}
