package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Pipeline
		"Processing %s into %d variants":          "%s を %d バリアントに処理中",
		"Stored %d variants of %s (%d frames)":    "%s の %d バリアントを保存しました (%d フレーム)",
		"Processed %d frames":                     "%d フレームを処理しました",
		"All %d variants of %s already cached":    "%s の %d バリアントはキャッシュ済みです",
		"Waiting for in-flight run of %s":         "%s の実行中の処理を待機中",
		"Initialized %d encode sinks at %dx%d %.2ffps": "%d 個のエンコードシンクを初期化しました (%dx%d %.2ffps)",

		// Cache
		"Cached %s/%s (%d bytes)":                      "%s/%s をキャッシュしました (%d バイト)",
		"Displacing expired processing lease for %s":   "%s の期限切れ処理リースを解放します",

		// Playback
		"Session synced with %d variants, %q active": "%d バリアントで同期しました (%q がアクティブ)",
		"Switched active variant to %q":              "アクティブバリアントを %q に切り替えました",
		"Autoplay refused for %q: %s":                "%q の自動再生が拒否されました: %s",

		// Server
		"Listening on %s":              "%s で待ち受け中",
		"Stored upload %s (%d bytes)":  "アップロード %s を保存しました (%d バイト)",
		"Serve failed: %s":             "サーバーエラー: %s",

		// Warnings
		"Segmentation failed at frame %d, using empty mask: %s": "フレーム %d のセグメンテーションに失敗しました。空のマスクを使用します: %s",
		"Audio remux failed for %q, storing silent variant: %s": "%q の音声の再多重化に失敗しました。無音バリアントを保存します: %s",

		// Errors
		"Failed to open %s: %s":          "%s を開けませんでした: %s",
		"Decode failed at frame %d: %s":  "フレーム %d のデコードに失敗しました: %s",
		"Processing failed for %s: %s":   "%s の処理に失敗しました: %s",
		"Acquisition failed for %s: %s":  "%s の取得に失敗しました: %s",
		"Finalize failed for filter %q: %s": "フィルター %q の確定に失敗しました: %s",
	})
}
