package generator

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 5 * time.Second

	networkHint = "💡 プロキシ (GEMINI_PROXY_URL) とネットワーク設定を確認してください"
)

var ErrMissingAPIKey = errors.New("APIキーが指定されていません")

// Option は Orchestrator の挙動を調整します。
type Option func(*Orchestrator)

// WithMaxAttempts はリモート呼び出しの最大試行回数（初回を含む）を設定します。1 未満は無視します。
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// WithRetryDelay は再試行前の固定待機時間を設定します。
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.retryDelay = d
		}
	}
}

// WithTimer は再試行待機に使うタイマーの生成関数を差し替えます。
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(o *Orchestrator) {
		if newTimer != nil {
			o.newTimer = newTimer
		}
	}
}

// WithClock はログのタイムスタンプとファイル名に使う時刻の取得元を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithImageWriter は生成画像の保存処理を差し替えます。
func WithImageWriter(w ImageWriter) Option {
	return func(o *Orchestrator) {
		if w != nil {
			o.writeImage = w
		}
	}
}

// WithLogger は診断ログの出力先を設定します。
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}
