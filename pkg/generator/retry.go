package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/history"
	"google.golang.org/genai"
)

// call はリモート呼び出しを最大 maxAttempts 回まで試行します。
// 混雑（503 / overloaded / UNAVAILABLE）のみ固定間隔で再試行し、それ以外のエラーは即座に終端状態にします。
func (r *run) call(model ImageModel, parts []*genai.Part, cfg *genai.GenerateContentConfig) ([]*genai.Part, bool) {
	r.attempt = 1
	r.info("☁️ Google に生成リクエストを送信します...")
	if !r.emit(r.snapshot(domain.PhaseCalling, "☁️ 生成中...")) {
		return nil, false
	}

	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	maxAttempts := r.o.maxAttempts
	var result []*genai.Part

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		out, err := model.GenerateImages(ctx, parts, cfg)
		if err != nil {
			if isOverloaded(err) && r.attempt < maxAttempts {
				return err
			}
			return backoff.Permanent(err)
		}
		result = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		r.warnf("⚠️ サーバーの混雑を検知しました (503)。%s後に再試行します...", wait)
		if !r.emit(r.snapshot(domain.PhaseCalling, "⚠️ サーバーが混雑しています。再試行を準備中...")) {
			cancel()
			return
		}

		r.attempt++
		r.info("🔄 %d 回目の接続を試みます...", r.attempt)
		status := fmt.Sprintf("⏳ サーバーが混雑しています。再試行中 (%d/%d)...", r.attempt, maxAttempts)
		if !r.emit(r.snapshot(domain.PhaseCalling, status)) {
			cancel()
		}
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.o.retryDelay), uint64(maxAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotifyWithTimer(operation, b, notify, r.o.newTimer())
	if r.stopped {
		return nil, false
	}
	if err == nil {
		return result, true
	}

	if r.canceled(err) {
		r.warnf("⏹️ 生成がキャンセルされました")
		r.fail(domain.FailureCanceled, "⏹️ キャンセルされました", err)
		return nil, false
	}

	r.remoteFailure(err)
	return nil, false
}

func (r *run) remoteFailure(err error) {
	msg := err.Error()
	r.errorf("❌ API 呼び出しに失敗しました: %s", msg)

	status := fmt.Sprintf("❌ 失敗: %s", msg)
	if needsNetworkHint(msg) {
		r.info("%s", networkHint)
		status = fmt.Sprintf("❌ ネットワークエラー: %s (%s)", msg, networkHint)
	}

	s := r.snapshot(domain.PhaseFailure, status)
	s.Failure = domain.FailureRemote
	s.Err = err
	s.History = history.List(r.outputDir)
	r.emit(s)
}
