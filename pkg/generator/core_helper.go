package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/history"
	"google.golang.org/genai"
)

// run は Generate 1 回分の状態を保持します。
type run struct {
	o      *Orchestrator
	ctx    context.Context
	req    domain.GenerationRequest
	yield  func(domain.Snapshot) bool
	id     string
	logger *slog.Logger

	log       []domain.ProgressEvent
	attempt   int
	outputDir string
	stopped   bool
}

func (r *run) execute() {
	r.info("🚀 タスクを開始します...")
	if !r.emit(r.snapshot(domain.PhaseValidating, "⏳ 初期化中...")) {
		return
	}

	// 1. APIキーの確認
	if r.req.APIKey == "" {
		r.errorf("❌ エラー: APIキーが指定されていません")
		r.fail(domain.FailureMissingCredential, "❌ APIキーがありません", ErrMissingAPIKey)
		return
	}

	// 2. 出力ディレクトリの準備
	r.outputDir = history.ResolveDir(r.req.OutputDir)
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		r.errorf("❌ ディレクトリの作成に失敗しました: %v", err)
		r.fail(domain.FailureStorage, fmt.Sprintf("❌ ディレクトリエラー: %v", err), err)
		return
	}

	// 3. クライアントの初期化
	r.info("🔌 APIクライアントに接続しています...")
	model, err := r.o.newClient(r.ctx, r.req.APIKey)
	if err != nil {
		r.errorf("❌ クライアントの初期化に失敗しました: %v", err)
		r.fail(domain.FailureClientInit, fmt.Sprintf("❌ APIキーエラー: %v", err), err)
		return
	}

	// 4. プロンプト + 参照画像を 1 つのコンテキストにまとめる
	parts, ok := r.buildPayload()
	if !ok {
		return
	}

	// 5. 生成設定
	cfg := buildConfig(r.resolution(), r.aspectRatio())
	if checker, ok := model.(ConfigChecker); ok {
		if err := checker.CheckConfig(cfg); err != nil {
			r.errorf("❌ クライアントがこの生成設定に対応していません: %v", err)
			r.fail(domain.FailureConfigIncompatible, "❌ クライアントのバージョンが対応していません", err)
			return
		}
	}

	// 6. 送信（混雑時は自動で再試行）
	respParts, ok := r.call(model, parts, cfg)
	if !ok {
		return
	}

	// 7. 応答の処理
	r.handleResponse(respParts)
}

func (r *run) buildPayload() ([]*genai.Part, bool) {
	parts := []*genai.Part{genai.NewPartFromText(r.req.Prompt)}
	r.info("📝 プロンプトを読み込みました")

	refs := r.req.ReferenceImages
	if len(refs) > domain.MaxReferenceImages {
		r.warnf("⚠️ 参照画像が%d枚を超えているため、先頭の%d枚のみを使用します", domain.MaxReferenceImages, domain.MaxReferenceImages)
		refs = refs[:domain.MaxReferenceImages]
	}

	loaded := 0
	for i, path := range refs {
		if r.ctx.Err() != nil {
			// キャンセルは送信直前の検査で終端状態にする
			break
		}
		part, err := r.o.preparer.PrepareImagePart(r.ctx, path)
		if err != nil {
			r.warnf("⚠️ 参照画像 %d の読み込みに失敗しました: %v", i+1, err)
			continue
		}
		parts = append(parts, part)
		loaded++
	}

	if loaded > 0 {
		r.info("📦 参照画像 %d 枚をコンテキストに追加しました", loaded)
		if !r.emit(r.snapshot(domain.PhaseBuildingPayload, fmt.Sprintf("⏳ 参照画像 %d 枚を読み込みました...", loaded))) {
			return nil, false
		}
	}
	return parts, true
}

func (r *run) handleResponse(parts []*genai.Part) {
	r.info("✅ サーバーが応答しました。画像を保存しています...")
	if !r.emit(r.snapshot(domain.PhaseHandlingResponse, "💾 保存中...")) {
		return
	}

	var (
		images []string
		suffix strings.Builder
	)
	for i, part := range parts {
		if part == nil || part.Thought {
			continue
		}
		switch {
		case part.InlineData != nil && len(part.InlineData.Data) > 0:
			name := outputFilename(r.resolution(), i, r.o.now())
			path := filepath.Join(r.outputDir, name)
			if err := r.o.writeImage(part.InlineData.Data, path); err != nil {
				r.errorf("❌ 画像の保存に失敗しました: %v", err)
				r.fail(domain.FailureSave, fmt.Sprintf("❌ 保存エラー: %v", err), err)
				return
			}
			images = append(images, path)
			r.info("💾 画像を保存しました: %s", name)
		case part.Text != "":
			r.info("ℹ️ モデルからのメッセージ: %s", part.Text)
			suffix.WriteString(" " + part.Text)
		}
	}

	hist := history.List(r.outputDir)

	if len(images) > 0 {
		r.info("🎉 タスクが完了しました")
		s := r.snapshot(domain.PhaseSuccess, "🎉 生成に成功しました"+suffix.String())
		s.Images = images
		s.History = hist
		r.emit(s)
		return
	}

	r.warnf("⚠️ タスクは終了しましたが、画像は生成されませんでした")
	s := r.snapshot(domain.PhaseNoImages, "⚠️ 画像は生成されませんでした"+suffix.String())
	s.History = hist
	r.emit(s)
}

// fail は終端の失敗スナップショットを送出します。履歴は可能な範囲で再取得します。
func (r *run) fail(kind domain.FailureKind, status string, err error) {
	dir := r.outputDir
	if dir == "" {
		dir = r.req.OutputDir
	}
	s := r.snapshot(domain.PhaseFailure, status)
	s.Failure = kind
	s.Err = err
	s.History = history.List(dir)
	r.emit(s)
}

func (r *run) snapshot(phase domain.Phase, status string) domain.Snapshot {
	s := domain.NewSnapshot(phase, status, r.log)
	s.Attempt = r.attempt
	return s
}

// emit はスナップショットを呼び出し元に渡します。呼び出し元が受信を止めた場合は false を返します。
func (r *run) emit(s domain.Snapshot) bool {
	if r.stopped {
		return false
	}
	s.RunID = r.id
	if !r.yield(s) {
		r.stopped = true
		r.logger.InfoContext(r.ctx, "呼び出し元が進捗の受信を終了しました", "phase", s.Phase)
		return false
	}
	return true
}

func (r *run) info(format string, args ...any) {
	r.event(domain.LevelInfo, slog.LevelInfo, format, args...)
}

func (r *run) warnf(format string, args ...any) {
	r.event(domain.LevelWarn, slog.LevelWarn, format, args...)
}

func (r *run) errorf(format string, args ...any) {
	r.event(domain.LevelError, slog.LevelError, format, args...)
}

func (r *run) event(level domain.EventLevel, slogLevel slog.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.log = append(r.log, domain.ProgressEvent{
		Timestamp: r.o.now(),
		Level:     level,
		Message:   msg,
	})
	r.logger.Log(r.ctx, slogLevel, msg, "attempt", r.attempt)
}

func (r *run) resolution() domain.Resolution {
	if r.req.Resolution == "" {
		return domain.DefaultResolution
	}
	return r.req.Resolution
}

func (r *run) aspectRatio() domain.AspectRatio {
	if r.req.AspectRatio == "" {
		return domain.DefaultAspectRatio
	}
	return r.req.AspectRatio
}

func (r *run) canceled(err error) bool {
	return r.ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
