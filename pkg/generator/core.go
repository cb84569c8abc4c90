package generator

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/imgutil"
)

// Orchestrator はプロンプトと参照画像から画像を生成し、進捗をスナップショット列として返します。
type Orchestrator struct {
	newClient   ClientFactory
	preparer    ImagePreparer
	writeImage  ImageWriter
	maxAttempts int
	retryDelay  time.Duration
	newTimer    func() backoff.Timer
	now         func() time.Time
	logger      *slog.Logger
}

// New は依存関係を注入して Orchestrator を初期化します。
func New(newClient ClientFactory, preparer ImagePreparer, opts ...Option) (*Orchestrator, error) {
	if newClient == nil {
		return nil, fmt.Errorf("newClient (ClientFactory) is required")
	}
	if preparer == nil {
		return nil, fmt.Errorf("preparer (ImagePreparer) is required")
	}

	o := &Orchestrator{
		newClient:   newClient,
		preparer:    preparer,
		writeImage:  imgutil.SavePNG,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		newTimer:    func() backoff.Timer { return nil },
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Generate は 1 回分の生成処理を開始するイテレーターを返します。
//
// 返されるシーケンスは単一ゴルーチンで逐次実行され、最後の要素が必ず終端スナップショットになります。
// ctx のキャンセルはリモート呼び出しの直前と再試行の待機中に検査されます。
// 呼び出し元がループを抜けた場合、それ以降の処理は行いません。
func (o *Orchestrator) Generate(ctx context.Context, req domain.GenerationRequest) iter.Seq[domain.Snapshot] {
	return func(yield func(domain.Snapshot) bool) {
		id := uuid.NewString()
		r := &run{
			o:      o,
			ctx:    ctx,
			req:    req,
			yield:  yield,
			id:     id,
			logger: o.logger.With("run_id", id),
		}
		r.execute()
	}
}

// Collect はシーケンスを最後まで読み、終端スナップショットを返します。
// onSnapshot が nil でなければ各スナップショットで呼び出します。
func Collect(seq iter.Seq[domain.Snapshot], onSnapshot func(domain.Snapshot)) (domain.Snapshot, bool) {
	var last domain.Snapshot
	for s := range seq {
		if onSnapshot != nil {
			onSnapshot(s)
		}
		last = s
	}
	return last, last.Terminal()
}
