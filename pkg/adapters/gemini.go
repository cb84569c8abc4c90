package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"github.com/shouni/gemini-image-studio/pkg/generator"
	"google.golang.org/genai"
)

const (
	// DefaultModel は解像度指定に対応した画像生成モデルです。
	DefaultModel = "gemini-3-pro-image-preview"

	modalityImage = "IMAGE"
)

var (
	ErrMissingAPIKey      = errors.New("APIキーが指定されていません")
	ErrInvalidAPIKey      = errors.New("APIキーの形式が不正です")
	ErrConfigIncompatible = errors.New("クライアントがこの生成設定に対応していません")
)

// imageSizeUnsupported は ImageSize (1K 以外) を受け付けないモデルのプレフィックスです。
var imageSizeUnsupported = []string{
	"gemini-2.5-flash-image",
}

// ClientOptions は Gemini クライアント生成時の設定です。
// プロキシはプロセス環境変数ではなく、ここで明示的に渡します。
type ClientOptions struct {
	Model    string
	ProxyURL string
	Timeout  time.Duration
}

// GeminiModel は genai.Client をラップした画像生成クライアントです。
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel は API キーと接続設定から GeminiModel を初期化します。
func NewGeminiModel(ctx context.Context, apiKey string, opts ClientOptions) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.IndexFunc(apiKey, isKeyBreaking) >= 0 {
		return nil, ErrInvalidAPIKey
	}

	httpClient, err := newHTTPClient(opts)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	return &GeminiModel{client: client, model: model}, nil
}

// Factory は opts を固定した generator.ClientFactory を返します。
func Factory(opts ClientOptions) generator.ClientFactory {
	return func(ctx context.Context, apiKey string) (generator.ImageModel, error) {
		m, err := NewGeminiModel(ctx, apiKey, opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// Model は使用するモデル名を返します。
func (m *GeminiModel) Model() string {
	return m.model
}

// CheckConfig は生成設定がこのモデルで扱える形かどうかを検証します。
func (m *GeminiModel) CheckConfig(cfg *genai.GenerateContentConfig) error {
	return checkImageConfig(m.model, cfg)
}

// GenerateImages はプロンプトと参照画像のパーツを 1 つのユーザーコンテンツにまとめて送信し、
// 最初の候補のパーツを順序どおりに返します。
func (m *GeminiModel) GenerateImages(ctx context.Context, parts []*genai.Part, cfg *genai.GenerateContentConfig) ([]*genai.Part, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	slog.DebugContext(ctx, "Geminiに画像生成をリクエストします", "model", m.model, "parts", len(parts))
	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, cfg)
	if err != nil {
		return nil, err
	}
	return responseParts(resp), nil
}

// responseParts は最初の候補のパーツを取り出します。
// 画像もテキストもなくブロック理由だけがある場合は、理由をテキストパーツとして返します。
func responseParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil {
		return nil
	}

	// 現在の仕様では、Geminiからの最初の候補 (Candidate) のみを利用する。
	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		if candidate.Content != nil && len(candidate.Content.Parts) > 0 {
			return candidate.Content.Parts
		}
		switch candidate.FinishReason {
		case "", genai.FinishReasonUnspecified, genai.FinishReasonStop:
		default:
			return []*genai.Part{genai.NewPartFromText(fmt.Sprintf("生成が中断されました (FinishReason: %s)", candidate.FinishReason))}
		}
		return nil
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		msg := fmt.Sprintf("プロンプトがブロックされました (%s)", fb.BlockReason)
		if fb.BlockReasonMessage != "" {
			msg += ": " + fb.BlockReasonMessage
		}
		return []*genai.Part{genai.NewPartFromText(msg)}
	}
	return nil
}

func checkImageConfig(model string, cfg *genai.GenerateContentConfig) error {
	if cfg == nil || cfg.ImageConfig == nil {
		return fmt.Errorf("%w: 画像設定がありません", ErrConfigIncompatible)
	}
	if !slices.Contains(cfg.ResponseModalities, modalityImage) {
		return fmt.Errorf("%w: 出力モダリティに IMAGE が含まれていません", ErrConfigIncompatible)
	}

	size := domain.Resolution(cfg.ImageConfig.ImageSize)
	if size != "" && !size.Valid() {
		return fmt.Errorf("%w: 未対応の解像度 %q", ErrConfigIncompatible, size)
	}
	ratio := domain.AspectRatio(cfg.ImageConfig.AspectRatio)
	if ratio != "" && !ratio.Valid() {
		return fmt.Errorf("%w: 未対応の縦横比 %q", ErrConfigIncompatible, ratio)
	}

	for _, prefix := range imageSizeUnsupported {
		if strings.HasPrefix(model, prefix) && size != "" && size != domain.Resolution1K {
			return fmt.Errorf("%w: モデル %s は解像度 %s を指定できません", ErrConfigIncompatible, model, size)
		}
	}
	return nil
}

// newHTTPClient はプロキシとタイムアウトを反映した HTTP クライアントを作ります。
// ProxyURL が空の場合は環境変数のプロキシ設定も使いません。
func newHTTPClient(opts ClientOptions) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil

	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("プロキシURLが不正です: %w", err)
		}
		switch u.Scheme {
		case "http", "https", "socks5":
		default:
			return nil, fmt.Errorf("プロキシURLのスキームが不正です: %q", u.Scheme)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("プロキシURLにホストがありません: %q", opts.ProxyURL)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}, nil
}

func isKeyBreaking(r rune) bool {
	return r <= ' ' || r == 0x7f
}
