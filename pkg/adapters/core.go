package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shouni/gemini-image-studio/pkg/imgutil"
	"google.golang.org/genai"
)

// ReferenceLoader はローカルパスの画像を読み込み、送信用のバイト列と MIME タイプを返します。
type ReferenceLoader func(path string) ([]byte, string, error)

// GeminiImageCore は参照画像を genai.Part に変換する共通ロジックを保持するコンポーネントです。
type GeminiImageCore struct {
	load ReferenceLoader
}

// NewGeminiImageCore は GeminiImageCore を生成します。load が nil の場合は imgutil.LoadReference を使います。
func NewGeminiImageCore(load ReferenceLoader) *GeminiImageCore {
	if load == nil {
		load = imgutil.LoadReference
	}
	return &GeminiImageCore{load: load}
}

// PrepareImagePart はローカルの参照画像をデコードして InlineData パーツに変換します。
func (c *GeminiImageCore) PrepareImagePart(ctx context.Context, path string) (*genai.Part, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("参照画像のパスが空です")
	}

	data, mimeType, err := c.load(path)
	if err != nil {
		return nil, err
	}

	part, err := c.ToPart(data)
	if err != nil {
		return nil, err
	}
	if mimeType != "" {
		part.InlineData.MIMEType = mimeType
	}
	return part, nil
}

// ToPart はバイト列を genai.Part (InlineData) に変換します。
func (c *GeminiImageCore) ToPart(data []byte) (*genai.Part, error) {
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		slog.Warn("MIMEタイプが画像ではないためPartに変換できませんでした", "detected_mime_type", mimeType)
		return nil, fmt.Errorf("画像ではないデータです (detected: %s)", mimeType)
	}
	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: mimeType,
			Data:     data,
		},
	}, nil
}
