package generator

import (
	"context"

	"google.golang.org/genai"
)

// ImageModel はリモートの画像生成サービスとの境界です。
type ImageModel interface {
	// GenerateImages はパーツ列（先頭がプロンプト、以降が参照画像）を送信し、応答パーツを順序どおりに返します。
	GenerateImages(ctx context.Context, parts []*genai.Part, cfg *genai.GenerateContentConfig) ([]*genai.Part, error)
}

// ConfigChecker は生成設定を送信前に検証できる ImageModel が実装します。
type ConfigChecker interface {
	CheckConfig(cfg *genai.GenerateContentConfig) error
}

// ClientFactory は API キーから ImageModel を生成します。キーの形式不正などで失敗することがあります。
type ClientFactory func(ctx context.Context, apiKey string) (ImageModel, error)

// ImagePreparer は参照画像のパスを送信用のパーツに変換します。
type ImagePreparer interface {
	PrepareImagePart(ctx context.Context, path string) (*genai.Part, error)
}

// ImageWriter はモデルが返した画像データを path に保存します。
type ImageWriter func(data []byte, path string) error
