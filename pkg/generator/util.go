package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/shouni/gemini-image-studio/pkg/domain"
	"google.golang.org/genai"
)

// isOverloaded はエラーメッセージからサーバー混雑（一時的な障害）かどうかを判定します。
func isOverloaded(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "503") ||
		strings.Contains(strings.ToLower(msg), "overloaded") ||
		strings.Contains(msg, "UNAVAILABLE")
}

// needsNetworkHint は SSL や接続系のエラーかどうかを判定します。
func needsNetworkHint(msg string) bool {
	return strings.Contains(msg, "SSL") || strings.Contains(strings.ToLower(msg), "connection")
}

// outputFilename は gemini_<解像度>_<パーツ番号>_<UNIX時刻>.png 形式のファイル名を返します。
func outputFilename(res domain.Resolution, index int, now time.Time) string {
	return fmt.Sprintf("gemini_%s_%d_%d.png", res, index, now.Unix())
}

// buildConfig は画像のみを出力する生成設定を組み立てます。
func buildConfig(res domain.Resolution, ratio domain.AspectRatio) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		ImageConfig: &genai.ImageConfig{
			ImageSize:   string(res),
			AspectRatio: string(ratio),
		},
	}
}
