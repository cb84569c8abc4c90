package domain

// MaxReferenceImages は 1 リクエストに同梱できる参照画像の上限枚数です。
const MaxReferenceImages = 10

// Resolution は生成画像の解像度指定です。
type Resolution string

const (
	Resolution1K Resolution = "1K"
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"

	DefaultResolution = Resolution2K
)

// Resolutions は選択可能な解像度を UI 表示順で返します。
func Resolutions() []Resolution {
	return []Resolution{Resolution1K, Resolution2K, Resolution4K}
}

// Valid は定義済みの解像度かどうかを返します。
func (r Resolution) Valid() bool {
	for _, v := range Resolutions() {
		if r == v {
			return true
		}
	}
	return false
}

// AspectRatio は生成画像の縦横比です。
type AspectRatio string

const DefaultAspectRatio AspectRatio = "16:9"

// AspectRatios は選択可能な縦横比を UI 表示順で返します。
func AspectRatios() []AspectRatio {
	return []AspectRatio{"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"}
}

// Valid は定義済みの縦横比かどうかを返します。
func (a AspectRatio) Valid() bool {
	for _, v := range AspectRatios() {
		if a == v {
			return true
		}
	}
	return false
}

// GenerationRequest はユーザー操作 1 回分の画像生成要求です。
// ReferenceImages は UI 境界で正規化済みのファイルパス列であることを前提とします。
type GenerationRequest struct {
	APIKey          string
	Prompt          string
	ReferenceImages []string
	Resolution      Resolution
	AspectRatio     AspectRatio
	OutputDir       string
}

// GenerationResult は生成完了時に UI へ返す最終結果です。
type GenerationResult struct {
	Images  []string // 今回保存した画像のパス（空の場合あり）
	Status  string
	History []string // 出力ディレクトリの更新日時降順リスト
}
