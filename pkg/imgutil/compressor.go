package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultJPEGQuality は参照画像を送信用に再エンコードするときの品質です。
	DefaultJPEGQuality = 75
	jpegMimeType       = "image/jpeg"
)

// passThrough はそのまま送信できる形式と MIME タイプの対応です。
var passThrough = map[string]string{
	"png":  "image/png",
	"jpeg": jpegMimeType,
	"webp": "image/webp",
}

// encodePNG は SavePNG の書き込み処理です。
var encodePNG = func(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}

// CompressToJPEG は画像データ（PNG, GIF, JPEG, WebP 等）をJPEG形式に圧縮します。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadReference はローカルの参照画像を読み込み、送信用のバイト列と MIME タイプを返します。
// PNG / JPEG / WebP はデコードできることを確認したうえで元のバイト列を返し、
// それ以外の形式 (GIF, BMP, TIFF) は JPEG に変換します。
func LoadReference(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("画像を開けません (%s): %w", filepath.Base(path), err)
	}

	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("画像をデコードできません (%s): %w", filepath.Base(path), err)
	}
	if mime, ok := passThrough[format]; ok {
		return data, mime, nil
	}

	compressed, err := CompressToJPEG(data, DefaultJPEGQuality)
	if err != nil {
		return nil, "", fmt.Errorf("画像のエンコードに失敗しました (%s): %w", filepath.Base(path), err)
	}
	return compressed, jpegMimeType, nil
}

// SavePNG はモデルが返した画像データをデコードし、PNG として保存します。
// 書き込みに失敗した場合は途中までのファイルを残しません。
func SavePNG(data []byte, path string) error {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("画像データのデコードに失敗しました: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodePNG(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("PNGの書き込みに失敗しました: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
