package history

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultDirName は出力先が未指定のときに使うディレクトリ名です。
const DefaultDirName = "outputs"

var imageExts = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

// ResolveDir は空の場合に "<作業ディレクトリ>/outputs" を返します。
func ResolveDir(dir string) string {
	if dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(wd, DefaultDirName)
}

// IsImageFile は履歴として扱う拡張子かどうかを大文字小文字を無視して判定します。
func IsImageFile(name string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// List は出力ディレクトリ内の画像ファイルを更新日時の新しい順に返します。
// ディレクトリが存在しない場合や列挙に失敗した場合は空のリストを返し、エラーは呼び出し元に伝えません。
func List(dir string) []string {
	dir = ResolveDir(dir)

	files, err := list(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("履歴の読み込みに失敗しました", "dir", dir, "error", err)
		}
		return []string{}
	}
	return files
}

type entry struct {
	path    string
	modTime time.Time
}

func list(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !IsImageFile(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{
			path:    filepath.Join(dir, de.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].modTime.After(entries[j].modTime)
	})

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.path
	}
	return paths, nil
}
