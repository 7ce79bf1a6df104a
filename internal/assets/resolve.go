package assets

import (
	"path"
	"path/filepath"
	"strings"
)

// Resolve はリクエストパスを root 配下のファイルシステムパスに解決する
//
// requestPath は "/" 始まりとみなして正規化するため、".." は root より上に
// 遡れない。結果は常に root 自身か root の子孫になる。
func Resolve(root, requestPath string) string {
	// 結合前に正規化する。先頭に "/" を付けることで ".." はルートで止まる
	cleaned := path.Clean("/" + requestPath)
	rel := strings.TrimLeft(cleaned, "/")
	if rel == "" {
		return filepath.Clean(root)
	}

	rel = filepath.FromSlash(rel)
	// Windows のバックスラッシュや予約名など、OS 上でローカルと言えないパスは拒否
	if !filepath.IsLocal(rel) {
		return filepath.Clean(root)
	}

	return filepath.Join(root, rel)
}

// Within は target が root 自身または root の子孫であるかを返す
// どちらも正規化済み（Clean 済み）のパスを想定する
func Within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
