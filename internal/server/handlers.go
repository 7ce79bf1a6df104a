package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"devserver/internal/assets"
)

// ErrNotFound は要求されたファイルが存在しないか、通常ファイルでないことを表す
var ErrNotFound = errors.New("not found")

// streamError はヘッダー送信後に発生した転送エラー
// この時点ではステータスを変えられないため、接続ごと中断する
type streamError struct {
	path string
	err  error
}

func (e *streamError) Error() string {
	return fmt.Sprintf("ファイル転送が中断されました (%s): %v", e.path, e.err)
}

func (e *streamError) Unwrap() error {
	return e.err
}

// Dispatcher は配信ルート配下の静的ファイルを返す http.Handler
type Dispatcher struct {
	root     string // 配信ルート（絶対パス）
	realRoot string // シンボリックリンク解決後の配信ルート
	logger   *slog.Logger

	// onAbort は転送中断時に呼ばれる（メトリクス用、nil 可）
	onAbort func()
}

// NewDispatcher は新しい Dispatcher を作成する
func NewDispatcher(root string, logger *slog.Logger) (*Dispatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("配信ルートの絶対パス化に失敗: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("配信ルートの解決に失敗: %w", err)
	}

	return &Dispatcher{
		root:     abs,
		realRoot: realRoot,
		logger:   logger,
	}, nil
}

// ServeHTTP はリクエストを処理し、エラーを 404 / 500 / 転送中断に振り分ける
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := d.dispatch(w, r)
	if err == nil {
		return
	}

	var aborted *streamError
	switch {
	case errors.Is(err, ErrNotFound):
		writeText(w, http.StatusNotFound, "Not Found")

	case errors.As(err, &aborted):
		d.logger.Warn("ファイル転送を中断しました", "path", r.URL.Path, "error", err)
		if d.onAbort != nil {
			d.onAbort()
		}
		panic(http.ErrAbortHandler)

	default:
		d.logger.Error("リクエストの処理に失敗しました", "path", r.URL.Path, "error", err)
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// dispatch はリクエストパスに応じてランディングページかファイルを返す
func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request) error {
	urlPath, err := requestPath(r)
	if err != nil {
		return fmt.Errorf("リクエストパスの解析に失敗: %w", err)
	}

	if urlPath == "" || urlPath == "/" {
		d.serveLanding(w, r)
		return nil
	}

	// ディレクトリ指定は index.html を補う
	if strings.HasSuffix(urlPath, "/") {
		urlPath += "index.html"
	}

	return d.serveFile(w, r, assets.Resolve(d.root, urlPath))
}

// serveLanding は埋め込みのランディングページを返す
func (d *Dispatcher) serveLanding(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(landingPage)))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(landingPage)
}

// serveFile は name のファイルをストリーミングで返す
// ファイル全体は読み込まず、io.Copy で少しずつ書き出す
func (d *Dispatcher) serveFile(w http.ResponseWriter, r *http.Request, name string) error {
	// シンボリックリンクを辿った実体も配信ルート内でなければならない
	canonical, err := filepath.EvalSymlinks(name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if !assets.Within(d.realRoot, canonical) {
		d.logger.Warn("配信ルート外への参照を拒否しました", "path", name, "target", canonical)
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	info, err := os.Stat(canonical)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	f, err := os.Open(canonical)
	if err != nil {
		return fmt.Errorf("ファイルを開けません: %w", err)
	}
	defer f.Close()

	h := w.Header()
	h.Set("Content-Type", assets.TypeFor(name))
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}

	if _, err := io.Copy(w, f); err != nil {
		return &streamError{path: name, err: err}
	}

	return nil
}

// requestPath はクエリを除いたURLパスをデコードして返す
func requestPath(r *http.Request) (string, error) {
	raw := r.RequestURI
	if !strings.HasPrefix(raw, "/") {
		// 絶対形式（http://host/path）やクライアント側で組み立てたリクエスト
		raw = r.URL.EscapedPath()
	}

	raw, _, _ = strings.Cut(raw, "?")
	return url.PathUnescape(raw)
}

// writeText はプレーンテキストのレスポンスを書き込む
func writeText(w http.ResponseWriter, status int, body string) {
	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
