package assets

import (
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	root := filepath.FromSlash("/srv/frontend")

	testCases := []struct {
		name        string
		requestPath string
		want        string
	}{
		{"ルート", "/", root},
		{"空文字", "", root},
		{"通常のファイル", "/style.css", filepath.Join(root, "style.css")},
		{"サブディレクトリ", "/js/app.js", filepath.Join(root, "js", "app.js")},
		{"index補完後", "/docs/index.html", filepath.Join(root, "docs", "index.html")},
		{"カレント参照", "/./a/./b.txt", filepath.Join(root, "a", "b.txt")},
		{"重複スラッシュ", "//a///b.txt", filepath.Join(root, "a", "b.txt")},
		{"内部で閉じる親参照", "/a/b/../c.txt", filepath.Join(root, "a", "c.txt")},
		{"ルートを越える親参照", "/../secret", filepath.Join(root, "secret")},
		{"深い親参照", "/../../etc/passwd", filepath.Join(root, "etc", "passwd")},
		{"途中から越える親参照", "/a/../../b", filepath.Join(root, "b")},
		{"先頭スラッシュなし", "../../etc/passwd", filepath.Join(root, "etc", "passwd")},
		{"親参照のみ", "/..", root},
		{"末尾の親参照", "/a/..", root},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(root, tc.requestPath)
			if got != tc.want {
				t.Errorf("Resolve(%q) = %q, want %q", tc.requestPath, got, tc.want)
			}
			if !Within(root, got) {
				t.Errorf("Resolve(%q) = %q が配信ルートの外を指しています", tc.requestPath, got)
			}
		})
	}
}

// 正規化は結合の前に行われるため、どんな入力でもルートの外に出ない
func TestResolveNeverEscapes(t *testing.T) {
	root := t.TempDir()
	inputs := []string{
		"/../../../../../../etc/passwd",
		"/a/b/c/../../../../../x",
		"/..%2f..%2fetc/passwd", // デコードされていない場合はただのファイル名
		"/....//....//etc",
		"/.../x",
		"/a/./../../../b/./../../c",
		"..",
		"../",
		"/../" + filepath.Base(root) + "-sibling/file",
	}

	for _, in := range inputs {
		got := Resolve(root, in)
		if !Within(root, got) {
			t.Errorf("Resolve(%q) = %q が配信ルートの外を指しています", in, got)
		}
	}
}

func TestWithin(t *testing.T) {
	root := filepath.FromSlash("/srv/frontend")

	testCases := []struct {
		target string
		want   bool
	}{
		{"/srv/frontend", true},
		{"/srv/frontend/a.txt", true},
		{"/srv/frontend/a/b/c", true},
		{"/srv/frontend/..a", true},
		{"/srv", false},
		{"/srv/frontend-other/a.txt", false},
		{"/etc/passwd", false},
	}

	for _, tc := range testCases {
		target := filepath.FromSlash(tc.target)
		if got := Within(root, target); got != tc.want {
			t.Errorf("Within(%q, %q) = %v, want %v", root, target, got, tc.want)
		}
	}
}
