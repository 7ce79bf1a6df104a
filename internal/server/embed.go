package server

import _ "embed"

// landingPage は "/" で返す固定のランディングページ
// ファイルシステムを経由せず、バイナリに埋め込んだものをそのまま返す
//
//go:embed landing.html
var landingPage []byte

// EntryPage はランディングページと起動メッセージに載せる既知のページ
type EntryPage struct {
	Label string // 起動メッセージでの表示名
	Name  string // 配信ルートからの相対ファイル名
}

// EntryPages は既知のエントリーページ一覧（landing.html と一致させること）
var EntryPages = []EntryPage{
	{Label: "管理ページ", Name: "achievement_reward_admin.html"},
	{Label: "フロントページ", Name: "achievement_reward_front.html"},
}
