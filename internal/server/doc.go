// Package server は、静的ファイルを配信するHTTPサーバーを管理します。
//
// このパッケージは、HTTPサーバーの起動、リクエストの振り分け、
// ファイルのストリーミング配信、運用エンドポイントの提供を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理（リッスン、起動メッセージ、グレースフルシャットダウン）
//   - リクエストの振り分け（ランディングページ、index.html 補完、ファイル配信）
//   - ファイル全体をメモリに載せないストリーミング配信
//   - 404 / 500 のエラーレスポンス
//   - ミドルウェア（パニック復帰、リクエストID、アクセスログ、メトリクス、レート制限）
//   - 運用エンドポイント（/healthz, /status, /metrics）
//
// 仕様:
//   - ルーティングとミドルウェアは gin を使用
//   - GET と HEAD のみ受け付け、それ以外は 405
//   - 配信ルートの外側のファイルは決して返さない
//   - 設定は起動時に一度だけ読み込み、リクエスト間で可変状態を共有しない
package server
