// Package assets は、URLパスから配信ファイルへの解決と Content-Type の決定を担います。
//
// 責務:
//   - リクエストパスを配信ルート配下のファイルシステムパスへ解決する
//   - 配信ルートの外側（親ディレクトリやシンボリックリンク先）への脱出を防ぐ
//   - 拡張子から MIME タイプを決定する
//
// 仕様:
//   - パスの正規化は必ずルートとの結合より前に行う
//   - 解決は常に成功し、存在確認は呼び出し側で行う
//   - MIME テーブルは起動後に変更されない静的データ
//   - 副作用を持たないため、並行に呼び出して問題ない
package assets
