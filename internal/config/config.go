package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
// 起動時に一度だけ構築され、以降は読み取り専用として扱う
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Assets    AssetsConfig    `yaml:"assets" toml:"assets"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Ops       OpsConfig       `yaml:"ops" toml:"ops"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`                                 // リッスンするホスト
	Port int    `yaml:"port" toml:"port" validate:"min=1,max=65535"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"-" toml:"-" validate:"gte=0"` // 読み込みタイムアウト
	WriteTimeout    time.Duration `yaml:"-" toml:"-" validate:"gte=0"` // 書き込みタイムアウト（0で無効）
	ShutdownTimeout time.Duration `yaml:"-" toml:"-" validate:"gt=0"`  // グレースフルシャットダウンの猶予
}

// AssetsConfig は配信する静的ファイルの設定
type AssetsConfig struct {
	// Root は配信ルートの絶対パス。これより上位のファイルは決して配信しない
	Root string `yaml:"root" toml:"root" validate:"required,dir"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=auto text json"`
}

// OpsConfig は運用エンドポイント（/healthz, /status, /metrics）の設定
// Port が 0 の場合は起動しない
type OpsConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port" validate:"min=0,max=65535"`
}

// RateLimitConfig はクライアント単位のレート制限の設定
// RPS が 0 の場合は無効
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" toml:"rps" validate:"gte=0"`
	Burst int     `yaml:"burst" toml:"burst" validate:"gte=0"`
}

// Enabled はレート制限が有効かどうかを返す
func (r RateLimitConfig) Enabled() bool {
	return r.RPS > 0
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5173,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // ストリーミング用にタイムアウト無効化
			ShutdownTimeout: 5 * time.Second,
		},
		Assets: AssetsConfig{
			Root: ".",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Ops: OpsConfig{
			Host: "127.0.0.1",
			Port: 0,
		},
	}
}

// Load は設定を読み込む
// 優先順位: デフォルト値 < 設定ファイル(CONFIG_FILE) < 環境変数（.env を含む）
func Load() (*Config, error) {
	// .env ファイルを読み込む（存在しなければ無視）
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	root, err := filepath.Abs(cfg.Assets.Root)
	if err != nil {
		return nil, fmt.Errorf("配信ルートの絶対パス化に失敗: %w", err)
	}
	cfg.Assets.Root = root

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// loadFile は拡張子に応じてYAMLまたはTOMLの設定ファイルを読み込む
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("未対応の設定ファイル形式です: %q", ext)
	}
	if err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}

	return nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Assets.Root = getEnvOrDefault("ASSETS_ROOT", c.Assets.Root)
	c.Log.Level = strings.ToLower(getEnvOrDefault("LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(getEnvOrDefault("LOG_FORMAT", c.Log.Format))
	c.Ops.Host = getEnvOrDefault("OPS_HOST", c.Ops.Host)
	c.Ops.Port = getEnvAsIntOrDefault("OPS_PORT", c.Ops.Port)
	c.RateLimit.RPS = getEnvAsFloatOrDefault("RATE_LIMIT_RPS", c.RateLimit.RPS)
	c.RateLimit.Burst = getEnvAsIntOrDefault("RATE_LIMIT_BURST", c.RateLimit.Burst)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("無効な設定値 %s=%v (%s)", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return err
	}

	if !filepath.IsAbs(c.Assets.Root) {
		return fmt.Errorf("配信ルートは絶対パスである必要があります: %s", c.Assets.Root)
	}

	if c.RateLimit.Enabled() && c.RateLimit.Burst < 1 {
		return fmt.Errorf("レート制限が有効な場合 burst は1以上が必要です: %d", c.RateLimit.Burst)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// OpsAddress は運用エンドポイントのリッスンアドレスを返す
func (c *Config) OpsAddress() string {
	return net.JoinHostPort(c.Ops.Host, strconv.Itoa(c.Ops.Port))
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていないか数値でない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
