package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// AppName は設定ディレクトリ名として使われる
const AppName = "smoothcam"

// Config はアプリケーション全体の設定を表す構造体
type Config struct {
	Smoothing  SmoothingConfig  `toml:"smoothing" json:"smoothing"`
	Loop       LoopConfig       `toml:"loop" json:"loop"`
	Simulation SimulationConfig `toml:"simulation" json:"simulation"`
	API        APIConfig        `toml:"api" json:"api"`
}

// SmoothingConfig はカメラ平滑化の設定
// フレーム毎に読み直されるので実行中に変更できる
type SmoothingConfig struct {
	SmoothTimePosition float64 `toml:"smooth_time_position" json:"smooth_time_position"` // 秒
	SmoothTimeRotation float64 `toml:"smooth_time_rotation" json:"smooth_time_rotation"` // 秒
	FieldOfView        float64 `toml:"field_of_view" json:"field_of_view"`               // 度
}

// LoopConfig はフレームループの設定
type LoopConfig struct {
	FrameRate float64 `toml:"frame_rate" json:"frame_rate"`
	Clock     string  `toml:"clock" json:"clock"` // "monotonic" または "wall"
}

// SimulationConfig は擬似ヘッドセットの設定
type SimulationConfig struct {
	Jitter    float64 `toml:"jitter" json:"jitter"`         // 位置ノイズの振幅（メートル）
	Sway      float64 `toml:"sway" json:"sway"`             // 頭の揺れの振幅（度）
	ZoomLevel float64 `toml:"zoom_level" json:"zoom_level"` // FOVズーム倍率
}

// APIConfig はAPIサーバーの設定
type APIConfig struct {
	Port int `toml:"port" json:"port"`
}

// 設定値の検証エラー
var ErrInvalidConfig = errors.New("設定値が不正です")

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Smoothing: SmoothingConfig{
			SmoothTimePosition: 0.1,
			SmoothTimeRotation: 0.1,
			FieldOfView:        60,
		},
		Loop: LoopConfig{
			FrameRate: 90,
			Clock:     "monotonic",
		},
		Simulation: SimulationConfig{
			Jitter:    0.002,
			Sway:      5,
			ZoomLevel: 1,
		},
		API: APIConfig{
			Port: 8080,
		},
	}
}

// Validate は設定値の範囲を検証する
func (c *Config) Validate() error {
	// NaNは範囲チェックをすり抜けるので先に弾く
	for name, v := range map[string]float64{
		"smooth_time_position": c.Smoothing.SmoothTimePosition,
		"smooth_time_rotation": c.Smoothing.SmoothTimeRotation,
		"field_of_view":        c.Smoothing.FieldOfView,
		"frame_rate":           c.Loop.FrameRate,
		"jitter":               c.Simulation.Jitter,
		"sway":                 c.Simulation.Sway,
		"zoom_level":           c.Simulation.ZoomLevel,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %sは有限の値である必要があります", ErrInvalidConfig, name)
		}
	}

	s := c.Smoothing
	if s.SmoothTimePosition < 0 || s.SmoothTimeRotation < 0 {
		return fmt.Errorf("%w: smooth_timeは0以上である必要があります", ErrInvalidConfig)
	}
	if s.FieldOfView <= 0 || s.FieldOfView >= 180 {
		return fmt.Errorf("%w: field_of_view=%v", ErrInvalidConfig, s.FieldOfView)
	}
	if c.Loop.FrameRate <= 0 {
		return fmt.Errorf("%w: frame_rate=%v", ErrInvalidConfig, c.Loop.FrameRate)
	}
	switch c.Loop.Clock {
	case "", "monotonic", "wall":
	default:
		return fmt.Errorf("%w: clock=%q", ErrInvalidConfig, c.Loop.Clock)
	}
	return nil
}

// GetDefaultConfigDir はデフォルトの設定ディレクトリを返す
func GetDefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// LoadConfig は設定ファイルから設定を読み込む
func LoadConfig(configPath string) (*Config, error) {
	// デフォルト設定を用意
	config := DefaultConfig()

	// ファイルが存在しない場合はデフォルト設定を保存して返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}
		return config, nil
	}

	// 設定ファイルの読み込み
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return config, fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
	}

	if err := config.Validate(); err != nil {
		return DefaultConfig(), err
	}

	return config, nil
}

// SaveConfig は設定をTOMLファイルに保存する
func SaveConfig(configPath string, config *Config) error {
	// 設定ディレクトリの作成
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	// ファイルを開く（なければ作成）
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	// TOML形式でエンコードして書き込み
	encoder := toml.NewEncoder(f)
	return encoder.Encode(config)
}
