package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server     ServerConfig     `toml:"server"`
	Data       DataConfig       `toml:"data"`
	Session    SessionConfig    `toml:"session"`
	Forecast   ForecastConfig   `toml:"forecast"`
	Validation ValidationConfig `toml:"validation"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port        int  `toml:"port"`
	DevMode     bool `toml:"dev_mode"`
	OpenBrowser bool `toml:"open_browser"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir          string `toml:"data_dir"`
	MaxUploadMB      int    `toml:"max_upload_mb"`
	DatasetRetention string `toml:"dataset_retention"` // 数据集缓存保留时长，如 "168h"
}

// SessionConfig 会话配置
type SessionConfig struct {
	TTL           string `toml:"ttl"`
	SweepInterval string `toml:"sweep_interval"`
}

// ForecastConfig 模型默认参数
type ForecastConfig struct {
	Frequency          string  `toml:"frequency"` // 未来日期频率，默认 "M"（月末）
	NChangepoints      int     `toml:"n_changepoints"`
	ChangepointRange   float64 `toml:"changepoint_range"`
	IntervalWidth      float64 `toml:"interval_width"`
	HolidaysPriorScale float64 `toml:"holidays_prior_scale"`
}

// ValidationConfig 交叉验证配置
type ValidationConfig struct {
	Workers       int     `toml:"workers"` // 0 表示使用 CPU 核数
	RollingWindow float64 `toml:"rolling_window"`
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	PortSpecified bool
	Path          string
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:        8501,
			DevMode:     false,
			OpenBrowser: true,
		},
		Data: DataConfig{
			DataDir:          "data",
			MaxUploadMB:      50,
			DatasetRetention: "168h",
		},
		Session: SessionConfig{
			TTL:           "2h",
			SweepInterval: "1m",
		},
		Forecast: ForecastConfig{
			Frequency:          "M",
			NChangepoints:      25,
			ChangepointRange:   0.8,
			IntervalWidth:      0.8,
			HolidaysPriorScale: 10,
		},
		Validation: ValidationConfig{
			Workers:       0,
			RollingWindow: 0.1,
		},
	}
}

// portSpecified 判断 toml 中是否显式写了 server.port
func portSpecified(data []byte) bool {
	var probe struct {
		Server struct {
			Port *int `toml:"port"`
		} `toml:"server"`
	}
	if err := toml.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Server.Port != nil
}

// exeRelative 以可执行文件所在目录为基准解析相对路径
func exeRelative(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	exe, err := os.Executable()
	if err != nil {
		return path
	}
	return filepath.Join(filepath.Dir(exe), path)
}

// DefaultConfigPath 默认配置文件路径：可执行文件同目录下的 config.toml
func DefaultConfigPath() string {
	return exeRelative("config.toml")
}

// LoadConfigWithInfo 从 config.toml 加载配置并返回元信息
// path 为空时使用默认路径
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	info := LoadConfigInfo{Path: path}
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// 配置文件不存在，使用默认配置
			applyEnv(config, &info)
			return config, info, nil
		}
		return nil, info, err
	}

	info.PortSpecified = portSpecified(data)

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, info, err
	}

	applyEnv(config, &info)
	return config, info, nil
}

// 环境变量覆盖（用于容器 / 本地运行）
func applyEnv(config *AppConfig, info *LoadConfigInfo) {
	if v := os.Getenv("TRENDCAST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			config.Server.Port = port
			info.PortSpecified = true
		}
	}
	if v := os.Getenv("TRENDCAST_DATA_DIR"); v != "" {
		config.Data.DataDir = v
	}
}

// LoadConfig 从 config.toml 加载配置
func LoadConfig(path string) (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo(path)
	return config, err
}

// SaveConfig 保存配置到 config.toml
func SaveConfig(config *AppConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir 创建数据目录并返回解析后的路径
// 相对路径以可执行文件所在目录为基准
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := exeRelative(config.Data.DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("create data dir %s: %w", dataDir, err)
	}
	return dataDir, nil
}

// ParseDuration 解析配置中的时长字符串，非法或为空时返回 fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SessionTTL 会话过期时长
func (c *AppConfig) SessionTTL() time.Duration {
	return ParseDuration(c.Session.TTL, 2*time.Hour)
}

// SweepInterval 过期清理周期
func (c *AppConfig) SweepInterval() time.Duration {
	return ParseDuration(c.Session.SweepInterval, time.Minute)
}

// DatasetRetention 数据集缓存保留时长
func (c *AppConfig) DatasetRetention() time.Duration {
	return ParseDuration(c.Data.DatasetRetention, 7*24*time.Hour)
}

// MaxUploadBytes 上传文件大小上限
func (c *AppConfig) MaxUploadBytes() int64 {
	if c.Data.MaxUploadMB <= 0 {
		return 50 << 20
	}
	return int64(c.Data.MaxUploadMB) << 20
}
