package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyMirrorDefaults(&cfg.Mirror)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 本地后端把 Directory 当作文件系统路径使用，提前归一为绝对路径；
	// 对象存储后端将同一字段解释为对象键前缀，归一无副作用。
	absDir, err := filepath.Abs(cfg.Mirror.Directory)
	if err != nil {
		return nil, fmt.Errorf("无法解析镜像根目录: %w", err)
	}
	if cfg.Mirror.StorageBackend == "filesystem" {
		cfg.Mirror.Directory = absDir
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("StorageBackend", "filesystem")
	v.SetDefault("Directory", "./srv/pymirror")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("ListenPort", 8080)
	v.SetDefault("ReadTimeout", "30s")
}

func applyMirrorDefaults(m *MirrorConfig) {
	m.StorageBackend = strings.ToLower(strings.TrimSpace(m.StorageBackend))
	if m.StorageBackend == "" {
		m.StorageBackend = "filesystem"
	}
	if m.ListenPort == 0 {
		m.ListenPort = 8080
	}
	if m.ReadTimeout.DurationValue() == 0 {
		m.ReadTimeout = Duration(30 * time.Second)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
