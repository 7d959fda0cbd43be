package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pymirror/pymirror/internal/storage"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// MirrorConfig 描述镜像进程的全局行为：选中的存储后端、镜像根目录、
// 日志输出与对外只读服务的监听参数。
type MirrorConfig struct {
	StorageBackend string   `mapstructure:"StorageBackend"`
	Directory      string   `mapstructure:"Directory"`
	LogLevel       string   `mapstructure:"LogLevel"`
	LogFilePath    string   `mapstructure:"LogFilePath"`
	LogMaxSize     int      `mapstructure:"LogMaxSize"`
	LogMaxBackups  int      `mapstructure:"LogMaxBackups"`
	LogCompress    bool     `mapstructure:"LogCompress"`
	ListenPort     int      `mapstructure:"ListenPort"`
	ReadTimeout    Duration `mapstructure:"ReadTimeout"`
}

// S3Config 是 s3 后端的私有配置，仅在 StorageBackend = "s3" 时生效。
type S3Config struct {
	Endpoint  string `mapstructure:"Endpoint"`
	AccessKey string `mapstructure:"AccessKey"`
	SecretKey string `mapstructure:"SecretKey"`
	Bucket    string `mapstructure:"Bucket"`
	Region    string `mapstructure:"Region"`
	Secure    bool   `mapstructure:"Secure"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Mirror MirrorConfig `mapstructure:",squash"`
	S3     S3Config     `mapstructure:"S3"`
}

// StorageSettings 把配置压平为注册表构造后端所需的最小视图。
func (c *Config) StorageSettings() storage.Settings {
	return storage.Settings{
		BackendName: c.Mirror.StorageBackend,
		Directory:   c.Mirror.Directory,
		Options: map[string]string{
			"endpoint":   c.S3.Endpoint,
			"access_key": c.S3.AccessKey,
			"secret_key": c.S3.SecretKey,
			"bucket":     c.S3.Bucket,
			"region":     c.S3.Region,
			"secure":     strconv.FormatBool(c.S3.Secure),
		},
	}
}
