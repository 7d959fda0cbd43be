package config

import (
	"errors"
	"strings"

	"github.com/pymirror/pymirror/internal/storage"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动进程。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	m := c.Mirror
	if m.Directory == "" {
		return newFieldError("Directory", "不能为空")
	}
	if m.ListenPort <= 0 || m.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if m.ReadTimeout.DurationValue() <= 0 {
		return newFieldError("ReadTimeout", "必须大于 0")
	}

	if !storage.IsRegistered(m.StorageBackend) {
		return newFieldError("StorageBackend",
			"未注册的存储后端，可选: "+strings.Join(storage.Names(), "|"))
	}

	if m.StorageBackend == "s3" {
		if c.S3.Endpoint == "" {
			return newFieldError("S3.Endpoint", "不能为空")
		}
		if c.S3.Bucket == "" {
			return newFieldError("S3.Bucket", "不能为空")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return newFieldError("S3.AccessKey", "AccessKey/SecretKey 必须成对提供")
		}
	}

	return nil
}
