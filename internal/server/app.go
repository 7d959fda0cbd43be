package server

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pymirror/pymirror/internal/storage"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger      *logrus.Logger
	Backend     storage.Backend
	ListenPort  int
	ReadTimeout time.Duration
}

// NewApp 构建只读镜像服务：recover 中间件 + 请求 ID + /healthz 诊断 +
// web 根下的静态内容分发。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("storage backend is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ReadTimeout:   opts.ReadTimeout,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"backend": opts.Backend.Name(),
		})
	})

	app.Get("/*", serveMirror(opts))

	return app, nil
}

// requestIDMiddleware 为每个请求生成 X-Request-ID，便于日志串联。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		c.Set("X-Request-ID", uuid.NewString())
		return c.Next()
	}
}

// serveMirror 把请求路径映射到 web 根下的文件并返回内容。目录请求回退
// 到其中的 index.html（simple index 的落盘形态）。读取经由能力接口，
// 因此任何后端都可以被同一处理器服务。
func serveMirror(opts AppOptions) fiber.Handler {
	web := opts.Backend.Paths().Web

	return func(c fiber.Ctx) error {
		rel := path.Clean("/" + string(c.Request().URI().Path()))
		target := filepath.Join(web, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
		if target != web && !strings.HasPrefix(target, web+string(filepath.Separator)) {
			return renderNotFound(c, opts.Logger, rel)
		}

		if opts.Backend.IsDir(target) {
			target = filepath.Join(target, "index.html")
		}
		contents, err := opts.Backend.ReadFile(target)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return renderNotFound(c, opts.Logger, rel)
			}
			return err
		}

		if ext := strings.TrimPrefix(filepath.Ext(target), "."); ext != "" {
			c.Type(ext)
		}
		return c.Send(contents)
	}
}

func renderNotFound(c fiber.Ctx, logger *logrus.Logger, rel string) error {
	logger.WithFields(logrus.Fields{
		"action": "serve",
		"path":   rel,
	}).Debug("path not mirrored")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "not_found",
	})
}
