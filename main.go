package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/pymirror/pymirror/internal/config"
	"github.com/pymirror/pymirror/internal/logging"
	"github.com/pymirror/pymirror/internal/server"
	"github.com/pymirror/pymirror/internal/storage"
	_ "github.com/pymirror/pymirror/internal/storage/filesystem"
	_ "github.com/pymirror/pymirror/internal/storage/s3"
	"github.com/pymirror/pymirror/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	findPath    string
	hashPath    string
	deletePath  string
	dryRun      bool
	algorithm   string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Mirror)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["storage_backend"] = cfg.Mirror.StorageBackend
		fields["registered"] = storage.Names()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 后端解析只发生一次：注册表按扩展点缓存结果，之后所有路径与 I/O
	// 操作都经由同一个实例。
	backend, err := storage.Active(cfg.StorageSettings())
	if err != nil {
		fmt.Fprintf(stdErr, "解析存储后端失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["storage_backend"] = backend.Name()
	fields["directory"] = cfg.Mirror.Directory
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	switch {
	case opts.findPath != "":
		return runFind(backend, opts.findPath)
	case opts.hashPath != "":
		return runHash(backend, opts.hashPath, opts.algorithm)
	case opts.deletePath != "":
		return runDelete(backend, opts.deletePath, opts.dryRun)
	}

	if err := startServer(cfg, backend, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// runFind 输出 root 下所有后代的排序相对路径，便于比对两个镜像树。
func runFind(backend storage.Backend, root string) int {
	listing, err := backend.Find(root, true)
	if err != nil {
		fmt.Fprintf(stdErr, "find 失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdOut, listing)
	return 0
}

func runHash(backend storage.Backend, path, algorithm string) int {
	digest, err := backend.Hash(path, algorithm)
	if err != nil {
		fmt.Fprintf(stdErr, "hash 失败: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdOut, "%s  %s\n", digest, path)
	return 0
}

func runDelete(backend storage.Backend, path string, dryRun bool) int {
	if err := backend.Delete(path, dryRun); err != nil {
		fmt.Fprintf(stdErr, "删除失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("pymirror", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts cliOptions
	fs.StringVar(&opts.configPath, "config", "", "配置文件路径（默认 ./config.toml，可被 PYMIRROR_CONFIG 覆盖）")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.StringVar(&opts.findPath, "find", "", "列出指定目录下的全部相对路径后退出")
	fs.StringVar(&opts.hashPath, "hash", "", "输出指定文件的摘要后退出")
	fs.StringVar(&opts.algorithm, "algorithm", "", "配合 -hash 使用的摘要算法（默认 sha256）")
	fs.StringVar(&opts.deletePath, "delete", "", "删除指定路径后退出")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "配合 -delete，仅记录将要执行的动作")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PYMIRROR_CONFIG")
	if opts.configPath != "" {
		path = opts.configPath
	}
	if path == "" {
		path = "config.toml"
	}
	opts.configPath = path

	return opts, nil
}

func startServer(cfg *config.Config, backend storage.Backend, logger *logrus.Logger) error {
	port := cfg.Mirror.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Backend:     backend,
		ListenPort:  port,
		ReadTimeout: cfg.Mirror.ReadTimeout.DurationValue(),
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
