package storage

import "errors"

// 错误哨兵按语义分类，调用方统一通过 errors.Is 判断；未列出的底层 I/O
// 错误（权限、设备等）原样向上传递，不做重试也不做回滚。
var (
	// ErrNotFound 表示操作要求路径存在而它并不存在（读取、改名源、无容忍删除）。
	ErrNotFound = errors.New("path does not exist")

	// ErrExists 表示 mkdir 未开启 existOK 时目标目录已存在。
	ErrExists = errors.New("path already exists")

	// ErrNotEmpty 表示未开启 force 的目录删除遇到了非空目录。
	ErrNotEmpty = errors.New("directory not empty")

	// ErrUnsupported 表示后端未实现某项抽象能力，属于后端实现缺口，
	// 生产后端不应触发。
	ErrUnsupported = errors.New("operation not supported by storage backend")
)
