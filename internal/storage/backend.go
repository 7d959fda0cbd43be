package storage

import "io"

// TempFile 是一次原子写过程中暴露给写入回调的临时文件句柄。调用方写完
// 即提交；调用 Discard 表示放弃本次更新，整个操作静默变为 no-op。
type TempFile interface {
	io.Writer

	// Name 返回临时文件的完整名字（目标同目录、隐藏前缀 + 目标 basename）。
	Name() string

	// Discard 丢弃临时文件，提交阶段据此跳过 rename，目标保持原样。
	Discard() error
}

// WriteFunc 是 Rewrite/UpdateSafe 的写入回调，写入全部新内容或 Discard。
type WriteFunc func(TempFile) error

// RemoveOptions 控制 RemoveDir 的行为。
type RemoveOptions struct {
	// Recurse 自底向上删除空的子目录，遇到第一个失败即停止并上抛。
	Recurse bool
	// Force 一步销毁整棵子树。
	Force bool
	// IgnoreErrors 在 Force 模式下忽略删除过程中的错误。
	IgnoreErrors bool
	// DryRun 只记录将要执行的动作并按相同路径遍历，不做任何实际删除。
	DryRun bool
}

// Backend 是每个具体存储实现必须满足的能力契约。所有操作同步阻塞，
// 不做内部并发；跨进程的写写竞争由 rename 原子性收敛为“最后写入生效”。
type Backend interface {
	// Name 返回后端标识，注册表按它与配置中的 storage_backend 匹配。
	Name() string

	// Paths 返回构造时从镜像根目录推导出的固定布局。
	Paths() Paths

	// JSONPaths 返回包元数据的有序候选路径，见 Paths.JSONPaths。
	JSONPaths(name string) []string

	// Exists/IsFile/IsDir 是纯谓词：路径不存在一律回答 false，从不报错。
	Exists(path string) bool
	IsFile(path string) bool
	IsDir(path string) bool

	// ReadFile 返回完整内容，路径不存在时返回 ErrNotFound。
	ReadFile(path string) ([]byte, error)

	// ReadText 同 ReadFile，按 UTF-8 文本返回。
	ReadText(path string) (string, error)

	// WriteFile 整体覆盖目标内容。本身不保证原子，原子性通过
	// Rewrite/UpdateSafe 按需获得。
	WriteFile(path string, contents []byte) error

	// WriteText 同 WriteFile，写入文本内容。
	WriteText(path string, contents string) error

	// CopyFile 将 source 改名为 dest（rename 语义，source 随后不再存在），
	// source 缺失时返回 ErrNotFound。
	CopyFile(source, dest string) error

	// Delete 按路径类型分派到文件删除或递归目录删除；路径缺失视为成功的
	// no-op；dryRun 只记录日志。
	Delete(path string, dryRun bool) error

	// DeleteFile 删除单个文件；dryRun 抑制实际 unlink。
	DeleteFile(path string, dryRun bool) error

	// RemoveDir 删除目录，行为由 RemoveOptions 控制；未开启 Force 时删除
	// 非空目录返回 ErrNotEmpty。
	RemoveDir(path string, opts RemoveOptions) error

	// Mkdir 创建目录；existOK 容忍已存在，parents 补齐缺失的祖先。
	Mkdir(path string, existOK, parents bool) error

	// Hash 以固定大小分块流式计算指定算法的十六进制摘要，不把整个文件
	// 载入内存。algorithm 为空时使用 sha256。
	Hash(path, algorithm string) (string, error)

	// CompareFiles 逐字节比较两个文件（非 size/mtime 启发式）。
	CompareFiles(file1, file2 string) (bool, error)

	// Find 递归列出 root 下所有后代的相对路径，按字典序排序后用换行
	// 拼接，输出确定，可直接用于测试比对。dirs 控制是否包含目录项。
	Find(root string, dirs bool) (string, error)

	// Symlink 在 dest 创建指向 source 的符号链接。
	Symlink(source, dest string) error

	// Rewrite 原子重写目标文件：写临时文件、强制 0o644 权限、单次 rename
	// 替换目标。回调 Discard 时整个操作为 no-op。
	Rewrite(target string, fn WriteFunc) error

	// UpdateSafe 同 Rewrite，但临时文件继承既有目标的权限位，且新内容与
	// 旧内容逐字节一致时完全不动目标（不 rename、不改 mtime），返回值
	// 表示目标是否发生了变化。
	UpdateSafe(target string, fn WriteFunc) (changed bool, err error)
}
