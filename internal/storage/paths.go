package storage

import (
	"path/filepath"

	"github.com/pymirror/pymirror/internal/naming"
)

// Paths 聚合镜像根目录派生出的固定子目录。构造时一次性算好，之后只读，
// 所有后端共享同一套布局约定。
type Paths struct {
	// Root 是镜像根目录。
	Root string
	// Web 是对外可见的静态树根（Root/web）。
	Web string
	// JSON 存放规范名下的包元数据（Web/json）。
	JSON string
	// PyPI 是兼容旧版布局的 JSON 元数据目录（Web/pypi）。
	PyPI string
	// Simple 是 simple index 根（Web/simple）。
	Simple string
}

// NewPaths 根据镜像根目录推导固定布局。纯函数，不触碰文件系统。
func NewPaths(root string) Paths {
	root = filepath.Clean(root)
	web := filepath.Join(root, "web")
	return Paths{
		Root:   root,
		Web:    web,
		JSON:   filepath.Join(web, "json"),
		PyPI:   filepath.Join(web, "pypi"),
		Simple: filepath.Join(web, "simple"),
	}
}

// JSONPaths 返回包元数据的候选路径，顺序有意义：规范名路径优先，
// 展示名与规范名不一致时追加 json/<展示名> 以兼容历史写入。
func (p Paths) JSONPaths(name string) []string {
	canonical := naming.Canonicalize(name)
	paths := []string{
		filepath.Join(p.JSON, canonical),
		filepath.Join(p.PyPI, canonical),
	}
	if canonical != name {
		paths = append(paths, filepath.Join(p.JSON, name))
	}
	return paths
}
