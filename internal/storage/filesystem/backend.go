// Package filesystem 是能力契约在本地文件系统上的具体实现，也是默认后端。
package filesystem

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pymirror/pymirror/internal/logging"
	"github.com/pymirror/pymirror/internal/storage"
)

// BackendName 是配置中 storage_backend 选择本实现时使用的标识。
const BackendName = "filesystem"

func init() {
	storage.MustRegister(storage.Descriptor{
		Name: BackendName,
		New: func(settings storage.Settings) (storage.Backend, error) {
			return New(settings.Directory)
		},
	})
}

// Backend 将能力契约映射到本地文件系统原语。构造后只读，可被多个
// goroutine 并发使用；跨进程写冲突由 rename 原子性兜底。
type Backend struct {
	paths storage.Paths
}

// New 绑定镜像根目录并推导固定布局。不创建任何目录。
func New(root string) (*Backend, error) {
	if root == "" {
		return nil, errors.New("mirror directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve mirror directory: %w", err)
	}
	return &Backend{paths: storage.NewPaths(abs)}, nil
}

func (b *Backend) Name() string { return BackendName }

func (b *Backend) Paths() storage.Paths { return b.paths }

func (b *Backend) JSONPaths(name string) []string { return b.paths.JSONPaths(name) }

func (b *Backend) Exists(path string) bool {
	_, err := os.Stat(filepath.Clean(path))
	return err == nil
}

func (b *Backend) IsFile(path string) bool {
	info, err := os.Stat(filepath.Clean(path))
	return err == nil && info.Mode().IsRegular()
}

func (b *Backend) IsDir(path string) bool {
	info, err := os.Stat(filepath.Clean(path))
	return err == nil && info.IsDir()
}

func (b *Backend) ReadFile(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, storage.ErrNotFound)
		}
		return nil, err
	}
	return contents, nil
}

func (b *Backend) ReadText(path string) (string, error) {
	contents, err := b.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(contents), nil
}

func (b *Backend) WriteFile(path string, contents []byte) error {
	return os.WriteFile(filepath.Clean(path), contents, 0o644)
}

func (b *Backend) WriteText(path string, contents string) error {
	return b.WriteFile(path, []byte(contents))
}

// CopyFile 是 rename 语义：source 被整体移到 dest 上，随后不再存在。
func (b *Backend) CopyFile(source, dest string) error {
	source = filepath.Clean(source)
	if !b.Exists(source) {
		return fmt.Errorf("%s: %w", source, storage.ErrNotFound)
	}
	return os.Rename(source, filepath.Clean(dest))
}

func (b *Backend) Delete(path string, dryRun bool) error {
	path = filepath.Clean(path)
	logrus.WithFields(logging.OperationFields("delete", path, dryRun)).Info("deleting path")
	if dryRun {
		return nil
	}
	if !b.Exists(path) {
		logrus.WithField("path", path).Debug("path does not exist, skipping")
		return nil
	}
	if b.IsFile(path) {
		return b.DeleteFile(path, dryRun)
	}
	return b.RemoveDir(path, storage.RemoveOptions{Force: true, DryRun: dryRun})
}

func (b *Backend) DeleteFile(path string, dryRun bool) error {
	path = filepath.Clean(path)
	logrus.WithFields(logging.OperationFields("delete_file", path, dryRun)).Info("removing file")
	if dryRun {
		return nil
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, storage.ErrNotFound)
		}
		return err
	}
	return nil
}

func (b *Backend) RemoveDir(path string, opts storage.RemoveOptions) error {
	path = filepath.Clean(path)
	if opts.Force {
		logrus.WithFields(logging.OperationFields("rmdir", path, opts.DryRun)).Info("forcing removal of files under path")
		if opts.DryRun {
			return nil
		}
		if err := os.RemoveAll(path); err != nil && !opts.IgnoreErrors {
			return err
		}
		return nil
	}

	if opts.Recurse {
		entries, err := os.ReadDir(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%s: %w", path, storage.ErrNotFound)
			}
			return err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			subdir := filepath.Join(path, entry.Name())
			if err := b.RemoveDir(subdir, opts); err != nil {
				return err
			}
		}
	}

	logrus.WithFields(logging.OperationFields("rmdir", path, opts.DryRun)).Info("removing directory")
	if opts.DryRun {
		return nil
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, syscall.ENOTEMPTY) {
			return fmt.Errorf("%s: %w", path, storage.ErrNotEmpty)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, storage.ErrNotFound)
		}
		return err
	}
	return nil
}

func (b *Backend) Mkdir(path string, existOK, parents bool) error {
	path = filepath.Clean(path)
	if b.IsDir(path) {
		if existOK {
			return nil
		}
		return fmt.Errorf("%s: %w", path, storage.ErrExists)
	}
	var err error
	if parents {
		err = os.MkdirAll(path, 0o755)
	} else {
		err = os.Mkdir(path, 0o755)
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", path, storage.ErrExists)
		}
		return err
	}
	return nil
}

func (b *Backend) Hash(path, algorithm string) (string, error) {
	digest, err := storage.NewDigest(algorithm)
	if err != nil {
		return "", err
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", path, storage.ErrNotFound)
		}
		return "", err
	}
	defer f.Close()

	buf := make([]byte, storage.HashChunkSize)
	if _, err := io.CopyBuffer(digest, f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// CompareFiles 逐字节比较两个文件，任一文件缺失时返回 ErrNotFound。
func (b *Backend) CompareFiles(file1, file2 string) (bool, error) {
	f1, err := os.Open(filepath.Clean(file1))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%s: %w", file1, storage.ErrNotFound)
		}
		return false, err
	}
	defer f1.Close()

	f2, err := os.Open(filepath.Clean(file2))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%s: %w", file2, storage.ErrNotFound)
		}
		return false, err
	}
	defer f2.Close()

	buf1 := make([]byte, storage.HashChunkSize)
	buf2 := make([]byte, storage.HashChunkSize)
	for {
		n1, err1 := io.ReadFull(f1, buf1)
		n2, err2 := io.ReadFull(f2, buf2)
		if !bytes.Equal(buf1[:n1], buf2[:n2]) {
			return false, nil
		}
		atEOF1 := err1 == io.EOF || err1 == io.ErrUnexpectedEOF
		atEOF2 := err2 == io.EOF || err2 == io.ErrUnexpectedEOF
		if err1 != nil && !atEOF1 {
			return false, err1
		}
		if err2 != nil && !atEOF2 {
			return false, err2
		}
		if atEOF1 || atEOF2 {
			return atEOF1 == atEOF2 && n1 == n2, nil
		}
	}
}

// walk 深度优先枚举 root 的所有后代，返回相对 root 的路径。
func (b *Backend) walk(root string, dirs bool) ([]string, error) {
	var results []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if d.IsDir() && !dirs {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		results = append(results, rel)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", root, storage.ErrNotFound)
		}
		return nil, err
	}
	return results, nil
}

func (b *Backend) Find(root string, dirs bool) (string, error) {
	results, err := b.walk(filepath.Clean(root), dirs)
	if err != nil {
		return "", err
	}
	sort.Strings(results)
	return strings.Join(results, "\n"), nil
}

func (b *Backend) Symlink(source, dest string) error {
	return os.Symlink(source, filepath.Clean(dest))
}
