package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pymirror/pymirror/internal/storage"
)

// rewriteMode 是 Rewrite 提交前强制写入的权限位（属主读写，组/其他只读）。
const rewriteMode = 0o644

// tempFile 持有一次原子写的临时文件。命名为 .<目标名>.<随机后缀>：
// 隐藏前缀让按文件名做目录散列的分布式文件系统（如 GlusterFS）在最终
// rename 时不触发重新散列，也保证永远不会与真实目标名冲突。
type tempFile struct {
	f         *os.File
	discarded bool
}

func (t *tempFile) Write(p []byte) (int, error) { return t.f.Write(p) }

func (t *tempFile) Name() string { return t.f.Name() }

// Discard 删除临时文件并标记放弃，提交阶段将跳过 rename。
func (t *tempFile) Discard() error {
	t.discarded = true
	if err := os.Remove(t.f.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// newTempFile 在目标同目录创建独占临时文件，保证 rename 不会跨设备。
func newTempFile(target string) (*tempFile, error) {
	dir := filepath.Dir(target)
	base := filepath.Base(target)
	name := filepath.Join(dir, fmt.Sprintf(".%s.%s", base, uuid.NewString()))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file for %s: %w", target, err)
	}
	return &tempFile{f: f}, nil
}

// Rewrite 原子重写目标文件。写入回调结束后临时文件被 chmod 到固定权限
// 并单次 rename 到目标上，读者只会看到完整的旧内容或完整的新内容。
// 回调 Discard 时目标保持原样。rename 失败时临时文件留在原地不清理，
// 便于调用方事后检查。
func (b *Backend) Rewrite(target string, fn storage.WriteFunc) error {
	target = filepath.Clean(target)
	tf, err := newTempFile(target)
	if err != nil {
		return err
	}

	if err := fn(tf); err != nil {
		tf.f.Close()
		return err
	}
	if err := tf.f.Close(); err != nil {
		return err
	}

	// 回调也可以直接 os.Remove 临时文件表达放弃，与 Discard 等价。
	if tf.discarded || !b.Exists(tf.Name()) {
		return nil
	}
	if err := os.Chmod(tf.Name(), rewriteMode); err != nil {
		return err
	}
	return b.CopyFile(tf.Name(), target)
}

// UpdateSafe 原子更新目标文件，临时文件先继承既有目标的权限位。新旧内容
// 逐字节一致时丢弃临时文件、完全不动目标（不 rename、不改 mtime），返回
// false；否则 rename 替换并返回 true。
func (b *Backend) UpdateSafe(target string, fn storage.WriteFunc) (bool, error) {
	target = filepath.Clean(target)
	tf, err := newTempFile(target)
	if err != nil {
		return false, err
	}

	if info, statErr := os.Stat(target); statErr == nil {
		if err := os.Chmod(tf.Name(), info.Mode().Perm()); err != nil {
			tf.f.Close()
			return false, err
		}
	}

	if err := fn(tf); err != nil {
		tf.f.Close()
		return false, err
	}
	if err := tf.f.Close(); err != nil {
		return false, err
	}

	if tf.discarded || !b.Exists(tf.Name()) {
		return false, nil
	}

	if b.Exists(target) {
		same, err := b.CompareFiles(target, tf.Name())
		if err != nil {
			return false, err
		}
		if same {
			return false, os.Remove(tf.Name())
		}
	}

	if err := b.CopyFile(tf.Name(), target); err != nil {
		return false, err
	}
	return true, nil
}
