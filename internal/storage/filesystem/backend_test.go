package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pymirror/pymirror/internal/storage"
)

func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := New(dir)
	if err != nil {
		t.Fatalf("构造后端失败: %v", err)
	}
	return backend, dir
}

func TestPredicatesOnMissingPath(t *testing.T) {
	backend, dir := newTestBackend(t)
	missing := filepath.Join(dir, "nope")

	if backend.Exists(missing) || backend.IsFile(missing) || backend.IsDir(missing) {
		t.Fatalf("不存在的路径三个谓词都应回答 false")
	}
}

func TestPredicatesDistinguishFileAndDir(t *testing.T) {
	backend, dir := newTestBackend(t)
	file := filepath.Join(dir, "f")
	sub := filepath.Join(dir, "d")
	if err := backend.WriteText(file, "x"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir 失败: %v", err)
	}

	if !backend.IsFile(file) || backend.IsDir(file) {
		t.Fatalf("文件谓词判断错误")
	}
	if !backend.IsDir(sub) || backend.IsFile(sub) {
		t.Fatalf("目录谓词判断错误")
	}
}

func TestReadFileMissingReturnsNotFound(t *testing.T) {
	backend, dir := newTestBackend(t)

	_, err := backend.ReadFile(filepath.Join(dir, "missing"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("缺失文件应返回 ErrNotFound: %v", err)
	}
}

func TestCopyFileHasRenameSemantics(t *testing.T) {
	backend, dir := newTestBackend(t)
	source := filepath.Join(dir, "src")
	dest := filepath.Join(dir, "dst")
	if err := backend.WriteText(source, "payload"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if err := backend.CopyFile(source, dest); err != nil {
		t.Fatalf("copy 失败: %v", err)
	}
	if backend.Exists(source) {
		t.Fatalf("rename 语义下 source 不应继续存在")
	}
	if got, _ := backend.ReadText(dest); got != "payload" {
		t.Fatalf("内容错误: %s", got)
	}
}

func TestCopyFileMissingSourceFails(t *testing.T) {
	backend, dir := newTestBackend(t)

	err := backend.CopyFile(filepath.Join(dir, "ghost"), filepath.Join(dir, "dst"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("缺失 source 应返回 ErrNotFound: %v", err)
	}
}

func TestDeleteMissingPathIsNoop(t *testing.T) {
	backend, dir := newTestBackend(t)
	missing := filepath.Join(dir, "missing")

	if err := backend.Delete(missing, false); err != nil {
		t.Fatalf("删除缺失路径应是成功的 no-op: %v", err)
	}
	if err := backend.Delete(missing, true); err != nil {
		t.Fatalf("dry-run 同样应成功: %v", err)
	}
}

func TestDeleteDispatchesByPathKind(t *testing.T) {
	backend, dir := newTestBackend(t)
	file := filepath.Join(dir, "pkg.tar.gz")
	tree := filepath.Join(dir, "tree", "sub")
	if err := backend.WriteText(file, "x"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := os.MkdirAll(tree, 0o755); err != nil {
		t.Fatalf("mkdir 失败: %v", err)
	}
	if err := backend.WriteText(filepath.Join(tree, "leaf"), "y"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if err := backend.Delete(file, false); err != nil {
		t.Fatalf("删除文件失败: %v", err)
	}
	if err := backend.Delete(filepath.Join(dir, "tree"), false); err != nil {
		t.Fatalf("删除目录失败: %v", err)
	}
	if backend.Exists(file) || backend.Exists(filepath.Join(dir, "tree")) {
		t.Fatalf("路径应已删除")
	}
}

func TestDeleteDryRunTouchesNothing(t *testing.T) {
	backend, dir := newTestBackend(t)
	file := filepath.Join(dir, "keep")
	if err := backend.WriteText(file, "x"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if err := backend.Delete(file, true); err != nil {
		t.Fatalf("dry-run 失败: %v", err)
	}
	if !backend.Exists(file) {
		t.Fatalf("dry-run 不应触碰文件系统")
	}
}

func TestDeleteFileMissingReturnsNotFound(t *testing.T) {
	backend, dir := newTestBackend(t)

	err := backend.DeleteFile(filepath.Join(dir, "missing"), false)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("delete_file 对缺失路径应返回 ErrNotFound: %v", err)
	}
}

func TestRemoveDirRecurseRemovesEmptyTree(t *testing.T) {
	backend, dir := newTestBackend(t)
	root := filepath.Join(dir, "tree")
	if err := os.MkdirAll(filepath.Join(root, "a", "b"), 0o755); err != nil {
		t.Fatalf("mkdir 失败: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "c"), 0o755); err != nil {
		t.Fatalf("mkdir 失败: %v", err)
	}

	if err := backend.RemoveDir(root, storage.RemoveOptions{Recurse: true}); err != nil {
		t.Fatalf("空目录树应可递归删除: %v", err)
	}
	if backend.Exists(root) {
		t.Fatalf("目录树应已删除")
	}
}

func TestRemoveDirNonEmptyLeafFailsWithoutForce(t *testing.T) {
	backend, dir := newTestBackend(t)
	root := filepath.Join(dir, "tree")
	leaf := filepath.Join(root, "a")
	if err := os.MkdirAll(leaf, 0o755); err != nil {
		t.Fatalf("mkdir 失败: %v", err)
	}
	if err := backend.WriteText(filepath.Join(leaf, "file"), "x"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	err := backend.RemoveDir(root, storage.RemoveOptions{Recurse: true})
	if !errors.Is(err, storage.ErrNotEmpty) {
		t.Fatalf("非空叶子目录应返回 ErrNotEmpty: %v", err)
	}
	if !backend.Exists(filepath.Join(leaf, "file")) {
		t.Fatalf("失败时目录树应保持原样")
	}
}

func TestRemoveDirForceDestroysSubtree(t *testing.T) {
	backend, dir := newTestBackend(t)
	root := filepath.Join(dir, "tree")
	if err := os.MkdirAll(filepath.Join(root, "a"), 0o755); err != nil {
		t.Fatalf("mkdir 失败: %v", err)
	}
	if err := backend.WriteText(filepath.Join(root, "a", "file"), "x"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if err := backend.RemoveDir(root, storage.RemoveOptions{Force: true}); err != nil {
		t.Fatalf("force 删除失败: %v", err)
	}
	if backend.Exists(root) {
		t.Fatalf("子树应被销毁")
	}
}

func TestRemoveDirDryRunWalksButKeepsTree(t *testing.T) {
	backend, dir := newTestBackend(t)
	root := filepath.Join(dir, "tree")
	if err := os.MkdirAll(filepath.Join(root, "a", "b"), 0o755); err != nil {
		t.Fatalf("mkdir 失败: %v", err)
	}

	err := backend.RemoveDir(root, storage.RemoveOptions{Recurse: true, DryRun: true})
	if err != nil {
		t.Fatalf("dry-run 应与真实执行走相同路径: %v", err)
	}
	if !backend.Exists(filepath.Join(root, "a", "b")) {
		t.Fatalf("dry-run 不应删除任何目录")
	}
}

func TestMkdirSemantics(t *testing.T) {
	backend, dir := newTestBackend(t)
	sub := filepath.Join(dir, "one")

	if err := backend.Mkdir(sub, false, false); err != nil {
		t.Fatalf("mkdir 失败: %v", err)
	}
	if err := backend.Mkdir(sub, false, false); !errors.Is(err, storage.ErrExists) {
		t.Fatalf("重复 mkdir 应返回 ErrExists: %v", err)
	}
	if err := backend.Mkdir(sub, true, false); err != nil {
		t.Fatalf("existOK 应容忍已存在: %v", err)
	}

	nested := filepath.Join(dir, "a", "b", "c")
	if err := backend.Mkdir(nested, false, false); err == nil {
		t.Fatalf("缺失祖先且未开启 parents 应失败")
	}
	if err := backend.Mkdir(nested, false, true); err != nil {
		t.Fatalf("parents 应补齐祖先: %v", err)
	}
}

func TestHashIsDeterministicAndContentSensitive(t *testing.T) {
	backend, dir := newTestBackend(t)
	file := filepath.Join(dir, "blob")
	if err := backend.WriteText(file, "some content"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	first, err := backend.Hash(file, "")
	if err != nil {
		t.Fatalf("hash 失败: %v", err)
	}
	second, err := backend.Hash(file, "sha256")
	if err != nil {
		t.Fatalf("hash 失败: %v", err)
	}
	if first != second {
		t.Fatalf("未修改内容摘要应一致: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("sha256 摘要长度应为 64: %d", len(first))
	}

	if err := backend.WriteText(file, "some content!"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	third, err := backend.Hash(file, "")
	if err != nil {
		t.Fatalf("hash 失败: %v", err)
	}
	if third == first {
		t.Fatalf("内容变化后摘要应不同")
	}
}

func TestHashSupportsAlternativeAlgorithms(t *testing.T) {
	backend, dir := newTestBackend(t)
	file := filepath.Join(dir, "blob")
	if err := backend.WriteText(file, "content"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	lengths := map[string]int{"sha512": 128, "md5": 32, "blake3": 64}
	for algorithm, want := range lengths {
		digest, err := backend.Hash(file, algorithm)
		if err != nil {
			t.Fatalf("%s 失败: %v", algorithm, err)
		}
		if len(digest) != want {
			t.Fatalf("%s 摘要长度应为 %d: %d", algorithm, want, len(digest))
		}
	}

	if _, err := backend.Hash(file, "crc32"); err == nil {
		t.Fatalf("未知算法应报错")
	}
}

func TestCompareFiles(t *testing.T) {
	backend, dir := newTestBackend(t)
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	if err := backend.WriteText(a, "same bytes"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := backend.WriteText(b, "same bytes"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := backend.WriteText(c, "same bytez"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if same, err := backend.CompareFiles(a, b); err != nil || !same {
		t.Fatalf("相同内容应判定相等: %v %v", same, err)
	}
	if same, err := backend.CompareFiles(a, c); err != nil || same {
		t.Fatalf("不同内容应判定不等: %v %v", same, err)
	}
	if _, err := backend.CompareFiles(a, filepath.Join(dir, "ghost")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("缺失文件应返回 ErrNotFound: %v", err)
	}
}

func TestFindProducesSortedRelativeListing(t *testing.T) {
	backend, dir := newTestBackend(t)
	if err := os.MkdirAll(filepath.Join(dir, "web", "json"), 0o755); err != nil {
		t.Fatalf("mkdir 失败: %v", err)
	}
	if err := backend.WriteText(filepath.Join(dir, "web", "json", "pkg"), "{}"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := backend.WriteText(filepath.Join(dir, "web", "index.html"), ""); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	withDirs, err := backend.Find(dir, true)
	if err != nil {
		t.Fatalf("find 失败: %v", err)
	}
	wantWithDirs := strings.Join([]string{
		"web",
		filepath.Join("web", "index.html"),
		filepath.Join("web", "json"),
		filepath.Join("web", "json", "pkg"),
	}, "\n")
	if withDirs != wantWithDirs {
		t.Fatalf("目录列表错误:\n%s\n期望:\n%s", withDirs, wantWithDirs)
	}

	filesOnly, err := backend.Find(dir, false)
	if err != nil {
		t.Fatalf("find 失败: %v", err)
	}
	wantFiles := strings.Join([]string{
		filepath.Join("web", "index.html"),
		filepath.Join("web", "json", "pkg"),
	}, "\n")
	if filesOnly != wantFiles {
		t.Fatalf("文件列表错误:\n%s\n期望:\n%s", filesOnly, wantFiles)
	}
}

func TestSymlink(t *testing.T) {
	backend, dir := newTestBackend(t)
	source := filepath.Join(dir, "real")
	link := filepath.Join(dir, "alias")
	if err := backend.WriteText(source, "payload"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	if err := backend.Symlink(source, link); err != nil {
		t.Fatalf("symlink 失败: %v", err)
	}
	if got, err := backend.ReadText(link); err != nil || got != "payload" {
		t.Fatalf("经由链接读取失败: %q %v", got, err)
	}
}

func TestBackendPathsAndName(t *testing.T) {
	backend, dir := newTestBackend(t)

	if backend.Name() != BackendName {
		t.Fatalf("后端名错误: %s", backend.Name())
	}
	paths := backend.Paths()
	if paths.Web != filepath.Join(dir, "web") {
		t.Fatalf("web 根错误: %s", paths.Web)
	}

	jsonPaths := backend.JSONPaths("Foo-Bar")
	if len(jsonPaths) != 3 || jsonPaths[0] != filepath.Join(paths.JSON, "foo-bar") {
		t.Fatalf("JSON 候选路径错误: %v", jsonPaths)
	}
}

// 端到端场景：写入包元数据后按展示名解析候选路径。
func TestWriteMetadataThenResolveCandidates(t *testing.T) {
	backend, _ := newTestBackend(t)
	paths := backend.Paths()

	if err := backend.Mkdir(paths.JSON, false, true); err != nil {
		t.Fatalf("mkdir 失败: %v", err)
	}
	target := filepath.Join(paths.JSON, "foo-bar")
	changed, err := backend.UpdateSafe(target, writeContent(`{"n":1}`))
	if err != nil || !changed {
		t.Fatalf("写入元数据失败: %v %v", changed, err)
	}

	candidates := backend.JSONPaths("Foo-Bar")
	want := []string{
		filepath.Join(paths.JSON, "foo-bar"),
		filepath.Join(paths.PyPI, "foo-bar"),
		filepath.Join(paths.JSON, "Foo-Bar"),
	}
	for i, candidate := range candidates {
		if candidate != want[i] {
			t.Fatalf("候选路径 %d 错误: %s", i, candidate)
		}
	}
	if !backend.IsFile(candidates[0]) {
		t.Fatalf("首个候选路径应命中刚写入的元数据")
	}
}
