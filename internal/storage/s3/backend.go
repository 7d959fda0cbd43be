// Package s3 implements the storage capability contract against an
// S3-compatible object store via minio-go. Directories are implicit key
// prefixes, so Mkdir is a no-op and the recurse-only RemoveDir flavor has
// nothing to remove; symlinks are not expressible and report ErrUnsupported.
// Atomic rewrite degenerates to buffering the write block and issuing one
// object PUT, which S3 already applies atomically per key.
package s3

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v6"
	"github.com/sirupsen/logrus"

	"github.com/pymirror/pymirror/internal/logging"
	"github.com/pymirror/pymirror/internal/storage"
)

// BackendName 是配置中 storage_backend 选择本实现时使用的标识。
const BackendName = "s3"

func init() {
	storage.MustRegister(storage.Descriptor{
		Name: BackendName,
		New: func(settings storage.Settings) (storage.Backend, error) {
			secure, _ := strconv.ParseBool(settings.Option("secure"))
			return New(Options{
				Endpoint:  settings.Option("endpoint"),
				AccessKey: settings.Option("access_key"),
				SecretKey: settings.Option("secret_key"),
				Bucket:    settings.Option("bucket"),
				Region:    settings.Option("region"),
				Secure:    secure,
				Directory: settings.Directory,
			})
		},
	})
}

// Options 汇总构造 s3 后端所需的连接与布局参数。
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
	// Directory 在对象存储语境下是键前缀，布局与本地后端完全一致。
	Directory string
}

// Backend 把能力契约映射到单个 bucket 内的对象操作。
type Backend struct {
	client *minio.Client
	bucket string
	paths  storage.Paths
}

// New 建立客户端并确保 bucket 存在。
func New(opts Options) (*Backend, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	client, err := minio.New(opts.Endpoint, opts.AccessKey, opts.SecretKey, opts.Secure)
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	exists, err := client.BucketExists(opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		region := opts.Region
		if region == "" {
			region = "us-east-1"
		}
		if err := client.MakeBucket(opts.Bucket, region); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}

	return &Backend{
		client: client,
		bucket: opts.Bucket,
		paths:  storage.NewPaths(opts.Directory),
	}, nil
}

func (b *Backend) Name() string { return BackendName }

func (b *Backend) Paths() storage.Paths { return b.paths }

func (b *Backend) JSONPaths(name string) []string { return b.paths.JSONPaths(name) }

// key 把布局路径转成对象键（正斜杠、无前导斜杠）。
func key(p string) string {
	cleaned := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(cleaned, "/")
}

func (b *Backend) statObject(p string) (minio.ObjectInfo, bool) {
	info, err := b.client.StatObject(b.bucket, key(p), minio.StatObjectOptions{})
	return info, err == nil
}

func (b *Backend) Exists(p string) bool {
	return b.IsFile(p) || b.IsDir(p)
}

func (b *Backend) IsFile(p string) bool {
	_, ok := b.statObject(p)
	return ok
}

// IsDir 判断是否存在以该路径为前缀的对象，对象存储的目录由键前缀隐含。
func (b *Backend) IsDir(p string) bool {
	doneCh := make(chan struct{})
	defer close(doneCh)

	for object := range b.client.ListObjects(b.bucket, key(p)+"/", false, doneCh) {
		if object.Err == nil {
			return true
		}
	}
	return false
}

func (b *Backend) ReadFile(p string) ([]byte, error) {
	if !b.IsFile(p) {
		return nil, fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	object, err := b.client.GetObject(b.bucket, key(p), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", p, err)
	}
	defer object.Close()
	return io.ReadAll(object)
}

func (b *Backend) ReadText(p string) (string, error) {
	contents, err := b.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(contents), nil
}

func (b *Backend) WriteFile(p string, contents []byte) error {
	_, err := b.client.PutObject(b.bucket, key(p), bytes.NewReader(contents),
		int64(len(contents)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("put object %s: %w", p, err)
	}
	return nil
}

func (b *Backend) WriteText(p string, contents string) error {
	return b.WriteFile(p, []byte(contents))
}

// CopyFile 保持 rename 语义：服务端复制后删除源对象。
func (b *Backend) CopyFile(source, dest string) error {
	if !b.IsFile(source) {
		return fmt.Errorf("%s: %w", source, storage.ErrNotFound)
	}
	dst, err := minio.NewDestinationInfo(b.bucket, key(dest), nil, nil)
	if err != nil {
		return err
	}
	src := minio.NewSourceInfo(b.bucket, key(source), nil)
	if err := b.client.CopyObject(dst, src); err != nil {
		return fmt.Errorf("copy object %s -> %s: %w", source, dest, err)
	}
	return b.client.RemoveObject(b.bucket, key(source))
}

func (b *Backend) Delete(p string, dryRun bool) error {
	logrus.WithFields(logging.OperationFields("delete", p, dryRun)).Info("deleting path")
	if dryRun {
		return nil
	}
	if b.IsFile(p) {
		return b.DeleteFile(p, dryRun)
	}
	if b.IsDir(p) {
		return b.RemoveDir(p, storage.RemoveOptions{Force: true})
	}
	logrus.WithField("path", p).Debug("path does not exist, skipping")
	return nil
}

func (b *Backend) DeleteFile(p string, dryRun bool) error {
	logrus.WithFields(logging.OperationFields("delete_file", p, dryRun)).Info("removing object")
	if dryRun {
		return nil
	}
	if !b.IsFile(p) {
		return fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	return b.client.RemoveObject(b.bucket, key(p))
}

func (b *Backend) RemoveDir(p string, opts storage.RemoveOptions) error {
	logrus.WithFields(logging.OperationFields("rmdir", p, opts.DryRun)).Info("removing prefix")
	if opts.Force {
		if opts.DryRun {
			return nil
		}
		doneCh := make(chan struct{})
		defer close(doneCh)
		for object := range b.client.ListObjects(b.bucket, key(p)+"/", true, doneCh) {
			if object.Err != nil {
				if opts.IgnoreErrors {
					continue
				}
				return object.Err
			}
			if err := b.client.RemoveObject(b.bucket, object.Key); err != nil && !opts.IgnoreErrors {
				return err
			}
		}
		return nil
	}

	// 对象存储没有空目录实体：recurse 模式没有可删的空子目录，只需要
	// 维持“非空目录不可删”的契约。
	if b.IsDir(p) {
		return fmt.Errorf("%s: %w", p, storage.ErrNotEmpty)
	}
	return nil
}

// Mkdir 是 no-op：键前缀随对象写入自动存在。
func (b *Backend) Mkdir(p string, existOK, parents bool) error {
	return nil
}

func (b *Backend) Hash(p, algorithm string) (string, error) {
	digest, err := storage.NewDigest(algorithm)
	if err != nil {
		return "", err
	}
	if !b.IsFile(p) {
		return "", fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	object, err := b.client.GetObject(b.bucket, key(p), minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get object %s: %w", p, err)
	}
	defer object.Close()

	buf := make([]byte, storage.HashChunkSize)
	if _, err := io.CopyBuffer(digest, object, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", p, err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

func (b *Backend) CompareFiles(file1, file2 string) (bool, error) {
	h1, err := b.Hash(file1, "")
	if err != nil {
		return false, err
	}
	h2, err := b.Hash(file2, "")
	if err != nil {
		return false, err
	}
	return h1 == h2, nil
}

func (b *Backend) Find(root string, dirs bool) (string, error) {
	prefix := key(root) + "/"

	doneCh := make(chan struct{})
	defer close(doneCh)

	seen := make(map[string]struct{})
	var results []string
	for object := range b.client.ListObjects(b.bucket, prefix, true, doneCh) {
		if object.Err != nil {
			return "", object.Err
		}
		rel := strings.TrimPrefix(object.Key, prefix)
		if rel == "" {
			continue
		}
		results = append(results, rel)
		if !dirs {
			continue
		}
		// 从键推导隐含的目录项，使输出与本地后端可比对。
		for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, ok := seen[dir]; ok {
				break
			}
			seen[dir] = struct{}{}
			results = append(results, dir)
		}
	}

	sort.Strings(results)
	return strings.Join(results, "\n"), nil
}

func (b *Backend) Symlink(source, dest string) error {
	return fmt.Errorf("symlink %s: %w", dest, storage.ErrUnsupported)
}

// objectTemp 在内存里扮演临时文件：对象存储的单键 PUT 本身原子，提交
// 阶段一次写入即可，名字仅用于与本地后端一致的诊断输出。
type objectTemp struct {
	name      string
	buf       bytes.Buffer
	discarded bool
}

func newObjectTemp(target string) *objectTemp {
	dir, base := path.Split(key(target))
	return &objectTemp{name: dir + "." + base + "." + uuid.NewString()}
}

func (t *objectTemp) Write(p []byte) (int, error) { return t.buf.Write(p) }

func (t *objectTemp) Name() string { return t.name }

func (t *objectTemp) Discard() error {
	t.discarded = true
	t.buf.Reset()
	return nil
}

func (b *Backend) Rewrite(target string, fn storage.WriteFunc) error {
	tmp := newObjectTemp(target)
	if err := fn(tmp); err != nil {
		return err
	}
	if tmp.discarded {
		return nil
	}
	return b.WriteFile(target, tmp.buf.Bytes())
}

func (b *Backend) UpdateSafe(target string, fn storage.WriteFunc) (bool, error) {
	tmp := newObjectTemp(target)
	if err := fn(tmp); err != nil {
		return false, err
	}
	if tmp.discarded {
		return false, nil
	}

	if existing, err := b.ReadFile(target); err == nil {
		if bytes.Equal(existing, tmp.buf.Bytes()) {
			return false, nil
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}

	if err := b.WriteFile(target, tmp.buf.Bytes()); err != nil {
		return false, err
	}
	return true, nil
}
