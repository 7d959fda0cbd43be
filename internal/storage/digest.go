package storage

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// HashChunkSize 是流式摘要与逐字节比较的读块大小，保证内存占用与文件
// 大小无关。
const HashChunkSize = 128 * 1024

// NewDigest 按算法名构造摘要器，空串使用 sha256。所有后端共享同一套
// 算法表，保证不同后端算出的摘要可互相比对。
func NewDigest(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "", "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	case "md5":
		return md5.New(), nil
	case "blake3":
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
}
