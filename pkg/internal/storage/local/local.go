// Package local 实现基于 go-billy 的本地文件存储，写入采用临时文件 + fsync + rename 保证原子性.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/yeisme/syncvault/pkg/configs"
)

// TempSuffix 写入中的临时文件后缀；对账遍历时同样受宽限期保护.
const TempSuffix = ".tmp"

var (
	// ErrOutsideRoot 路径不在存储根目录下.
	ErrOutsideRoot = errors.New("path outside storage root")
	// ErrExists 目标文件已存在.
	ErrExists = errors.New("file already exists")
)

// Entry 遍历得到的一个文件.
type Entry struct {
	Path    string // 绝对路径
	Size    int64
	ModTime time.Time
}

// WriteResult 写入结果.
type WriteResult struct {
	Path     string // 绝对路径
	Size     int64
	Checksum string // xxhash64 hex
}

// Store 本地文件存储.
type Store struct {
	fs    billy.Filesystem
	root  string
	fsync bool
}

// New 创建本地存储并确保根目录存在.
func New(cfg *configs.StorageConfig) (*Store, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root %q: %w", cfg.Root, err)
	}

	if err := os.MkdirAll(root, configs.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", root, err)
	}

	// 解析符号链接，保证记录中的路径与遍历得到的路径一致
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	return &Store{
		fs:    osfs.New(root, osfs.WithBoundOS()),
		root:  root,
		fsync: cfg.Fsync,
	}, nil
}

// Root 返回存储根目录的绝对路径.
func (s *Store) Root() string {
	return s.root
}

// Path 返回文件名对应的绝对路径.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// rel 把绝对路径转换为相对根目录的路径.
func (s *Store) rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}

	rel, err := filepath.Rel(s.root, filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	return rel, nil
}

// Write 把 r 的内容原子写入 name：先写 name.tmp，fsync 后 rename.
// 失败时删除临时文件，目标文件不会出现.
func (s *Store) Write(ctx context.Context, name string, r io.Reader) (*WriteResult, error) {
	rel, err := s.rel(name)
	if err != nil {
		return nil, err
	}

	tmp := rel + TempSuffix

	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, tmp)
		}

		return nil, fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
	}

	h := xxhash.New()

	n, err := io.Copy(io.MultiWriter(f, h), &ctxReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()

		return nil, fmt.Errorf("write %s: %w", rel, err)
	}

	if s.fsync {
		if syncer, ok := f.(interface{ Sync() error }); ok {
			if err := syncer.Sync(); err != nil {
				cleanup()

				return nil, fmt.Errorf("fsync %s: %w", rel, err)
			}
		}
	}

	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)

		return nil, fmt.Errorf("close %s: %w", rel, err)
	}

	// 上传 uid 唯一，目标已存在说明出现了异常的重复写入
	if _, err := s.fs.Lstat(rel); err == nil {
		_ = s.fs.Remove(tmp)

		return nil, fmt.Errorf("%w: %s", ErrExists, rel)
	}

	if err := s.fs.Rename(tmp, rel); err != nil {
		_ = s.fs.Remove(tmp)

		return nil, fmt.Errorf("rename %s: %w", rel, err)
	}

	return &WriteResult{
		Path:     s.Path(rel),
		Size:     n,
		Checksum: strconv.FormatUint(h.Sum64(), 16),
	}, nil
}

// Open 打开文件读取.
func (s *Store) Open(path string) (billy.File, error) {
	rel, err := s.rel(path)
	if err != nil {
		return nil, err
	}

	return s.fs.Open(rel)
}

// Stat 返回文件信息.
func (s *Store) Stat(path string) (fs.FileInfo, error) {
	rel, err := s.rel(path)
	if err != nil {
		return nil, err
	}

	return s.fs.Stat(rel)
}

// Exists 文件是否存在.
func (s *Store) Exists(path string) (bool, error) {
	_, err := s.Stat(path)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, err
}

// Remove 删除文件，文件不存在视为成功.
func (s *Store) Remove(path string) error {
	rel, err := s.rel(path)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(rel); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", rel, err)
	}

	return nil
}

// Walk 递归遍历根目录下的所有普通文件；fn 返回错误时停止.
// 单个条目的读取错误交给 fn 之外的 onErr 处理，遍历继续.
func (s *Store) Walk(ctx context.Context, fn func(Entry) error, onErr func(path string, err error)) error {
	return util.Walk(s.fs, "", func(path string, info fs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == "" {
				return err
			}

			if onErr != nil {
				onErr(s.Path(path), err)
			}

			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return fn(Entry{Path: s.Path(path), Size: info.Size(), ModTime: info.ModTime()})
	})
}

// Ping 检查根目录可访问.
func (s *Store) Ping() error {
	info, err := s.fs.Stat("")
	if err != nil {
		return fmt.Errorf("stat storage root: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", s.root)
	}

	return nil
}

// ctxReader 在每次 Read 前检查 ctx，使大文件写入可以被取消.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
