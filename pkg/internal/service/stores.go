package service

import (
	"context"
	"io"
	"io/fs"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/yeisme/syncvault/pkg/internal/model"
	"github.com/yeisme/syncvault/pkg/internal/storage/local"
	"github.com/yeisme/syncvault/pkg/internal/storage/s3"
)

// RecordStore 元数据存储，由 db.Client 实现.
type RecordStore interface {
	Insert(ctx context.Context, rec *model.FileRecord) error
	GetByUID(ctx context.Context, uid string) (*model.FileRecord, error)
	List(ctx context.Context, offset, limit int) ([]model.FileRecord, int64, error)
	All(ctx context.Context) ([]model.FileRecord, error)
	SetRemoteURL(ctx context.Context, uid, url string) (bool, error)
	MarkReplicationFailure(ctx context.Context, uid, reason string) error
	Delete(ctx context.Context, uid string) (bool, error)
	ListUnreplicated(ctx context.Context, before time.Time, maxAttempts, limit int) ([]model.FileRecord, error)
}

// ScopedRecords 单次任务独占的元数据连接.
type ScopedRecords interface {
	RecordStore
	Close() error
}

// Opener 为一次对账打开独立的元数据连接.
type Opener func(ctx context.Context) (ScopedRecords, error)

// BlobStore 本地块存储，由 local.Store 实现.
type BlobStore interface {
	Path(name string) string
	Write(ctx context.Context, name string, r io.Reader) (*local.WriteResult, error)
	Open(path string) (billy.File, error)
	Stat(path string) (fs.FileInfo, error)
	Exists(path string) (bool, error)
	Remove(path string) error
	Walk(ctx context.Context, fn func(local.Entry) error, onErr func(path string, err error)) error
}

// ObjectStore 远端对象存储，由 s3.Client 实现.
type ObjectStore interface {
	ObjectURL(key string) string
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	List(ctx context.Context, fn func(s3.Object) error) error
}
