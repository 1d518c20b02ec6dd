package service

import (
	"github.com/rs/zerolog"

	"github.com/yeisme/syncvault/pkg/internal/model"
	nlog "github.com/yeisme/syncvault/pkg/log"
	"github.com/yeisme/syncvault/pkg/queue"
)

// Enqueuer 接收复制任务，不阻塞.
type Enqueuer interface {
	Enqueue(task ReplicationTask) bool
}

// FileService 处理上传、查询与删除.
type FileService struct {
	records RecordStore
	blobs   BlobStore
	remote  ObjectStore
	repl    Enqueuer
	events  *queue.Emitter
	log     zerolog.Logger
}

// NewFileService 创建文件服务；events 为 nil 时不发布事件.
func NewFileService(records RecordStore, blobs BlobStore, remote ObjectStore, repl Enqueuer, events *queue.Emitter) *FileService {
	return &FileService{
		records: records,
		blobs:   blobs,
		remote:  remote,
		repl:    repl,
		events:  events,
		log:     nlog.Component("files"),
	}
}

func fileRef(rec *model.FileRecord) queue.FileRef {
	ref := queue.FileRef{
		UID:          rec.UID,
		OriginalName: rec.OriginalName,
		Size:         rec.Size,
		ContentType:  rec.ContentType,
		Checksum:     rec.Checksum,
		LocalPath:    rec.LocalPath,
	}
	if rec.RemoteURL != nil {
		ref.RemoteURL = *rec.RemoteURL
	}

	return ref
}
