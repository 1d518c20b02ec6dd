package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/syncvault/pkg/internal/model"
	"github.com/yeisme/syncvault/pkg/internal/storage/local"
	"github.com/yeisme/syncvault/pkg/metrics"
	"github.com/yeisme/syncvault/pkg/tracing"
)

const (
	// maxComponentLen 常见文件系统单个路径段的字节上限.
	maxComponentLen = 255
	// MaxNameLength 文件名最大字节数；落盘名为 <uid>_<name>，写入时再加临时后缀.
	MaxNameLength = maxComponentLen - len("00000000-0000-0000-0000-000000000000_") - len(local.TempSuffix)
	// sniffLen mimetype 检测读取的头部字节数.
	sniffLen = 3072

	genericContentType = "application/octet-stream"
)

// UploadInput 上传参数.
type UploadInput struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// SanitizeName 只保留文件名的最后一段.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)

	switch {
	case name == "", name == ".", name == "..", name == "/":
		return "", ErrInvalidName
	case len(name) > MaxNameLength, !utf8.ValidString(name), strings.ContainsRune(name, 0):
		return "", ErrInvalidName
	}

	return name, nil
}

// Upload 把上传内容原子写入本地、插入记录并投递复制任务；不访问远端.
func (s *FileService) Upload(ctx context.Context, in UploadInput) (rec *model.FileRecord, err error) {
	ctx, span := tracing.StartSpan(ctx, "files.upload")
	defer func() { tracing.EndSpan(span, err) }()

	defer func() {
		if err != nil {
			metrics.UploadsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		}
	}()

	name, err := SanitizeName(in.Name)
	if err != nil {
		return nil, err
	}

	body := in.Body
	contentType := strings.TrimSpace(in.ContentType)

	if contentType == "" || strings.HasPrefix(contentType, genericContentType) {
		head := make([]byte, sniffLen)

		n, rerr := io.ReadFull(in.Body, head)
		if rerr != nil && !errors.Is(rerr, io.EOF) && !errors.Is(rerr, io.ErrUnexpectedEOF) {
			return nil, &LocalWriteError{Name: name, Err: rerr}
		}

		head = head[:n]
		contentType = mimetype.Detect(head).String()
		body = io.MultiReader(bytes.NewReader(head), in.Body)
	}

	uid := uuid.NewString()
	span.SetAttributes(attribute.String("file.uid", uid))

	res, err := s.blobs.Write(ctx, uid+"_"+name, body)
	if err != nil {
		return nil, &LocalWriteError{Name: name, Err: err}
	}

	rec = &model.FileRecord{
		UID:          uid,
		OriginalName: name,
		Size:         res.Size,
		ContentType:  contentType,
		Checksum:     res.Checksum,
		LocalPath:    res.Path,
	}

	if err = s.records.Insert(ctx, rec); err != nil {
		// 没有记录的文件就是孤儿，立即删掉
		if rmErr := s.blobs.Remove(res.Path); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("path", res.Path).Msg("remove file after failed insert")
		}

		return nil, fmt.Errorf("insert record: %w", err)
	}

	metrics.UploadsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	metrics.UploadBytes.Add(float64(rec.Size))

	if !s.repl.Enqueue(ReplicationTask{UID: rec.UID, LocalPath: rec.LocalPath}) {
		trace.SpanFromContext(ctx).AddEvent("replication task dropped")
	}

	s.events.FileStored(ctx, fileRef(rec))

	s.log.Info().
		Str("uid", rec.UID).
		Str("name", rec.OriginalName).
		Int64("size", rec.Size).
		Str("content_type", rec.ContentType).
		Msg("file stored")

	return rec, nil
}
