package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-git/go-billy/v5"

	"github.com/yeisme/syncvault/pkg/internal/model"
	"github.com/yeisme/syncvault/pkg/internal/storage/db"
	"github.com/yeisme/syncvault/pkg/metrics"
	"github.com/yeisme/syncvault/pkg/tracing"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListResult 分页结果.
type ListResult struct {
	Items []model.FileRecord `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
}

func (s *FileService) lookup(ctx context.Context, uid string) (*model.FileRecord, error) {
	rec, err := s.records.GetByUID(ctx, uid)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", uid, err)
	}

	return rec, nil
}

// Get 返回记录；本地文件缺失时返回 ErrMissingOnDisk.
func (s *FileService) Get(ctx context.Context, uid string) (*model.FileRecord, error) {
	rec, err := s.lookup(ctx, uid)
	if err != nil {
		return nil, err
	}

	ok, err := s.blobs.Exists(rec.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", rec.LocalPath, err)
	}

	if !ok {
		s.log.Warn().Str("uid", uid).Str("path", rec.LocalPath).Msg("inconsistent record: local file missing")

		return nil, ErrMissingOnDisk
	}

	return rec, nil
}

// Open 返回记录与可读文件，调用方负责关闭.
func (s *FileService) Open(ctx context.Context, uid string) (*model.FileRecord, billy.File, error) {
	rec, err := s.lookup(ctx, uid)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.blobs.Open(rec.LocalPath)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Str("uid", uid).Str("path", rec.LocalPath).Msg("inconsistent record: local file missing")

		return nil, nil, ErrMissingOnDisk
	}

	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", rec.LocalPath, err)
	}

	return rec, f, nil
}

// List 按创建时间倒序分页.
func (s *FileService) List(ctx context.Context, page, size int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}

	if size < 1 {
		size = DefaultPageSize
	}

	size = min(size, MaxPageSize)

	items, total, err := s.records.List(ctx, (page-1)*size, size)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	return &ListResult{Items: items, Total: total, Page: page, Size: size}, nil
}

// Delete 依次删除本地文件、远端对象与记录.
// 存储先于记录删除：中途失败最多留下孤儿，由对账清理.
func (s *FileService) Delete(ctx context.Context, uid string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "files.delete")
	defer func() { tracing.EndSpan(span, err) }()

	defer func() {
		switch {
		case err == nil:
			metrics.DeletesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		case errors.Is(err, ErrNotFound):
			metrics.DeletesTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		default:
			metrics.DeletesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		}
	}()

	rec, err := s.lookup(ctx, uid)
	if err != nil {
		return err
	}

	if err = s.blobs.Remove(rec.LocalPath); err != nil {
		return fmt.Errorf("remove local file: %w", err)
	}

	if rec.Replicated() {
		if err = s.remote.Remove(ctx, rec.RemoteKey()); err != nil {
			return fmt.Errorf("%w: %w", ErrRemoteDelete, err)
		}
	}

	deleted, err := s.records.Delete(ctx, uid)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	if !deleted {
		// 并发删除已先完成
		return ErrNotFound
	}

	s.events.FileDeleted(ctx, fileRef(rec))
	s.log.Info().Str("uid", uid).Msg("file deleted")

	return nil
}
