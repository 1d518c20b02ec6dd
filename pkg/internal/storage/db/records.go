package db

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/yeisme/syncvault/pkg/internal/model"
)

const scanBatchSize = 1000

// Insert 新增文件记录，remote_url 应为空.
func (c *Client) Insert(ctx context.Context, rec *model.FileRecord) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert record %s: %w", rec.UID, err)
	}

	return nil
}

// GetByUID 按 uid 查询记录，不存在时返回 ErrNotFound.
func (c *Client) GetByUID(ctx context.Context, uid string) (*model.FileRecord, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var rec model.FileRecord

	err := c.WithContext(ctx).Where("uid = ?", uid).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", uid, err)
	}

	return &rec, nil
}

// List 分页列出记录，按创建时间倒序.
func (c *Client) List(ctx context.Context, offset, limit int) ([]model.FileRecord, int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var (
		total int64
		recs  []model.FileRecord
	)

	if err := c.WithContext(ctx).Model(&model.FileRecord{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	if err := c.WithContext(ctx).Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&recs).Error; err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}

	return recs, total, nil
}

// All 全表扫描，分批读取以限制单次查询的结果集；整体受 ctx 约束.
func (c *Client) All(ctx context.Context) ([]model.FileRecord, error) {
	var (
		out   []model.FileRecord
		batch []model.FileRecord
	)

	res := c.WithContext(ctx).
		Select("id", "uid", "path", "storage_url", "created_at").
		FindInBatches(&batch, scanBatchSize, func(_ *gorm.DB, _ int) error {
			out = append(out, batch...)

			return nil
		})
	if res.Error != nil {
		return nil, fmt.Errorf("scan records: %w", res.Error)
	}

	return out, nil
}

// SetRemoteURL 写入 remote_url；记录已删除或已复制时返回 false.
func (c *Client) SetRemoteURL(ctx context.Context, uid, url string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res := c.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("uid = ? AND storage_url IS NULL", uid).
		Updates(map[string]any{
			"storage_url":            url,
			"last_replication_error": "",
		})
	if res.Error != nil {
		return false, fmt.Errorf("set remote url %s: %w", uid, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// MarkReplicationFailure 累加失败次数并记录最后一次错误.
func (c *Client) MarkReplicationFailure(ctx context.Context, uid, reason string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	reason = truncateReason(reason)

	res := c.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("uid = ?", uid).
		Updates(map[string]any{
			"replication_attempts":   gorm.Expr("replication_attempts + ?", 1),
			"last_replication_error": reason,
		})
	if res.Error != nil {
		return fmt.Errorf("mark replication failure %s: %w", uid, res.Error)
	}

	return nil
}

const maxReasonLen = 1024

// truncateReason 截到 maxReasonLen 字节以内，落在完整字符边界上.
func truncateReason(reason string) string {
	if len(reason) <= maxReasonLen {
		return reason
	}

	cut := maxReasonLen
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}

	return reason[:cut]
}

// Delete 删除记录；记录不存在时返回 false.
func (c *Client) Delete(ctx context.Context, uid string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res := c.WithContext(ctx).Where("uid = ?", uid).Delete(&model.FileRecord{})
	if res.Error != nil {
		return false, fmt.Errorf("delete record %s: %w", uid, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// ListUnreplicated 列出早于 before、尚未复制且失败次数未达上限的记录，最旧的优先.
func (c *Client) ListUnreplicated(ctx context.Context, before time.Time, maxAttempts, limit int) ([]model.FileRecord, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var recs []model.FileRecord

	err := c.WithContext(ctx).
		Where("storage_url IS NULL AND created_at < ? AND replication_attempts < ?", before, maxAttempts).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list unreplicated: %w", err)
	}

	return recs, nil
}

// CountUnreplicated 统计尚未复制的记录数.
func (c *Client) CountUnreplicated(ctx context.Context) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := c.WithContext(ctx).Model(&model.FileRecord{}).Where("storage_url IS NULL").Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count unreplicated: %w", err)
	}

	return n, nil
}
