package db

import (
	"context"
	"fmt"

	"github.com/yeisme/syncvault/pkg/internal/model"
)

// FileStats 元数据聚合统计.
type FileStats struct {
	Total        int64           `json:"total"`
	TotalSize    int64           `json:"total_size"`
	Replicated   int64           `json:"replicated"`
	Unreplicated int64           `json:"unreplicated"`
	Failing      int64           `json:"failing"` // 未复制且至少失败过一次
	ByType       []TypeStatsItem `json:"by_type"`
}

// TypeStatsItem 按 content_type 一级类型聚合.
type TypeStatsItem struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
	Size  int64  `json:"size"`
}

// Stats 用一次聚合查询统计总量与复制状态，再按类型分组.
func (c *Client) Stats(ctx context.Context) (*FileStats, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	dbx := c.WithContext(ctx)

	var agg struct {
		Total        int64 `gorm:"column:total"`
		TotalSize    int64 `gorm:"column:total_size"`
		Replicated   int64 `gorm:"column:replicated"`
		Unreplicated int64 `gorm:"column:unreplicated"`
		Failing      int64 `gorm:"column:failing"`
	}

	// COALESCE 兼容 SQLite/MySQL/PostgreSQL 空表时的 NULL
	selectExpr := "COUNT(*) AS total, " +
		"COALESCE(SUM(size),0) AS total_size, " +
		"COALESCE(SUM(CASE WHEN storage_url IS NOT NULL AND storage_url <> '' THEN 1 ELSE 0 END),0) AS replicated, " +
		"COALESCE(SUM(CASE WHEN storage_url IS NULL OR storage_url = '' THEN 1 ELSE 0 END),0) AS unreplicated, " +
		"COALESCE(SUM(CASE WHEN (storage_url IS NULL OR storage_url = '') AND replication_attempts > 0 THEN 1 ELSE 0 END),0) AS failing"

	if err := dbx.Model(&model.FileRecord{}).Select(selectExpr).Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("aggregate records: %w", err)
	}

	var rows []struct {
		CT  string `gorm:"column:ct"`
		Cnt int64  `gorm:"column:cnt"`
		Sum int64  `gorm:"column:sum"`
	}

	// 取 content_type 中 '/' 之前的部分，为空归为 unknown
	err := dbx.Model(&model.FileRecord{}).
		Select("CASE WHEN content_type LIKE '%/%' THEN " +
			"SUBSTR(content_type,1,INSTR(content_type,'/')-1) " +
			"ELSE COALESCE(NULLIF(content_type,''),'unknown') END AS ct, " +
			"COUNT(*) AS cnt, COALESCE(SUM(size),0) AS sum").
		Group("ct").
		Order("cnt DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate by type: %w", err)
	}

	stats := &FileStats{
		Total:        agg.Total,
		TotalSize:    agg.TotalSize,
		Replicated:   agg.Replicated,
		Unreplicated: agg.Unreplicated,
		Failing:      agg.Failing,
		ByType:       make([]TypeStatsItem, 0, len(rows)),
	}

	for _, r := range rows {
		stats.ByType = append(stats.ByType, TypeStatsItem{Type: r.CT, Count: r.Cnt, Size: r.Sum})
	}

	return stats, nil
}
