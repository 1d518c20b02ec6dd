// Package model 定义持久化到元数据库的实体.
package model

import (
	"path/filepath"
	"time"
)

// FileRecord 文件元数据记录，是本地文件与远端对象是否应当存在的唯一依据.
// 列名沿用 file_metadata 旧表结构（path、storage_url）.
type FileRecord struct {
	ID uint `gorm:"primaryKey" json:"-"`
	// UID 对外暴露的不可变标识（uuid v4）
	UID          string `gorm:"size:36;uniqueIndex;not null" json:"uid"`
	OriginalName string `gorm:"size:512;not null"            json:"original_name"`
	Size         int64  `gorm:"not null;default:0"           json:"size"`
	ContentType  string `gorm:"size:255"                     json:"content_type"`
	// Checksum 内容的 xxhash64（十六进制）
	Checksum string `gorm:"size:16" json:"checksum"`
	// LocalPath <root>/<uid>_<original_name>，写入后不再变化
	LocalPath string `gorm:"column:path;size:1024;not null" json:"local_path"`
	// RemoteURL 复制完成前为 NULL，写入后不会被清空
	RemoteURL *string `gorm:"column:storage_url;size:2048;index" json:"remote_url"`

	ReplicationAttempts  int    `gorm:"not null;default:0" json:"replication_attempts"`
	LastReplicationError string `gorm:"size:1024"          json:"last_replication_error,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名.
func (FileRecord) TableName() string {
	return "file_metadata"
}

// Replicated 是否已复制到远端.
func (r *FileRecord) Replicated() bool {
	return r.RemoteURL != nil && *r.RemoteURL != ""
}

// RemoteKey 远端对象键，即本地文件名.
func (r *FileRecord) RemoteKey() string {
	return filepath.Base(r.LocalPath)
}
