// Package types 定义 HTTP 接口的请求与响应结构.
package types

import (
	"time"

	"github.com/yeisme/syncvault/pkg/internal/model"
)

// UploadFileResponse 上传成功响应.
type UploadFileResponse struct {
	UID         string `json:"uid"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Checksum    string `json:"checksum,omitempty"`
}

// FileInfo 文件元数据视图，不暴露本地路径.
type FileInfo struct {
	UID                  string    `json:"uid"`
	OriginalName         string    `json:"original_name"`
	Size                 int64     `json:"size"`
	ContentType          string    `json:"content_type"`
	Checksum             string    `json:"checksum,omitempty"`
	RemoteURL            *string   `json:"remote_url"`
	Replicated           bool      `json:"replicated"`
	ReplicationAttempts  int       `json:"replication_attempts"`
	LastReplicationError string    `json:"last_replication_error,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// NewFileInfo 从记录构造视图.
func NewFileInfo(rec *model.FileRecord) FileInfo {
	return FileInfo{
		UID:                  rec.UID,
		OriginalName:         rec.OriginalName,
		Size:                 rec.Size,
		ContentType:          rec.ContentType,
		Checksum:             rec.Checksum,
		RemoteURL:            rec.RemoteURL,
		Replicated:           rec.Replicated(),
		ReplicationAttempts:  rec.ReplicationAttempts,
		LastReplicationError: rec.LastReplicationError,
		CreatedAt:            rec.CreatedAt,
	}
}

// GetFileResponse 查询单个文件响应.
type GetFileResponse struct {
	Message string   `json:"message"`
	File    FileInfo `json:"file"`
}

// ListFilesRequest 分页参数.
type ListFilesRequest struct {
	Page int `binding:"omitempty,min=1"         form:"page"`
	Size int `binding:"omitempty,min=1,max=100" form:"size"`
}

// ListFilesResponse 分页结果，按创建时间倒序.
type ListFilesResponse struct {
	Files []FileInfo `json:"files"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
}

// MessageResponse 通用消息响应.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse 通用错误响应.
type ErrorResponse struct {
	Error string `json:"error"`
}
