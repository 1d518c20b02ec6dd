package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound uid 没有对应的记录.
	ErrNotFound = errors.New("file not found")
	// ErrMissingOnDisk 记录存在但本地文件缺失.
	ErrMissingOnDisk = errors.New("file not found on disk")
	// ErrInvalidName 文件名为空或只包含路径成分.
	ErrInvalidName = errors.New("invalid file name")
	// ErrRemoteDelete 删除远端对象失败，记录保留以便重试.
	ErrRemoteDelete = errors.New("remote delete failed")

	// ErrLocalWrite 上传写盘失败，未创建记录.
	ErrLocalWrite = errors.New("local write failed")
	// ErrReplication 复制任务最终失败.
	ErrReplication = errors.New("replication failed")
	// ErrOrphanCleanup 对账时单个孤儿删除失败.
	ErrOrphanCleanup = errors.New("orphan cleanup failed")
)

// LocalWriteError 上传写入本地存储失败.
type LocalWriteError struct {
	Name string
	Err  error
}

func (e *LocalWriteError) Error() string {
	return fmt.Sprintf("local write %s: %v", e.Name, e.Err)
}

func (e *LocalWriteError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrLocalWrite) 成立.
func (e *LocalWriteError) Is(target error) bool { return target == ErrLocalWrite }

// ReplicationError 复制任务在全部重试后仍失败.
type ReplicationError struct {
	UID      string
	Attempts int
	Err      error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replicate %s after %d attempt(s): %v", e.UID, e.Attempts, e.Err)
}

func (e *ReplicationError) Unwrap() error { return e.Err }

func (e *ReplicationError) Is(target error) bool { return target == ErrReplication }

// OrphanCleanupError 删除单个孤儿失败，不中断对账.
type OrphanCleanupError struct {
	Location string // local | remote
	Path     string
	Err      error
}

func (e *OrphanCleanupError) Error() string {
	return fmt.Sprintf("remove %s orphan %s: %v", e.Location, e.Path, e.Err)
}

func (e *OrphanCleanupError) Unwrap() error { return e.Err }

func (e *OrphanCleanupError) Is(target error) bool { return target == ErrOrphanCleanup }

// InconsistentRecord 记录存在但本地文件缺失；只上报，不修复.
type InconsistentRecord struct {
	UID       string `json:"uid"`
	LocalPath string `json:"local_path"`
}
