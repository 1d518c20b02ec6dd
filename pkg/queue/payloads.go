package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪 ID，来自当前 span.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// FileRef 标识一个文件.
type FileRef struct {
	UID          string `json:"uid"`
	OriginalName string `json:"original_name,omitempty"`
	Size         int64  `json:"size,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	Checksum     string `json:"checksum,omitempty"`
	LocalPath    string `json:"local_path,omitempty"`
	RemoteURL    string `json:"remote_url,omitempty"`
}

// FilePayload sv.file.stored / sv.file.replicated / sv.file.deleted 的负载.
type FilePayload struct {
	File FileRef `json:"file"`
}

// ReplicationFailedPayload sv.file.replication.failed 的负载.
type ReplicationFailedPayload struct {
	File     FileRef `json:"file"`
	Attempts int     `json:"attempts"`
	Error    string  `json:"error"`
}

// OrphanRemovedPayload sv.orphan.removed 的负载.
type OrphanRemovedPayload struct {
	RunID    string    `json:"run_id"`
	Location string    `json:"location"` // local | remote
	Path     string    `json:"path"`     // 本地绝对路径或远端 key
	ModTime  time.Time `json:"mod_time"`
}

// InconsistentRecordPayload sv.record.inconsistent 的负载.
type InconsistentRecordPayload struct {
	RunID     string `json:"run_id,omitempty"`
	UID       string `json:"uid"`
	LocalPath string `json:"local_path"`
}

// ReconcileCompletedPayload sv.reconcile.completed 的负载.
type ReconcileCompletedPayload struct {
	RunID                string        `json:"run_id"`
	DryRun               bool          `json:"dry_run"`
	Records              int           `json:"records"`
	LocalOrphansRemoved  int           `json:"local_orphans_removed"`
	RemoteOrphansRemoved int           `json:"remote_orphans_removed"`
	Failures             int           `json:"failures"`
	Inconsistent         int           `json:"inconsistent"`
	Duration             time.Duration `json:"duration"`
	Error                string        `json:"error,omitempty"`
}
