package queue

// 主题命名规范：sv.<域>.<动作>[.<状态>].
const (
	// 文件生命周期.
	TopicFileStored            = "sv.file.stored"             // 本地写入并落库完成
	TopicFileReplicated        = "sv.file.replicated"         // 已复制到远端，remote_url 已写入
	TopicFileReplicationFailed = "sv.file.replication.failed" // 重试耗尽，等待补偿扫描
	TopicFileDeleted           = "sv.file.deleted"            // 用户删除完成

	// 对账.
	TopicOrphanRemoved      = "sv.orphan.removed"      // 删除了一个孤儿文件或对象
	TopicRecordInconsistent = "sv.record.inconsistent" // 记录存在但本地文件缺失
	TopicReconcileCompleted = "sv.reconcile.completed" // 一轮对账结束
)

// AllTopics 全部主题，CLI 与调试使用.
var AllTopics = []string{
	TopicFileStored,
	TopicFileReplicated,
	TopicFileReplicationFailed,
	TopicFileDeleted,
	TopicOrphanRemoved,
	TopicRecordInconsistent,
	TopicReconcileCompleted,
}
