package domain

import "time"

// ChangeKind 标识分区状态的一类变化。
type ChangeKind string

const (
	ChangeRequestSubmitted ChangeKind = "request_submitted"
	ChangeRequestApproved  ChangeKind = "request_approved"
	ChangeRequestRejected  ChangeKind = "request_rejected"
	ChangeInventoryUpdated ChangeKind = "inventory_updated"
)

// ChangeEvent 是提交成功后对订阅方广播的增量通知。
// Seq 在单个存储实例内单调递增，订阅方按序接收；
// 事件只描述"变了什么"，读取方自行拉取最新投影。
// 通知流是最终一致的，永远不会反过来驱动写入。
type ChangeEvent struct {
	Seq       int64        `json:"seq"`
	Owner     PartitionKey `json:"owner"`
	Kind      ChangeKind   `json:"kind"`
	RequestID string       `json:"requestId,omitempty"`
	ItemID    string       `json:"itemId,omitempty"`
	At        time.Time    `json:"at"`
}

// ChangeStream 是变更订阅的入站端口。
// Subscribe 返回按 Seq 有序的事件通道和取消函数；
// 取消后通道会被关闭。慢消费者可能丢失事件（取最新投影兜底），
// 订阅永远不会阻塞提交路径。
type ChangeStream interface {
	Subscribe(owner PartitionKey) (<-chan ChangeEvent, func())
}

// ChangePublisher 是变更通知的出站端口，由消息基础设施实现
// （进程内扇出、Kafka 等）。发布失败不影响已提交的事务。
type ChangePublisher interface {
	Publish(event ChangeEvent) error
}
