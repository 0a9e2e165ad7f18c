package domain

import "context"

// InventoryStore 是库存目录的读侧接口。
// 数量的减少没有独立入口，只能经由 Tx.DecrementQuantity
// 在协调器事务内发生，避免绕过原子边界的竞态。
type InventoryStore interface {
	// GetItem 按主键读取一条目录条目，不存在返回 ErrNotFound。
	GetItem(ctx context.Context, owner PartitionKey, itemID string) (*InventoryItem, error)

	// ListItems 返回分区的全部目录条目，按 ID 排序。
	ListItems(ctx context.Context, owner PartitionKey) ([]*InventoryItem, error)

	// PutItem 写入或覆盖一条目录条目（货主维护目录用，不经过事务）。
	PutItem(ctx context.Context, item *InventoryItem) error
}

// RequestQueue 是认领请求队列的持久化接口。
// 请求一旦创建永不删除，终态记录作为历史保留。
type RequestQueue interface {
	// CreateRequest 持久化一条新的 pending 请求。
	CreateRequest(ctx context.Context, req *Request) error

	// GetRequest 按主键读取请求，不存在返回 ErrNotFound。
	GetRequest(ctx context.Context, owner PartitionKey, requestID string) (*Request, error)

	// ListRequests 返回按 CreatedAt 排序的请求投影，status 为空表示全部。
	// 这是给视图层消费的只读投影，协调器决策永远重读权威记录。
	ListRequests(ctx context.Context, owner PartitionKey, status RequestStatus) ([]*Request, error)
}

// DecisionLedger 是只追加的决策账本读侧接口。
type DecisionLedger interface {
	// GetDecision 读取请求对应的账本记录，不存在返回 ErrNotFound。
	GetDecision(ctx context.Context, owner PartitionKey, requestID string) (*DecisionRecord, error)

	// ListDecisions 返回分区的全部账本记录，按 ProcessedAt 排序。
	ListDecisions(ctx context.Context, owner PartitionKey) ([]*DecisionRecord, error)
}

// Tx 暴露了只允许在一次原子提交内使用的写原语。
// 传入的聚合携带读取时的 Version 快照；任何一处版本在提交前
// 被并发写移动，整个事务以 ErrContention 失败，不产生部分写入。
type Tx interface {
	// UpdateRequestStatus 以版本条件写入请求的新状态。
	UpdateRequestStatus(req *Request) error

	// DecrementQuantity 以版本条件扣减库存，结果不允许为负。
	DecrementQuantity(item *InventoryItem, amount int64) error

	// AppendDecision 追加账本记录，请求已有记录时返回 ErrDuplicateDecision。
	AppendDecision(rec *DecisionRecord) error
}

// TxRunner 执行原子多记录提交。fn 返回错误或任一版本条件不满足时
// 整体回滚；成功提交后存储负责向订阅方广播对应的变更事件。
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Store 聚合了持久化协作方必须提供的全部能力：
// 点查、原子多记录提交（带乐观冲突检测）、变更订阅。
// 具体实现见 infrastructure/memory 与 infrastructure/gormstore。
type Store interface {
	InventoryStore
	RequestQueue
	DecisionLedger
	TxRunner
}
