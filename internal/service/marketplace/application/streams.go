// internal/service/marketplace/application/streams.go
package application

import (
	"context"

	"agrilink/internal/service/marketplace/domain"
)

// PartitionStreams 是视图层消费的读侧门面：按 (ownerType, ownerID)
// 取 pending / accepted / declined 列表、库存目录、账本投影，
// 以及分区变更事件的有序订阅。全部只读，最终一致，
// 永远不会驱动写入 —— 协调器决策只看提交时点的权威记录。
type PartitionStreams struct {
	store  domain.Store
	stream domain.ChangeStream
}

// NewPartitionStreams 创建读侧门面。
func NewPartitionStreams(store domain.Store, stream domain.ChangeStream) *PartitionStreams {
	return &PartitionStreams{store: store, stream: stream}
}

// PendingRequests 返回分区内按提交时间排序的待裁决请求。
func (p *PartitionStreams) PendingRequests(ctx context.Context, owner domain.PartitionKey) ([]*domain.Request, error) {
	return p.store.ListRequests(ctx, owner, domain.StatusPending)
}

// AcceptedRequests 返回分区内已接受的历史请求。
func (p *PartitionStreams) AcceptedRequests(ctx context.Context, owner domain.PartitionKey) ([]*domain.Request, error) {
	return p.store.ListRequests(ctx, owner, domain.StatusApproved)
}

// DeclinedRequests 返回分区内已拒绝的历史请求。
func (p *PartitionStreams) DeclinedRequests(ctx context.Context, owner domain.PartitionKey) ([]*domain.Request, error) {
	return p.store.ListRequests(ctx, owner, domain.StatusRejected)
}

// InventoryItems 返回分区的目录投影。
func (p *PartitionStreams) InventoryItems(ctx context.Context, owner domain.PartitionKey) ([]*domain.InventoryItem, error) {
	return p.store.ListItems(ctx, owner)
}

// Decisions 返回分区的账本投影。
func (p *PartitionStreams) Decisions(ctx context.Context, owner domain.PartitionKey) ([]*domain.DecisionRecord, error) {
	return p.store.ListDecisions(ctx, owner)
}

// WatchPartition 订阅分区的有序变更事件。
// 调用方负责在离开管理视图时调用取消函数释放订阅。
func (p *PartitionStreams) WatchPartition(owner domain.PartitionKey) (<-chan domain.ChangeEvent, func()) {
	return p.stream.Subscribe(owner)
}
