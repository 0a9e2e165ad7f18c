package domain

import (
	"fmt"
	"time"
)

// RequestStatus 定义了认领请求的生命周期状态。
// pending 是唯一的初始态，approved / rejected 都是终态。
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Request 是对某个分区库存项的认领请求聚合。
// 由提交服务创建，只会被协调器变更一次状态，之后永不删除，
// 终态记录作为历史保留。Version 用于乐观并发检测。
type Request struct {
	ID                string
	ItemID            string
	Owner             PartitionKey
	RequesterID       string
	RequesterRole     OwnerType
	RequestedQuantity int64
	Status            RequestStatus
	Version           int64
	CreatedAt         time.Time
	ProcessedAt       time.Time
}

// NewRequest 是请求聚合的工厂函数，校验后以 pending 状态返回。
func NewRequest(id, itemID string, owner PartitionKey, requesterID string, requesterRole OwnerType, quantity int64) (*Request, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if id == "" || itemID == "" {
		return nil, fmt.Errorf("%w: request id and item id are required", ErrValidation)
	}
	if requesterID == "" {
		return nil, fmt.Errorf("%w: requester id is empty", ErrValidation)
	}
	if _, err := ParseOwnerType(string(requesterRole)); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: requested quantity must be positive, got %d", ErrValidation, quantity)
	}
	return &Request{
		ID:                id,
		ItemID:            itemID,
		Owner:             owner,
		RequesterID:       requesterID,
		RequesterRole:     requesterRole,
		RequestedQuantity: quantity,
		Status:            StatusPending,
		CreatedAt:         time.Now(),
	}, nil
}

// IsPending 判断请求是否仍可被决策。
func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}

// Approve 将请求从 pending 流转到 approved。
// 对终态请求调用返回 ErrAlreadyProcessed，且不做任何修改。
func (r *Request) Approve(now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: request %s is %s", ErrAlreadyProcessed, r.ID, r.Status)
	}
	if r.RequestedQuantity <= 0 {
		return fmt.Errorf("%w: requested quantity must be positive, got %d", ErrValidation, r.RequestedQuantity)
	}
	r.Status = StatusApproved
	r.ProcessedAt = now
	return nil
}

// Reject 将请求从 pending 流转到 rejected。
// 对终态请求调用返回 ErrAlreadyProcessed，且不做任何修改。
func (r *Request) Reject(now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: request %s is %s", ErrAlreadyProcessed, r.ID, r.Status)
	}
	r.Status = StatusRejected
	r.ProcessedAt = now
	return nil
}
