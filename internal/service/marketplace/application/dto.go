// internal/service/marketplace/application/dto.go
package application

import (
	"time"

	"agrilink/internal/service/marketplace/domain"
)

// SubmitRequestCommand 是提交认领请求用例的输入数据。
// OwnerType/OwnerID 指向被认领库存所在的分区，
// RequesterRole/RequesterID 标识发起方。
type SubmitRequestCommand struct {
	OwnerType     string
	OwnerID       string
	ItemID        string
	RequesterRole string
	RequesterID   string
	Quantity      int64
}

// SubmitRequestResult 是提交用例的输出数据。
type SubmitRequestResult struct {
	RequestID string               `json:"requestId"`
	Status    domain.RequestStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
}

// DecisionCommand 是接受/拒绝用例的输入数据。
type DecisionCommand struct {
	OwnerType string
	OwnerID   string
	RequestID string
}

// DecisionResult 是接受/拒绝用例的输出数据。
// QuantityRemaining 只在 approved 时有意义，表示扣减后的可用库存。
type DecisionResult struct {
	RequestID         string                 `json:"requestId"`
	Outcome           domain.DecisionOutcome `json:"outcome"`
	QuantityRemaining int64                  `json:"quantityRemaining"`
	ProcessedAt       time.Time              `json:"processedAt"`
}

func (c DecisionCommand) partition() (domain.PartitionKey, error) {
	ownerType, err := domain.ParseOwnerType(c.OwnerType)
	if err != nil {
		return domain.PartitionKey{}, err
	}
	key := domain.PartitionKey{OwnerType: ownerType, OwnerID: c.OwnerID}
	return key, key.Validate()
}
