// internal/service/marketplace/infrastructure/gormstore/mapper.go
package gormstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"agrilink/internal/service/marketplace/domain"
)

// marshalDetails 把目录描述变体序列化为 (kind, json) 两列。
func marshalDetails(details domain.ItemDetails) (string, string, error) {
	if details == nil {
		return "", "", nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal item details: %w", err)
	}
	return string(details.Kind()), string(data), nil
}

// unmarshalDetails 按判别标签还原目录描述变体。
func unmarshalDetails(kind, data string) (domain.ItemDetails, error) {
	if kind == "" {
		return nil, nil
	}
	var (
		details domain.ItemDetails
		err     error
	)
	switch domain.DetailsKind(kind) {
	case domain.DetailsProduce:
		var d domain.ProduceDetails
		err = json.Unmarshal([]byte(data), &d)
		details = d
	case domain.DetailsStorage:
		var d domain.StorageDetails
		err = json.Unmarshal([]byte(data), &d)
		details = d
	case domain.DetailsFleet:
		var d domain.FleetDetails
		err = json.Unmarshal([]byte(data), &d)
		details = d
	case domain.DetailsRetail:
		var d domain.RetailDetails
		err = json.Unmarshal([]byte(data), &d)
		details = d
	default:
		return nil, fmt.Errorf("unknown details kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s details: %w", kind, err)
	}
	return details, nil
}

// ToDomainItem 把数据库模型转换为领域模型。
func ToDomainItem(m *InventoryItemModel) (*domain.InventoryItem, error) {
	details, err := unmarshalDetails(m.DetailsKind, m.Details)
	if err != nil {
		return nil, err
	}
	return &domain.InventoryItem{
		ID: m.ItemID,
		Owner: domain.PartitionKey{
			OwnerType: domain.OwnerType(m.OwnerType),
			OwnerID:   m.OwnerID,
		},
		QuantityAvailable: m.QuantityAvailable,
		Details:           details,
		Version:           m.Version,
		LastUpdated:       m.LastUpdated,
	}, nil
}

// ToDomainRequest 把数据库模型转换为领域模型。
func ToDomainRequest(m *ClaimRequestModel) *domain.Request {
	req := &domain.Request{
		ID:     m.RequestID,
		ItemID: m.ItemID,
		Owner: domain.PartitionKey{
			OwnerType: domain.OwnerType(m.OwnerType),
			OwnerID:   m.OwnerID,
		},
		RequesterID:       m.RequesterID,
		RequesterRole:     domain.OwnerType(m.RequesterRole),
		RequestedQuantity: m.RequestedQuantity,
		Status:            domain.RequestStatus(m.Status),
		Version:           m.Version,
		CreatedAt:         m.SubmittedAt,
	}
	if m.ProcessedAt.Valid {
		req.ProcessedAt = m.ProcessedAt.Time
	}
	return req
}

// ToRequestModel 把领域模型转换为数据库模型（创建用）。
func ToRequestModel(req *domain.Request) *ClaimRequestModel {
	m := &ClaimRequestModel{
		OwnerType:         string(req.Owner.OwnerType),
		OwnerID:           req.Owner.OwnerID,
		RequestID:         req.ID,
		ItemID:            req.ItemID,
		RequesterID:       req.RequesterID,
		RequesterRole:     string(req.RequesterRole),
		RequestedQuantity: req.RequestedQuantity,
		Status:            string(req.Status),
		Version:           req.Version,
		SubmittedAt:       req.CreatedAt,
	}
	if !req.ProcessedAt.IsZero() {
		m.ProcessedAt = sql.NullTime{Time: req.ProcessedAt, Valid: true}
	}
	return m
}

// ToDomainDecision 把数据库模型转换为领域模型。
func ToDomainDecision(m *DecisionRecordModel) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		RequestID: m.RequestID,
		Owner: domain.PartitionKey{
			OwnerType: domain.OwnerType(m.OwnerType),
			OwnerID:   m.OwnerID,
		},
		Outcome:          domain.DecisionOutcome(m.Outcome),
		QuantitySnapshot: m.QuantitySnapshot,
		ProcessedAt:      m.ProcessedAt,
	}
}
