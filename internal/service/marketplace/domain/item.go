package domain

import (
	"fmt"
	"time"
)

// DetailsKind 是目录条目描述信息的判别标签。
type DetailsKind string

const (
	DetailsProduce DetailsKind = "produce"
	DetailsStorage DetailsKind = "storage"
	DetailsFleet   DetailsKind = "fleet"
	DetailsRetail  DetailsKind = "retail"
)

// ItemDetails 统一了四个分区各自的目录字段
// （原实现里 productName / storageName / fleetName 在视图层各写一套）。
// 决策逻辑只依赖 DisplayName 和数量字段，展示层按 Kind 取具体变体。
type ItemDetails interface {
	Kind() DetailsKind
	DisplayName() string
}

// ProduceDetails 是生产方目录条目的描述字段。
type ProduceDetails struct {
	ProductName  string  `json:"productName"`
	PricePerUnit float64 `json:"pricePerUnit"`
}

func (d ProduceDetails) Kind() DetailsKind   { return DetailsProduce }
func (d ProduceDetails) DisplayName() string { return d.ProductName }

// StorageDetails 是仓储方目录条目的描述字段。
type StorageDetails struct {
	StorageName   string  `json:"storageName"`
	Location      string  `json:"location"`
	PricePerMonth float64 `json:"pricePerMonth"`
}

func (d StorageDetails) Kind() DetailsKind   { return DetailsStorage }
func (d StorageDetails) DisplayName() string { return d.StorageName }

// FleetDetails 是运输方目录条目的描述字段。
type FleetDetails struct {
	FleetName   string  `json:"fleetName"`
	VehicleType string  `json:"vehicleType"`
	PricePerDay float64 `json:"pricePerDay"`
}

func (d FleetDetails) Kind() DetailsKind   { return DetailsFleet }
func (d FleetDetails) DisplayName() string { return d.FleetName }

// RetailDetails 是零售方目录条目的描述字段。
type RetailDetails struct {
	ProductName  string  `json:"productName"`
	PricePerUnit float64 `json:"pricePerUnit"`
}

func (d RetailDetails) Kind() DetailsKind   { return DetailsRetail }
func (d RetailDetails) DisplayName() string { return d.ProductName }

// DetailsForOwner 返回分区类型对应的目录变体标签。
func DetailsForOwner(t OwnerType) DetailsKind {
	switch t {
	case OwnerProducer:
		return DetailsProduce
	case OwnerWarehouse:
		return DetailsStorage
	case OwnerCarrier:
		return DetailsFleet
	default:
		return DetailsRetail
	}
}

// InventoryItem 是一条有限库存的目录条目，归属于唯一的货主分区。
// QuantityAvailable 只能通过协调器事务内的 DecrementQuantity 减少，
// Version 在每次提交成功后递增，用于乐观并发冲突检测。
type InventoryItem struct {
	ID                string
	Owner             PartitionKey
	QuantityAvailable int64
	Details           ItemDetails
	Version           int64
	LastUpdated       time.Time
}

// NewInventoryItem 创建一条目录条目。初始库存不允许为负。
func NewInventoryItem(id string, owner PartitionKey, quantity int64, details ItemDetails) (*InventoryItem, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: item id is empty", ErrValidation)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative, got %d", ErrValidation, quantity)
	}
	if details != nil && details.Kind() != DetailsForOwner(owner.OwnerType) {
		return nil, fmt.Errorf("%w: %s catalog cannot hold %s details",
			ErrValidation, owner.OwnerType, details.Kind())
	}
	return &InventoryItem{
		ID:                id,
		Owner:             owner,
		QuantityAvailable: quantity,
		Details:           details,
		LastUpdated:       time.Now(),
	}, nil
}

// CanSatisfy 判断当前快照下的库存能否覆盖请求数量。
// 这只是快照判断，最终以提交时的条件检查为准。
func (i *InventoryItem) CanSatisfy(quantity int64) bool {
	return quantity > 0 && i.QuantityAvailable >= quantity
}
