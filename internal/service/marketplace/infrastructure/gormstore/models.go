// internal/service/marketplace/infrastructure/gormstore/models.go
package gormstore

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// InventoryItemModel 对应数据库中的 inventory_item 表。
// Version 列承担乐观并发控制：所有扣减都以
// "WHERE version = ?" 为条件，提交时版本已移动则零行命中。
type InventoryItemModel struct {
	gorm.Model
	OwnerType         string `gorm:"size:16;uniqueIndex:uk_item,priority:1"`
	OwnerID           string `gorm:"size:64;uniqueIndex:uk_item,priority:2"`
	ItemID            string `gorm:"size:64;uniqueIndex:uk_item,priority:3"`
	QuantityAvailable int64
	DetailsKind       string `gorm:"size:16"`
	Details           string `gorm:"type:text"`
	Version           int64
	LastUpdated       time.Time
}

// TableName 指定 GORM 应该使用的表名。
func (InventoryItemModel) TableName() string {
	return "inventory_item"
}

// ClaimRequestModel 对应数据库中的 claim_request 表。
// 终态记录永不删除，作为分区的请求历史。
type ClaimRequestModel struct {
	gorm.Model
	OwnerType         string `gorm:"size:16;uniqueIndex:uk_request,priority:1;index:idx_request_status,priority:1"`
	OwnerID           string `gorm:"size:64;uniqueIndex:uk_request,priority:2;index:idx_request_status,priority:2"`
	RequestID         string `gorm:"size:64;uniqueIndex:uk_request,priority:3"`
	ItemID            string `gorm:"size:64"`
	RequesterID       string `gorm:"size:64"`
	RequesterRole     string `gorm:"size:16"`
	RequestedQuantity int64
	Status            string `gorm:"size:16;index:idx_request_status,priority:3"`
	Version           int64
	SubmittedAt       time.Time
	ProcessedAt       sql.NullTime
}

// TableName 指定 GORM 应该使用的表名。
func (ClaimRequestModel) TableName() string {
	return "claim_request"
}

// DecisionRecordModel 对应数据库中的 decision_record 表。
// request 维度的唯一键从存储层面保证每个请求至多一条账本记录，
// 非原子重试的写入方撞上唯一键即失败。
type DecisionRecordModel struct {
	gorm.Model
	OwnerType        string `gorm:"size:16;uniqueIndex:uk_decision,priority:1"`
	OwnerID          string `gorm:"size:64;uniqueIndex:uk_decision,priority:2"`
	RequestID        string `gorm:"size:64;uniqueIndex:uk_decision,priority:3"`
	Outcome          string `gorm:"size:16"`
	QuantitySnapshot int64
	ProcessedAt      time.Time
}

// TableName 指定 GORM 应该使用的表名。
func (DecisionRecordModel) TableName() string {
	return "decision_record"
}

// AutoMigrate 建表和索引。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&InventoryItemModel{},
		&ClaimRequestModel{},
		&DecisionRecordModel{},
	)
}
