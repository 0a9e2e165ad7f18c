// internal/service/marketplace/infrastructure/gormstore/repository.go
package gormstore

import (
	"context"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"agrilink/internal/service/marketplace/domain"
)

// mysqlDuplicateEntry 是 MySQL 唯一键冲突的错误码。
const mysqlDuplicateEntry = 1062

// Store 是 domain.Store 的 GORM/MySQL 实现。
// 乐观并发靠版本条件 UPDATE：零行命中即快照过期，整个数据库
// 事务回滚，对外表现为 ErrContention，不存在部分写入。
type Store struct {
	db        *gorm.DB
	publisher domain.ChangePublisher
}

// NewStore 创建一个 GORM 仓储实例。publisher 可以为 nil。
func NewStore(db *gorm.DB, publisher domain.ChangePublisher) *Store {
	return &Store{db: db, publisher: publisher}
}

var _ domain.Store = (*Store)(nil)

// GetItem 按分区键读取一条目录条目。
func (s *Store) GetItem(ctx context.Context, owner domain.PartitionKey, itemID string) (*domain.InventoryItem, error) {
	var m InventoryItemModel
	err := s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND item_id = ?", owner.OwnerType, owner.OwnerID, itemID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrNotFound, "item %s in %s", itemID, owner)
		}
		return nil, errors.Wrap(err, "failed to load inventory item")
	}
	return ToDomainItem(&m)
}

// ListItems 返回分区的目录，按 item_id 排序。
func (s *Store) ListItems(ctx context.Context, owner domain.PartitionKey) ([]*domain.InventoryItem, error) {
	var models []InventoryItemModel
	err := s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", owner.OwnerType, owner.OwnerID).
		Order("item_id asc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list inventory items")
	}
	out := make([]*domain.InventoryItem, 0, len(models))
	for i := range models {
		item, err := ToDomainItem(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// PutItem 写入或覆盖目录条目（货主维护目录用）。
func (s *Store) PutItem(ctx context.Context, item *domain.InventoryItem) error {
	if err := item.Owner.Validate(); err != nil {
		return err
	}
	kind, details, err := marshalDetails(item.Details)
	if err != nil {
		return err
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		var existing InventoryItemModel
		err := dbtx.Where("owner_type = ? AND owner_id = ? AND item_id = ?",
			item.Owner.OwnerType, item.Owner.OwnerID, item.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dbtx.Create(&InventoryItemModel{
				OwnerType:         string(item.Owner.OwnerType),
				OwnerID:           item.Owner.OwnerID,
				ItemID:            item.ID,
				QuantityAvailable: item.QuantityAvailable,
				DetailsKind:       kind,
				Details:           details,
				Version:           1,
				LastUpdated:       now,
			}).Error
		case err != nil:
			return err
		default:
			return dbtx.Model(&existing).Updates(map[string]interface{}{
				"quantity_available": item.QuantityAvailable,
				"details_kind":       kind,
				"details":            details,
				"version":            gorm.Expr("version + 1"),
				"last_updated":       now,
			}).Error
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to put inventory item")
	}

	s.publish(domain.ChangeEvent{
		Owner:  item.Owner,
		Kind:   domain.ChangeInventoryUpdated,
		ItemID: item.ID,
		At:     now,
	})
	return nil
}

// CreateRequest 持久化一条新的 pending 请求。
func (s *Store) CreateRequest(ctx context.Context, req *domain.Request) error {
	m := ToRequestModel(req)
	m.Version = 1
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicateEntry(err) {
			return errors.Wrapf(domain.ErrValidation, "request %s already exists", req.ID)
		}
		return errors.Wrap(err, "failed to create claim request")
	}

	s.publish(domain.ChangeEvent{
		Owner:     req.Owner,
		Kind:      domain.ChangeRequestSubmitted,
		RequestID: req.ID,
		ItemID:    req.ItemID,
		At:        req.CreatedAt,
	})
	return nil
}

// GetRequest 按分区键读取请求。
func (s *Store) GetRequest(ctx context.Context, owner domain.PartitionKey, requestID string) (*domain.Request, error) {
	var m ClaimRequestModel
	err := s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND request_id = ?", owner.OwnerType, owner.OwnerID, requestID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrNotFound, "request %s in %s", requestID, owner)
		}
		return nil, errors.Wrap(err, "failed to load claim request")
	}
	return ToDomainRequest(&m), nil
}

// ListRequests 返回按提交时间排序的请求投影。
func (s *Store) ListRequests(ctx context.Context, owner domain.PartitionKey, status domain.RequestStatus) ([]*domain.Request, error) {
	query := s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", owner.OwnerType, owner.OwnerID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var models []ClaimRequestModel
	if err := query.Order("submitted_at asc, request_id asc").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list claim requests")
	}
	out := make([]*domain.Request, 0, len(models))
	for i := range models {
		out = append(out, ToDomainRequest(&models[i]))
	}
	return out, nil
}

// GetDecision 读取请求对应的账本记录。
func (s *Store) GetDecision(ctx context.Context, owner domain.PartitionKey, requestID string) (*domain.DecisionRecord, error) {
	var m DecisionRecordModel
	err := s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND request_id = ?", owner.OwnerType, owner.OwnerID, requestID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrNotFound, "decision for request %s", requestID)
		}
		return nil, errors.Wrap(err, "failed to load decision record")
	}
	return ToDomainDecision(&m), nil
}

// ListDecisions 返回分区的账本记录。
func (s *Store) ListDecisions(ctx context.Context, owner domain.PartitionKey) ([]*domain.DecisionRecord, error) {
	var models []DecisionRecordModel
	err := s.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", owner.OwnerType, owner.OwnerID).
		Order("processed_at asc, request_id asc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list decision records")
	}
	out := make([]*domain.DecisionRecord, 0, len(models))
	for i := range models {
		out = append(out, ToDomainDecision(&models[i]))
	}
	return out, nil
}

// tx 把写原语映射为版本条件 UPDATE / 唯一键 INSERT。
// 任何一步失败都让外层 gorm 事务回滚。
type tx struct {
	db      *gorm.DB
	pending []domain.ChangeEvent
}

var _ domain.Tx = (*tx)(nil)

// UpdateRequestStatus 以版本条件写入请求的新状态。
func (t *tx) UpdateRequestStatus(req *domain.Request) error {
	updates := map[string]interface{}{
		"status":  string(req.Status),
		"version": gorm.Expr("version + 1"),
	}
	if !req.ProcessedAt.IsZero() {
		updates["processed_at"] = req.ProcessedAt
	}

	res := t.db.Model(&ClaimRequestModel{}).
		Where("owner_type = ? AND owner_id = ? AND request_id = ? AND version = ?",
			req.Owner.OwnerType, req.Owner.OwnerID, req.ID, req.Version).
		Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update claim request")
	}
	if res.RowsAffected == 0 {
		// 快照过期：并发裁决已经落地
		return errors.Wrapf(domain.ErrContention, "request %s version %d is stale", req.ID, req.Version)
	}

	kind := domain.ChangeRequestRejected
	if req.Status == domain.StatusApproved {
		kind = domain.ChangeRequestApproved
	}
	t.pending = append(t.pending, domain.ChangeEvent{
		Owner:     req.Owner,
		Kind:      kind,
		RequestID: req.ID,
		ItemID:    req.ItemID,
		At:        req.ProcessedAt,
	})
	return nil
}

// DecrementQuantity 以版本条件扣减库存。
// WHERE 同时带上余量条件，数据库层面保证数量永不为负。
func (t *tx) DecrementQuantity(item *domain.InventoryItem, amount int64) error {
	if amount <= 0 {
		return errors.Wrapf(domain.ErrValidation, "decrement amount must be positive, got %d", amount)
	}

	now := time.Now()
	res := t.db.Model(&InventoryItemModel{}).
		Where("owner_type = ? AND owner_id = ? AND item_id = ? AND version = ? AND quantity_available >= ?",
			item.Owner.OwnerType, item.Owner.OwnerID, item.ID, item.Version, amount).
		Updates(map[string]interface{}{
			"quantity_available": gorm.Expr("quantity_available - ?", amount),
			"version":            gorm.Expr("version + 1"),
			"last_updated":       now,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to decrement inventory")
	}
	if res.RowsAffected == 0 {
		// 区分快照过期和真正的库存不足
		var current InventoryItemModel
		err := t.db.Where("owner_type = ? AND owner_id = ? AND item_id = ?",
			item.Owner.OwnerType, item.Owner.OwnerID, item.ID).First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return errors.Wrapf(domain.ErrNotFound, "item %s", item.ID)
		case err != nil:
			return errors.Wrap(err, "failed to re-read inventory item")
		case current.Version != item.Version:
			return errors.Wrapf(domain.ErrContention, "item %s version moved %d -> %d",
				item.ID, item.Version, current.Version)
		default:
			return errors.Wrapf(domain.ErrInsufficientStock, "item %s has %d, requested %d",
				item.ID, current.QuantityAvailable, amount)
		}
	}

	t.pending = append(t.pending, domain.ChangeEvent{
		Owner:  item.Owner,
		Kind:   domain.ChangeInventoryUpdated,
		ItemID: item.ID,
		At:     now,
	})
	return nil
}

// AppendDecision 追加账本记录，唯一键冲突映射为 ErrDuplicateDecision。
func (t *tx) AppendDecision(rec *domain.DecisionRecord) error {
	m := &DecisionRecordModel{
		OwnerType:        string(rec.Owner.OwnerType),
		OwnerID:          rec.Owner.OwnerID,
		RequestID:        rec.RequestID,
		Outcome:          string(rec.Outcome),
		QuantitySnapshot: rec.QuantitySnapshot,
		ProcessedAt:      rec.ProcessedAt,
	}
	if err := t.db.Create(m).Error; err != nil {
		if isDuplicateEntry(err) {
			return errors.Wrapf(domain.ErrDuplicateDecision, "request %s", rec.RequestID)
		}
		return errors.Wrap(err, "failed to append decision record")
	}
	return nil
}

// RunInTx 在一个数据库事务内执行 fn 收集的全部写入。
// fn 返回错误或任一版本条件不满足时整体回滚；
// 提交成功后才广播变更事件。
func (s *Store) RunInTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	var pending []domain.ChangeEvent
	err := s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		t := &tx{db: dbtx}
		if err := fn(t); err != nil {
			return err
		}
		pending = t.pending
		return nil
	})
	if err != nil {
		return err
	}

	for _, ev := range pending {
		s.publish(ev)
	}
	return nil
}

func (s *Store) publish(ev domain.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	// 发布失败不影响已提交的事务
	_ = s.publisher.Publish(ev)
}

// isDuplicateEntry 判断是否是 MySQL 唯一键冲突。
func isDuplicateEntry(err error) bool {
	var mysqlErr *driver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
