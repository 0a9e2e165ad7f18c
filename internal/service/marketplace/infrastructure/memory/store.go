package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"agrilink/internal/service/marketplace/domain"
)

// Store 是 domain.Store 的进程内参考实现：互斥量保护的 map 加
// 逐记录版本号。它实现了与 MySQL 实现相同的快照读、条件提交语义，
// 测试套件和 demo 模式都跑在它上面。
type Store struct {
	mu        sync.Mutex
	items     map[string]*domain.InventoryItem
	requests  map[string]*domain.Request
	decisions map[string]*domain.DecisionRecord

	// publisher 在提交成功后接收派生出的变更事件，可以为 nil。
	publisher domain.ChangePublisher
}

// NewStore 创建一个空的内存存储。
func NewStore(publisher domain.ChangePublisher) *Store {
	return &Store{
		items:     make(map[string]*domain.InventoryItem),
		requests:  make(map[string]*domain.Request),
		decisions: make(map[string]*domain.DecisionRecord),
		publisher: publisher,
	}
}

var _ domain.Store = (*Store)(nil)

func recordKey(owner domain.PartitionKey, id string) string {
	return owner.String() + "/" + id
}

// GetItem 返回目录条目的快照副本。
func (s *Store) GetItem(ctx context.Context, owner domain.PartitionKey, itemID string) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[recordKey(owner, itemID)]
	if !ok {
		return nil, fmt.Errorf("%w: item %s in %s", domain.ErrNotFound, itemID, owner)
	}
	cp := *item
	return &cp, nil
}

// ListItems 返回分区的目录快照，按 ID 排序。
func (s *Store) ListItems(ctx context.Context, owner domain.PartitionKey) ([]*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.InventoryItem
	for _, item := range s.items {
		if item.Owner == owner {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutItem 写入或覆盖目录条目（货主维护目录用）。
func (s *Store) PutItem(ctx context.Context, item *domain.InventoryItem) error {
	if err := item.Owner.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	cp := *item
	cp.Version++
	cp.LastUpdated = time.Now()
	s.items[recordKey(item.Owner, item.ID)] = &cp
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{
		Owner:  item.Owner,
		Kind:   domain.ChangeInventoryUpdated,
		ItemID: item.ID,
		At:     cp.LastUpdated,
	})
	return nil
}

// CreateRequest 持久化一条新的 pending 请求并广播 request_submitted。
func (s *Store) CreateRequest(ctx context.Context, req *domain.Request) error {
	s.mu.Lock()
	key := recordKey(req.Owner, req.ID)
	if _, exists := s.requests[key]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: request %s already exists", domain.ErrValidation, req.ID)
	}
	cp := *req
	cp.Version = 1
	s.requests[key] = &cp
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{
		Owner:     req.Owner,
		Kind:      domain.ChangeRequestSubmitted,
		RequestID: req.ID,
		ItemID:    req.ItemID,
		At:        req.CreatedAt,
	})
	return nil
}

// GetRequest 返回请求的快照副本。
func (s *Store) GetRequest(ctx context.Context, owner domain.PartitionKey, requestID string) (*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[recordKey(owner, requestID)]
	if !ok {
		return nil, fmt.Errorf("%w: request %s in %s", domain.ErrNotFound, requestID, owner)
	}
	cp := *req
	return &cp, nil
}

// ListRequests 返回按 CreatedAt 排序的请求投影。
func (s *Store) ListRequests(ctx context.Context, owner domain.PartitionKey, status domain.RequestStatus) ([]*domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Request
	for _, req := range s.requests {
		if req.Owner != owner {
			continue
		}
		if status != "" && req.Status != status {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetDecision 读取账本记录。
func (s *Store) GetDecision(ctx context.Context, owner domain.PartitionKey, requestID string) (*domain.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.decisions[recordKey(owner, requestID)]
	if !ok {
		return nil, fmt.Errorf("%w: decision for request %s", domain.ErrNotFound, requestID)
	}
	cp := *rec
	return &cp, nil
}

// ListDecisions 返回分区的账本记录，按 ProcessedAt 排序。
func (s *Store) ListDecisions(ctx context.Context, owner domain.PartitionKey) ([]*domain.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.DecisionRecord
	for _, rec := range s.decisions {
		if rec.Owner == owner {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProcessedAt.Equal(out[j].ProcessedAt) {
			return out[i].RequestID < out[j].RequestID
		}
		return out[i].ProcessedAt.Before(out[j].ProcessedAt)
	})
	return out, nil
}

// tx 在持锁期间分阶段收集写入：每个写原语先做版本条件校验，
// 全部通过后一次性落盘。任何一步失败都不会留下部分写入。
type tx struct {
	store   *Store
	staged  []func()
	pending []domain.ChangeEvent
}

var _ domain.Tx = (*tx)(nil)

// UpdateRequestStatus 以版本条件写入请求的新状态。
func (t *tx) UpdateRequestStatus(req *domain.Request) error {
	key := recordKey(req.Owner, req.ID)
	stored, ok := t.store.requests[key]
	if !ok {
		return fmt.Errorf("%w: request %s", domain.ErrNotFound, req.ID)
	}
	if stored.Version != req.Version {
		// 快照过期：并发裁决已经落地
		return fmt.Errorf("%w: request %s version moved %d -> %d",
			domain.ErrContention, req.ID, req.Version, stored.Version)
	}

	cp := *req
	cp.Version = stored.Version + 1
	kind := domain.ChangeRequestRejected
	if cp.Status == domain.StatusApproved {
		kind = domain.ChangeRequestApproved
	}
	t.staged = append(t.staged, func() { t.store.requests[key] = &cp })
	t.pending = append(t.pending, domain.ChangeEvent{
		Owner:     req.Owner,
		Kind:      kind,
		RequestID: req.ID,
		ItemID:    req.ItemID,
		At:        cp.ProcessedAt,
	})
	return nil
}

// DecrementQuantity 以版本条件扣减库存，结果不允许为负。
func (t *tx) DecrementQuantity(item *domain.InventoryItem, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: decrement amount must be positive, got %d", domain.ErrValidation, amount)
	}
	key := recordKey(item.Owner, item.ID)
	stored, ok := t.store.items[key]
	if !ok {
		return fmt.Errorf("%w: item %s", domain.ErrNotFound, item.ID)
	}
	if stored.Version != item.Version {
		return fmt.Errorf("%w: item %s version moved %d -> %d",
			domain.ErrContention, item.ID, item.Version, stored.Version)
	}
	if stored.QuantityAvailable < amount {
		return fmt.Errorf("%w: item %s has %d, requested %d",
			domain.ErrInsufficientStock, item.ID, stored.QuantityAvailable, amount)
	}

	cp := *stored
	cp.QuantityAvailable -= amount
	cp.Version++
	cp.LastUpdated = time.Now()
	t.staged = append(t.staged, func() { t.store.items[key] = &cp })
	t.pending = append(t.pending, domain.ChangeEvent{
		Owner:  item.Owner,
		Kind:   domain.ChangeInventoryUpdated,
		ItemID: item.ID,
		At:     cp.LastUpdated,
	})
	return nil
}

// AppendDecision 追加账本记录，重复追加返回 ErrDuplicateDecision。
func (t *tx) AppendDecision(rec *domain.DecisionRecord) error {
	key := recordKey(rec.Owner, rec.RequestID)
	if _, exists := t.store.decisions[key]; exists {
		return fmt.Errorf("%w: request %s", domain.ErrDuplicateDecision, rec.RequestID)
	}
	cp := *rec
	t.staged = append(t.staged, func() { t.store.decisions[key] = &cp })
	return nil
}

// RunInTx 在一把锁内执行 fn 收集到的全部写入。
// fn 返回错误时不落盘任何东西；成功后先落盘再广播事件。
func (s *Store) RunInTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	t := &tx{store: s}
	if err := fn(t); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, apply := range t.staged {
		apply()
	}
	s.mu.Unlock()

	for _, ev := range t.pending {
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
