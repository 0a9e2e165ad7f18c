// internal/service/marketplace/application/coordinator.go
package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agrilink/internal/pkg/logger"
	"agrilink/internal/service/marketplace/domain"
)

// ReservationCoordinator 是唯一有权裁决 pending 请求的组件。
// 四个分区共享这一份实现，只以 (ownerType, ownerID) 为参数。
//
// 裁决采用快照读-条件提交：先读请求和库存的当前版本，算出决策，
// 再把请求状态变更、库存扣减、账本追加放进一次原子提交，
// 提交以读取时的版本为条件。提交前有并发裁决落地时整体放弃，
// 返回 ErrContention，不产生任何部分写入；协调器自身从不重试。
type ReservationCoordinator struct {
	store  domain.Store
	tracer trace.Tracer
}

// NewReservationCoordinator 创建协调器实例。
func NewReservationCoordinator(store domain.Store) *ReservationCoordinator {
	return &ReservationCoordinator{
		store:  store,
		tracer: otel.Tracer("marketplace-service"),
	}
}

// AcceptRequest 接受一条 pending 请求并扣减对应库存。
func (c *ReservationCoordinator) AcceptRequest(ctx context.Context, cmd *DecisionCommand) (*DecisionResult, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.AcceptRequest")
	defer span.End()
	timer := time.Now()
	defer func() { decisionDuration.WithLabelValues("accept").Observe(time.Since(timer).Seconds()) }()

	owner, err := cmd.partition()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("owner.partition", owner.String()),
		attribute.String("request.id", cmd.RequestID),
	)

	// 1. 读取请求快照，校验前置条件
	req, err := c.store.GetRequest(ctx, owner, cmd.RequestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !req.IsPending() {
		err := domain.ErrAlreadyProcessed
		span.AddEvent("request already terminal, strict no-op")
		return nil, err
	}

	// 2. 在决策时点重读权威库存，而不是沿用请求创建时的数字
	item, err := c.store.GetItem(ctx, owner, req.ItemID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !item.CanSatisfy(req.RequestedQuantity) {
		insufficientStockTotal.WithLabelValues(string(owner.OwnerType)).Inc()
		span.AddEvent("insufficient stock at decision time")
		logger.Ctx(ctx).Warn().
			Str("request_id", req.ID).
			Str("item_id", item.ID).
			Int64("available", item.QuantityAvailable).
			Int64("requested", req.RequestedQuantity).
			Msg("accept refused: insufficient stock")
		return nil, domain.ErrInsufficientStock
	}

	// 3. 在本地快照上完成状态流转，准备账本记录
	now := time.Now()
	if err := req.Approve(now); err != nil {
		return nil, err
	}
	record := domain.NewDecisionRecord(req, item.QuantityAvailable)

	// 4. 三处写入一次原子提交：请求状态、库存扣减、账本追加。
	//    任一版本条件不满足则整体回滚。
	err = c.store.RunInTx(ctx, func(tx domain.Tx) error {
		if err := tx.UpdateRequestStatus(req); err != nil {
			return err
		}
		if err := tx.DecrementQuantity(item, req.RequestedQuantity); err != nil {
			return err
		}
		return tx.AppendDecision(record)
	})
	if err != nil {
		return nil, c.commitFailed(ctx, span, owner, req.ID, "accept", err)
	}

	decisionsTotal.WithLabelValues(string(owner.OwnerType), string(domain.OutcomeApproved)).Inc()
	span.AddEvent("request approved and stock reserved")
	logger.Ctx(ctx).Info().
		Str("request_id", req.ID).
		Str("item_id", item.ID).
		Int64("quantity", req.RequestedQuantity).
		Int64("remaining", item.QuantityAvailable-req.RequestedQuantity).
		Msg("request approved")

	return &DecisionResult{
		RequestID:         req.ID,
		Outcome:           domain.OutcomeApproved,
		QuantityRemaining: item.QuantityAvailable - req.RequestedQuantity,
		ProcessedAt:       now,
	}, nil
}

// RejectRequest 拒绝一条 pending 请求，库存不动。
// 提交只以请求自身的版本为条件，仅当请求被并发裁决时才会冲突。
func (c *ReservationCoordinator) RejectRequest(ctx context.Context, cmd *DecisionCommand) (*DecisionResult, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.RejectRequest")
	defer span.End()
	timer := time.Now()
	defer func() { decisionDuration.WithLabelValues("reject").Observe(time.Since(timer).Seconds()) }()

	owner, err := cmd.partition()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("owner.partition", owner.String()),
		attribute.String("request.id", cmd.RequestID),
	)

	req, err := c.store.GetRequest(ctx, owner, cmd.RequestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !req.IsPending() {
		span.AddEvent("request already terminal, strict no-op")
		return nil, domain.ErrAlreadyProcessed
	}

	// 账本快照记录裁决时点的可用库存；目录条目可能已被货主下架
	var snapshot int64
	if item, err := c.store.GetItem(ctx, owner, req.ItemID); err == nil {
		snapshot = item.QuantityAvailable
	} else if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return nil, err
	}

	now := time.Now()
	if err := req.Reject(now); err != nil {
		return nil, err
	}
	record := domain.NewDecisionRecord(req, snapshot)

	err = c.store.RunInTx(ctx, func(tx domain.Tx) error {
		if err := tx.UpdateRequestStatus(req); err != nil {
			return err
		}
		return tx.AppendDecision(record)
	})
	if err != nil {
		return nil, c.commitFailed(ctx, span, owner, req.ID, "reject", err)
	}

	decisionsTotal.WithLabelValues(string(owner.OwnerType), string(domain.OutcomeRejected)).Inc()
	logger.Ctx(ctx).Info().
		Str("request_id", req.ID).
		Msg("request rejected")

	return &DecisionResult{
		RequestID:   req.ID,
		Outcome:     domain.OutcomeRejected,
		ProcessedAt: now,
	}, nil
}

// commitFailed 统一处理提交失败的指标、日志和 span 状态。
func (c *ReservationCoordinator) commitFailed(ctx context.Context, span trace.Span, owner domain.PartitionKey, requestID, op string, err error) error {
	span.RecordError(err)
	switch {
	case errors.Is(err, domain.ErrContention):
		contentionTotal.WithLabelValues(string(owner.OwnerType)).Inc()
		span.SetStatus(codes.Error, "optimistic commit conflict")
		logger.Ctx(ctx).Warn().
			Str("request_id", requestID).
			Str("operation", op).
			Msg("decision commit lost the race, caller may retry with a fresh read")
	case errors.Is(err, domain.ErrInsufficientStock):
		insufficientStockTotal.WithLabelValues(string(owner.OwnerType)).Inc()
	default:
		span.SetStatus(codes.Error, "decision commit failed")
		logger.Ctx(ctx).Error().
			Err(err).
			Str("request_id", requestID).
			Str("operation", op).
			Msg("decision commit failed")
	}
	return err
}
