// internal/service/marketplace/application/submission.go
package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"agrilink/internal/pkg/logger"
	"agrilink/internal/service/marketplace/domain"
)

// RequestScreener 是提交筛查策略的出站端口。
// 由货主配置，判断一条新请求是否允许进入队列；
// 具体实现见 application/policy 的 CEL 适配器。
type RequestScreener interface {
	// Screen 放行返回 nil，拦截返回包装了 ErrValidation 的原因。
	Screen(ctx context.Context, req *domain.Request, item *domain.InventoryItem) error
}

// RequestSubmissionService 是消费方创建 pending 请求的入口。
// 它只做形状校验和可选的筛查策略，权威的库存判断
// 全部留给协调器在提交时点完成。
type RequestSubmissionService struct {
	store    domain.Store
	screener RequestScreener // 可以为 nil，表示不筛查
	tracer   trace.Tracer
}

// NewRequestSubmissionService 创建提交服务。screener 允许传 nil。
func NewRequestSubmissionService(store domain.Store, screener RequestScreener) *RequestSubmissionService {
	return &RequestSubmissionService{
		store:    store,
		screener: screener,
		tracer:   otel.Tracer("marketplace-service"),
	}
}

// SubmitRequest 校验并持久化一条新的 pending 请求，返回请求 ID。
// 数量非正返回 ErrValidation 且不创建任何记录；
// 目标库存项不存在返回 ErrNotFound。
func (s *RequestSubmissionService) SubmitRequest(ctx context.Context, cmd *SubmitRequestCommand) (*SubmitRequestResult, error) {
	ctx, span := s.tracer.Start(ctx, "submission.SubmitRequest")
	defer span.End()

	ownerType, err := domain.ParseOwnerType(cmd.OwnerType)
	if err != nil {
		return nil, err
	}
	requesterRole, err := domain.ParseOwnerType(cmd.RequesterRole)
	if err != nil {
		return nil, err
	}
	owner := domain.PartitionKey{OwnerType: ownerType, OwnerID: cmd.OwnerID}

	span.SetAttributes(
		attribute.String("owner.partition", owner.String()),
		attribute.String("item.id", cmd.ItemID),
		attribute.Int64("request.quantity", cmd.Quantity),
	)

	// 1. 工厂函数完成形状校验（正数数量、合法分区等）
	req, err := domain.NewRequest(uuid.New().String(), cmd.ItemID, owner, cmd.RequesterID, requesterRole, cmd.Quantity)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if req.RequesterRole == owner.OwnerType && req.RequesterID == owner.OwnerID {
		return nil, fmt.Errorf("%w: cannot claim own inventory", domain.ErrValidation)
	}

	// 2. 目标库存项必须存在。这里读到的数量只用于筛查参考，
	//    不构成任何预留
	item, err := s.store.GetItem(ctx, owner, cmd.ItemID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// 3. 可选的货主筛查策略
	if s.screener != nil {
		if err := s.screener.Screen(ctx, req, item); err != nil {
			span.AddEvent("request blocked by screening policy")
			logger.Ctx(ctx).Info().
				Str("item_id", cmd.ItemID).
				Str("requester", cmd.RequesterID).
				Err(err).
				Msg("submission blocked by screening policy")
			return nil, err
		}
	}

	// 4. 入队并广播 request_submitted
	if err := s.store.CreateRequest(ctx, req); err != nil {
		span.RecordError(err)
		return nil, err
	}

	submissionsTotal.WithLabelValues(string(ownerType)).Inc()
	logger.Ctx(ctx).Info().
		Str("request_id", req.ID).
		Str("item_id", req.ItemID).
		Str("owner", owner.String()).
		Int64("quantity", req.RequestedQuantity).
		Msg("claim request submitted")

	return &SubmitRequestResult{
		RequestID: req.ID,
		Status:    req.Status,
		CreatedAt: req.CreatedAt,
	}, nil
}
