// internal/service/marketplace/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"agrilink/internal/service/marketplace/application"
	"agrilink/internal/service/marketplace/domain"
	"agrilink/internal/service/marketplace/infrastructure/adapter"
)

const serviceName = "marketplace-service"

// CatalogBrowser 是跨分区目录浏览的读侧端口（Redis 缓存实现）。
type CatalogBrowser interface {
	BrowseCatalog(ctx context.Context, owner domain.PartitionKey) ([]adapter.CatalogEntry, error)
}

// MarketplaceHandler 封装了市场核心的 HTTP 处理器。
// 它只是表现层到核心的薄壳：解析参数、调用用例、映射错误码。
type MarketplaceHandler struct {
	coordinator *application.ReservationCoordinator
	submission  *application.RequestSubmissionService
	streams     *application.PartitionStreams
	catalog     CatalogBrowser // 可以为 nil，降级为直读存储
}

// NewMarketplaceHandler 创建一个新的 HTTP 处理器实例。
func NewMarketplaceHandler(
	coordinator *application.ReservationCoordinator,
	submission *application.RequestSubmissionService,
	streams *application.PartitionStreams,
	catalog CatalogBrowser,
) *MarketplaceHandler {
	return &MarketplaceHandler{
		coordinator: coordinator,
		submission:  submission,
		streams:     streams,
		catalog:     catalog,
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *MarketplaceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/submit_request", h.submitRequestHandler)
	mux.HandleFunc("/accept_request", h.acceptRequestHandler)
	mux.HandleFunc("/reject_request", h.rejectRequestHandler)

	mux.HandleFunc("/pending_requests", h.listRequestsHandler(domain.StatusPending))
	mux.HandleFunc("/accepted_requests", h.listRequestsHandler(domain.StatusApproved))
	mux.HandleFunc("/declined_requests", h.listRequestsHandler(domain.StatusRejected))
	mux.HandleFunc("/items", h.listItemsHandler)
	mux.HandleFunc("/decisions", h.listDecisionsHandler)
	mux.HandleFunc("/catalog", h.browseCatalogHandler)
}

func (h *MarketplaceHandler) submitRequestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.SubmitRequest")
	defer span.End()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// 数量在边界处解析一次，之后全程 int64
	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		writeError(w, domain.ErrValidation)
		return
	}

	span.SetAttributes(
		attribute.String("owner.type", r.URL.Query().Get("ownerType")),
		attribute.String("item.id", r.URL.Query().Get("itemId")),
		attribute.Int64("request.quantity", quantity),
	)

	result, err := h.submission.SubmitRequest(ctx, &application.SubmitRequestCommand{
		OwnerType:     r.URL.Query().Get("ownerType"),
		OwnerID:       r.URL.Query().Get("ownerId"),
		ItemID:        r.URL.Query().Get("itemId"),
		RequesterRole: r.URL.Query().Get("requesterRole"),
		RequesterID:   r.URL.Query().Get("requesterId"),
		Quantity:      quantity,
	})
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *MarketplaceHandler) acceptRequestHandler(w http.ResponseWriter, r *http.Request) {
	h.decisionHandler(w, r, "api.AcceptRequest", h.coordinator.AcceptRequest)
}

func (h *MarketplaceHandler) rejectRequestHandler(w http.ResponseWriter, r *http.Request) {
	h.decisionHandler(w, r, "api.RejectRequest", h.coordinator.RejectRequest)
}

func (h *MarketplaceHandler) decisionHandler(
	w http.ResponseWriter,
	r *http.Request,
	spanName string,
	decide func(ctx context.Context, cmd *application.DecisionCommand) (*application.DecisionResult, error),
) {
	ctx := extractTraceContext(r)
	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cmd := &application.DecisionCommand{
		OwnerType: r.URL.Query().Get("ownerType"),
		OwnerID:   r.URL.Query().Get("ownerId"),
		RequestID: r.URL.Query().Get("requestId"),
	}
	span.SetAttributes(
		attribute.String("owner.type", cmd.OwnerType),
		attribute.String("request.id", cmd.RequestID),
	)

	result, err := decide(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *MarketplaceHandler) listRequestsHandler(status domain.RequestStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := extractTraceContext(r)
		owner, err := parseOwner(r)
		if err != nil {
			writeError(w, err)
			return
		}
		var requests []*domain.Request
		switch status {
		case domain.StatusApproved:
			requests, err = h.streams.AcceptedRequests(ctx, owner)
		case domain.StatusRejected:
			requests, err = h.streams.DeclinedRequests(ctx, owner)
		default:
			requests, err = h.streams.PendingRequests(ctx, owner)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, requests)
	}
}

func (h *MarketplaceHandler) listItemsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	owner, err := parseOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.streams.InventoryItems(ctx, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *MarketplaceHandler) listDecisionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	owner, err := parseOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}
	decisions, err := h.streams.Decisions(ctx, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (h *MarketplaceHandler) browseCatalogHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	owner, err := parseOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.catalog != nil {
		entries, err := h.catalog.BrowseCatalog(ctx, owner)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	// 没有配置缓存时直读存储
	items, err := h.streams.InventoryItems(ctx, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func parseOwner(r *http.Request) (domain.PartitionKey, error) {
	ownerType, err := domain.ParseOwnerType(r.URL.Query().Get("ownerType"))
	if err != nil {
		return domain.PartitionKey{}, err
	}
	owner := domain.PartitionKey{OwnerType: ownerType, OwnerID: r.URL.Query().Get("ownerId")}
	return owner, owner.Validate()
}

func extractTraceContext(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 把领域错误分类映射到 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnknownOwnerType):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrContention),
		errors.Is(err, domain.ErrDuplicateDecision):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientStock):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
