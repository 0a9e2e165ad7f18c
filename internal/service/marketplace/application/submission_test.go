package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"agrilink/internal/service/marketplace/domain"
)

func TestSubmitRequestCreatesPending(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "wheat", 100)

	res, err := f.submission.SubmitRequest(context.Background(), &SubmitRequestCommand{
		OwnerType:     "producer",
		OwnerID:       "farmer-1",
		ItemID:        "wheat",
		RequesterRole: "reseller",
		RequesterID:   "shop-1",
		Quantity:      10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.RequestID == "" {
		t.Fatal("request id is empty")
	}
	if res.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", res.Status)
	}

	stored, err := f.store.GetRequest(context.Background(), f.owner, res.RequestID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.RequesterID != "shop-1" || stored.RequestedQuantity != 10 {
		t.Fatalf("stored request = %+v", stored)
	}
}

func TestSubmitRequestValidation(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "wheat", 100)

	base := func() *SubmitRequestCommand {
		return &SubmitRequestCommand{
			OwnerType:     "producer",
			OwnerID:       "farmer-1",
			ItemID:        "wheat",
			RequesterRole: "reseller",
			RequesterID:   "shop-1",
			Quantity:      10,
		}
	}

	cases := []struct {
		name    string
		mutate  func(*SubmitRequestCommand)
		wantErr error
	}{
		{"zero quantity", func(c *SubmitRequestCommand) { c.Quantity = 0 }, domain.ErrValidation},
		{"negative quantity", func(c *SubmitRequestCommand) { c.Quantity = -3 }, domain.ErrValidation},
		{"unknown owner type", func(c *SubmitRequestCommand) { c.OwnerType = "customer" }, domain.ErrUnknownOwnerType},
		{"unknown requester role", func(c *SubmitRequestCommand) { c.RequesterRole = "guest" }, domain.ErrUnknownOwnerType},
		{"missing item", func(c *SubmitRequestCommand) { c.ItemID = "barley" }, domain.ErrNotFound},
		{"empty requester", func(c *SubmitRequestCommand) { c.RequesterID = "" }, domain.ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := base()
			tc.mutate(cmd)
			if _, err := f.submission.SubmitRequest(context.Background(), cmd); !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	// 校验失败不留下任何记录
	pending, _ := f.streams.PendingRequests(context.Background(), f.owner)
	if len(pending) != 0 {
		t.Fatalf("failed submissions left %d pending requests", len(pending))
	}
}

func TestSubmitRequestRejectsSelfClaim(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "wheat", 100)

	_, err := f.submission.SubmitRequest(context.Background(), &SubmitRequestCommand{
		OwnerType:     "producer",
		OwnerID:       "farmer-1",
		ItemID:        "wheat",
		RequesterRole: "producer",
		RequesterID:   "farmer-1",
		Quantity:      10,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("self claim error = %v, want ErrValidation", err)
	}

	// 同角色、不同货主之间认领是允许的
	if _, err := f.submission.SubmitRequest(context.Background(), &SubmitRequestCommand{
		OwnerType:     "producer",
		OwnerID:       "farmer-1",
		ItemID:        "wheat",
		RequesterRole: "producer",
		RequesterID:   "farmer-2",
		Quantity:      10,
	}); err != nil {
		t.Fatal(err)
	}
}

// 提交不做库存预留：超量请求照样入队，等协调器裁决时再拦。
func TestSubmitRequestDoesNotReserveStock(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "wheat", 5)

	res, err := f.submission.SubmitRequest(context.Background(), &SubmitRequestCommand{
		OwnerType:     "producer",
		OwnerID:       "farmer-1",
		ItemID:        "wheat",
		RequesterRole: "reseller",
		RequesterID:   "shop-1",
		Quantity:      500,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.itemQuantity(t, "wheat"); got != 5 {
		t.Fatalf("quantity = %d, submission must not touch stock", got)
	}
	if _, err := f.coordinator.AcceptRequest(context.Background(), f.decision(res.RequestID)); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("accept error = %v, want ErrInsufficientStock", err)
	}
}

type blockingScreener struct{}

func (blockingScreener) Screen(ctx context.Context, req *domain.Request, item *domain.InventoryItem) error {
	return fmt.Errorf("%w: blocked for test", domain.ErrValidation)
}

func TestSubmitRequestHonorsScreener(t *testing.T) {
	f := newFixture(t)
	f.seedItem(t, "wheat", 100)
	screened := NewRequestSubmissionService(f.store, blockingScreener{})

	_, err := screened.SubmitRequest(context.Background(), &SubmitRequestCommand{
		OwnerType:     "producer",
		OwnerID:       "farmer-1",
		ItemID:        "wheat",
		RequesterRole: "reseller",
		RequesterID:   "shop-1",
		Quantity:      10,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("screened submission error = %v, want ErrValidation", err)
	}
	pending, _ := f.streams.PendingRequests(context.Background(), f.owner)
	if len(pending) != 0 {
		t.Fatalf("blocked submission still created %d requests", len(pending))
	}
}
