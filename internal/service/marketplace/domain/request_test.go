package domain

import (
	"errors"
	"testing"
	"time"
)

func testOwner() PartitionKey {
	return PartitionKey{OwnerType: OwnerProducer, OwnerID: "farmer-1"}
}

func TestNewRequestValidation(t *testing.T) {
	cases := []struct {
		name     string
		id       string
		itemID   string
		owner    PartitionKey
		reqID    string
		role     OwnerType
		quantity int64
		wantErr  error
	}{
		{"valid", "r1", "i1", testOwner(), "reseller-1", OwnerReseller, 10, nil},
		{"zero quantity", "r1", "i1", testOwner(), "reseller-1", OwnerReseller, 0, ErrValidation},
		{"negative quantity", "r1", "i1", testOwner(), "reseller-1", OwnerReseller, -5, ErrValidation},
		{"empty item", "r1", "", testOwner(), "reseller-1", OwnerReseller, 10, ErrValidation},
		{"empty requester", "r1", "i1", testOwner(), "", OwnerReseller, 10, ErrValidation},
		{"bad requester role", "r1", "i1", testOwner(), "reseller-1", OwnerType("customer"), 10, ErrUnknownOwnerType},
		{"bad owner", "r1", "i1", PartitionKey{OwnerType: "shop", OwnerID: "x"}, "reseller-1", OwnerReseller, 10, ErrUnknownOwnerType},
		{"empty owner id", "r1", "i1", PartitionKey{OwnerType: OwnerProducer}, "reseller-1", OwnerReseller, 10, ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := NewRequest(tc.id, tc.itemID, tc.owner, tc.reqID, tc.role, tc.quantity)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if req.Status != StatusPending {
					t.Fatalf("new request status = %s, want pending", req.Status)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRequestLifecycle(t *testing.T) {
	req, err := NewRequest("r1", "i1", testOwner(), "reseller-1", OwnerReseller, 10)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	if err := req.Approve(now); err != nil {
		t.Fatalf("approve pending request: %v", err)
	}
	if req.Status != StatusApproved {
		t.Fatalf("status = %s, want approved", req.Status)
	}
	if !req.ProcessedAt.Equal(now) {
		t.Fatalf("processedAt = %v, want %v", req.ProcessedAt, now)
	}

	// 终态请求再次流转必须是严格 no-op
	if err := req.Approve(time.Now()); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("second approve error = %v, want ErrAlreadyProcessed", err)
	}
	if err := req.Reject(time.Now()); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("reject after approve error = %v, want ErrAlreadyProcessed", err)
	}
	if req.Status != StatusApproved {
		t.Fatalf("status mutated to %s after rejected transition", req.Status)
	}
}

func TestRequestReject(t *testing.T) {
	req, err := NewRequest("r1", "i1", testOwner(), "carrier-1", OwnerCarrier, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := req.Reject(time.Now()); err != nil {
		t.Fatalf("reject pending request: %v", err)
	}
	if req.Status != StatusRejected {
		t.Fatalf("status = %s, want rejected", req.Status)
	}
	if err := req.Approve(time.Now()); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("approve after reject error = %v, want ErrAlreadyProcessed", err)
	}
}

func TestDecisionRecordOutcome(t *testing.T) {
	req, _ := NewRequest("r1", "i1", testOwner(), "reseller-1", OwnerReseller, 10)
	_ = req.Approve(time.Now())

	rec := NewDecisionRecord(req, 42)
	if rec.Outcome != OutcomeApproved {
		t.Fatalf("outcome = %s, want approved", rec.Outcome)
	}
	if rec.QuantitySnapshot != 42 {
		t.Fatalf("snapshot = %d, want 42", rec.QuantitySnapshot)
	}
	if rec.RequestID != req.ID || rec.Owner != req.Owner {
		t.Fatal("record does not reference its request")
	}
}
