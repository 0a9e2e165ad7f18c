package gormstore

import (
	"testing"
	"time"

	"agrilink/internal/service/marketplace/domain"
)

func TestDetailsRoundTrip(t *testing.T) {
	kind, data, err := marshalDetails(domain.FleetDetails{
		FleetName:   "north fleet",
		VehicleType: "refrigerated",
		PricePerDay: 120,
	})
	if err != nil {
		t.Fatal(err)
	}
	if kind != string(domain.DetailsFleet) {
		t.Fatalf("kind = %q", kind)
	}

	details, err := unmarshalDetails(kind, data)
	if err != nil {
		t.Fatal(err)
	}
	fleet, ok := details.(domain.FleetDetails)
	if !ok {
		t.Fatalf("details type = %T", details)
	}
	if fleet.FleetName != "north fleet" || fleet.VehicleType != "refrigerated" {
		t.Fatalf("details = %+v", fleet)
	}
}

func TestDetailsNilAndUnknownKind(t *testing.T) {
	kind, data, err := marshalDetails(nil)
	if err != nil || kind != "" || data != "" {
		t.Fatalf("nil details = (%q, %q, %v)", kind, data, err)
	}
	details, err := unmarshalDetails("", "")
	if err != nil || details != nil {
		t.Fatalf("empty kind = (%v, %v)", details, err)
	}
	if _, err := unmarshalDetails("boat", "{}"); err == nil {
		t.Fatal("unknown kind accepted")
	}
}

func TestRequestModelRoundTrip(t *testing.T) {
	owner := domain.PartitionKey{OwnerType: domain.OwnerCarrier, OwnerID: "fleet-1"}
	req, err := domain.NewRequest("r1", "truck", owner, "farmer-1", domain.OwnerProducer, 3)
	if err != nil {
		t.Fatal(err)
	}
	req.Version = 1

	m := ToRequestModel(req)
	if m.ProcessedAt.Valid {
		t.Fatal("pending request must have NULL processed_at")
	}
	back := ToDomainRequest(m)
	if back.ID != req.ID || back.Owner != req.Owner || back.Status != domain.StatusPending {
		t.Fatalf("round trip = %+v", back)
	}
	if back.RequestedQuantity != 3 || back.RequesterRole != domain.OwnerProducer {
		t.Fatalf("round trip = %+v", back)
	}

	_ = req.Approve(time.Now())
	m = ToRequestModel(req)
	if !m.ProcessedAt.Valid {
		t.Fatal("processed request must set processed_at")
	}
	back = ToDomainRequest(m)
	if back.Status != domain.StatusApproved || back.ProcessedAt.IsZero() {
		t.Fatalf("round trip after approve = %+v", back)
	}
}
