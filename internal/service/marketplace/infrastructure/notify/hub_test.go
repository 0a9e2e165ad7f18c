package notify

import (
	"testing"

	"agrilink/internal/service/marketplace/domain"
)

var (
	alpha = domain.PartitionKey{OwnerType: domain.OwnerProducer, OwnerID: "farmer-1"}
	beta  = domain.PartitionKey{OwnerType: domain.OwnerWarehouse, OwnerID: "wh-1"}
)

func TestHubScopesEventsToPartition(t *testing.T) {
	h := NewHub(nil)
	alphaCh, cancelAlpha := h.Subscribe(alpha)
	defer cancelAlpha()
	betaCh, cancelBeta := h.Subscribe(beta)
	defer cancelBeta()

	_ = h.Publish(domain.ChangeEvent{Owner: alpha, Kind: domain.ChangeRequestSubmitted})

	ev := <-alphaCh
	if ev.Owner != alpha || ev.Kind != domain.ChangeRequestSubmitted {
		t.Fatalf("event = %+v", ev)
	}
	select {
	case leaked := <-betaCh:
		t.Fatalf("event leaked to foreign partition: %+v", leaked)
	default:
	}
}

func TestHubAssignsMonotonicSeq(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe(alpha)
	defer cancel()

	for i := 0; i < 5; i++ {
		_ = h.Publish(domain.ChangeEvent{Owner: alpha, Kind: domain.ChangeInventoryUpdated})
	}

	var last int64
	for i := 0; i < 5; i++ {
		ev := <-ch
		if ev.Seq <= last {
			t.Fatalf("seq %d after %d", ev.Seq, last)
		}
		last = ev.Seq
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe(alpha)

	cancel()
	cancel() // 重复取消必须安全

	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
	// 取消之后的发布不应 panic，也不应投递到已关闭的通道
	if err := h.Publish(domain.ChangeEvent{Owner: alpha}); err != nil {
		t.Fatal(err)
	}
}

func TestHubSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := NewHub(nil)
	_, cancel := h.Subscribe(alpha)
	defer cancel()

	// 缓冲之外的事件被丢弃而不是阻塞发布方
	for i := 0; i < subscriberBuffer*2; i++ {
		if err := h.Publish(domain.ChangeEvent{Owner: alpha}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHubSubscribeAllSeesEveryPartition(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.SubscribeAll()
	defer cancel()

	_ = h.Publish(domain.ChangeEvent{Owner: alpha, Kind: domain.ChangeRequestSubmitted})
	_ = h.Publish(domain.ChangeEvent{Owner: beta, Kind: domain.ChangeInventoryUpdated})

	first := <-ch
	second := <-ch
	if first.Owner != alpha || second.Owner != beta {
		t.Fatalf("events = %+v, %+v", first, second)
	}
}

type countingForward struct {
	events []domain.ChangeEvent
}

func (f *countingForward) Publish(ev domain.ChangeEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func TestHubForwardsDownstream(t *testing.T) {
	forward := &countingForward{}
	h := NewHub(forward)

	_ = h.Publish(domain.ChangeEvent{Owner: alpha, Kind: domain.ChangeRequestApproved})

	if len(forward.events) != 1 {
		t.Fatalf("forwarded %d events, want 1", len(forward.events))
	}
	if forward.events[0].Seq == 0 {
		t.Fatal("forwarded event did not get a sequence number")
	}
}
