package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"agrilink/internal/service/marketplace/application"
	"agrilink/internal/service/marketplace/domain"
	"agrilink/internal/service/marketplace/infrastructure/memory"
	"agrilink/internal/service/marketplace/infrastructure/notify"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	hub := notify.NewHub(nil)
	store := memory.NewStore(hub)
	handler := NewMarketplaceHandler(
		application.NewReservationCoordinator(store),
		application.NewRequestSubmissionService(store, nil),
		application.NewPartitionStreams(store, hub),
		nil,
	)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func seedWheat(t *testing.T, store *memory.Store, qty int64) domain.PartitionKey {
	t.Helper()
	owner := domain.PartitionKey{OwnerType: domain.OwnerProducer, OwnerID: "farmer-1"}
	item, err := domain.NewInventoryItem("wheat", owner, qty, domain.ProduceDetails{ProductName: "wheat"})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.PutItem(context.Background(), item); err != nil {
		t.Fatal(err)
	}
	return owner
}

func post(t *testing.T, srv *httptest.Server, path string, params url.Values) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+path+"?"+params.Encode(), "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func submitParams() url.Values {
	return url.Values{
		"ownerType":     {"producer"},
		"ownerId":       {"farmer-1"},
		"itemId":        {"wheat"},
		"requesterRole": {"reseller"},
		"requesterId":   {"shop-1"},
		"quantity":      {"10"},
	}
}

func TestSubmitAndAcceptOverHTTP(t *testing.T) {
	srv, store := newTestServer(t)
	owner := seedWheat(t, store, 100)

	resp, body := post(t, srv, "/submit_request", submitParams())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d, body = %v", resp.StatusCode, body)
	}
	requestID, _ := body["requestId"].(string)
	if requestID == "" {
		t.Fatalf("submit body = %v", body)
	}

	resp, body = post(t, srv, "/accept_request", url.Values{
		"ownerType": {"producer"},
		"ownerId":   {"farmer-1"},
		"requestId": {requestID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept status = %d, body = %v", resp.StatusCode, body)
	}
	if body["outcome"] != "approved" {
		t.Fatalf("accept body = %v", body)
	}
	if remaining, _ := body["quantityRemaining"].(float64); remaining != 90 {
		t.Fatalf("quantityRemaining = %v, want 90", body["quantityRemaining"])
	}

	item, err := store.GetItem(context.Background(), owner, "wheat")
	if err != nil {
		t.Fatal(err)
	}
	if item.QuantityAvailable != 90 {
		t.Fatalf("stored quantity = %d, want 90", item.QuantityAvailable)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	srv, store := newTestServer(t)
	seedWheat(t, store, 5)

	// 数量解析失败 → 400
	params := submitParams()
	params.Set("quantity", "ten")
	if resp, _ := post(t, srv, "/submit_request", params); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad quantity status = %d", resp.StatusCode)
	}

	// 未知分区类型 → 400
	params = submitParams()
	params.Set("ownerType", "customer")
	if resp, _ := post(t, srv, "/submit_request", params); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown owner status = %d", resp.StatusCode)
	}

	// 不存在的库存项 → 404
	params = submitParams()
	params.Set("itemId", "barley")
	if resp, _ := post(t, srv, "/submit_request", params); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing item status = %d", resp.StatusCode)
	}

	// 库存不足 → 422
	_, body := post(t, srv, "/submit_request", submitParams())
	requestID, _ := body["requestId"].(string)
	decide := url.Values{
		"ownerType": {"producer"},
		"ownerId":   {"farmer-1"},
		"requestId": {requestID},
	}
	if resp, _ := post(t, srv, "/accept_request", decide); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient stock status = %d", resp.StatusCode)
	}

	// 已裁决的请求再裁决 → 409
	if resp, _ := post(t, srv, "/reject_request", decide); resp.StatusCode != http.StatusOK {
		t.Fatalf("reject status = %d", resp.StatusCode)
	}
	if resp, _ := post(t, srv, "/accept_request", decide); resp.StatusCode != http.StatusConflict {
		t.Fatalf("double decision status = %d", resp.StatusCode)
	}

	// 不存在的请求 → 404
	decide.Set("requestId", "missing")
	if resp, _ := post(t, srv, "/accept_request", decide); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing request status = %d", resp.StatusCode)
	}
}

func TestListEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	seedWheat(t, store, 100)
	_, body := post(t, srv, "/submit_request", submitParams())
	requestID, _ := body["requestId"].(string)

	get := func(path string) []map[string]interface{} {
		resp, err := http.Get(srv.URL + path + "?ownerType=producer&ownerId=farmer-1")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
		var out []map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("%s decode: %v", path, err)
		}
		return out
	}

	if pending := get("/pending_requests"); len(pending) != 1 {
		t.Fatalf("pending = %v", pending)
	}
	if items := get("/items"); len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
	if catalog := get("/catalog"); len(catalog) != 1 {
		t.Fatalf("catalog = %v", catalog)
	}
	if decisions := get("/decisions"); len(decisions) != 0 {
		t.Fatalf("decisions = %v", decisions)
	}

	post(t, srv, "/accept_request", url.Values{
		"ownerType": {"producer"},
		"ownerId":   {"farmer-1"},
		"requestId": {requestID},
	})

	if pending := get("/pending_requests"); len(pending) != 0 {
		t.Fatalf("pending after accept = %v", pending)
	}
	if accepted := get("/accepted_requests"); len(accepted) != 1 {
		t.Fatalf("accepted = %v", accepted)
	}
	if decisions := get("/decisions"); len(decisions) != 1 {
		t.Fatalf("decisions after accept = %v", decisions)
	}

	// 方法不对 → 405
	resp, err := http.Get(srv.URL + "/submit_request?" + submitParams().Encode())
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET submit status = %d", resp.StatusCode)
	}
}
