package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	catalogdom "github.com/HurmakR/herabuna-b2b/internal/catalog/domain"
	invapp "github.com/HurmakR/herabuna-b2b/internal/inventory/application"
	invdom "github.com/HurmakR/herabuna-b2b/internal/inventory/domain"
	"github.com/HurmakR/herabuna-b2b/internal/inventory/infrastructure/memory"
	"github.com/HurmakR/herabuna-b2b/internal/order/application"
	"github.com/HurmakR/herabuna-b2b/internal/order/domain"
	shipdom "github.com/HurmakR/herabuna-b2b/internal/shipping/domain"
	"github.com/HurmakR/herabuna-b2b/pkg/logging"
)

// Minimal in-memory wiring behind the real service, enough to exercise the
// HTTP surface.

type memRepo struct {
	orders map[string]*domain.Order
}

func (r *memRepo) Get(_ context.Context, id string) (domain.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return *o, nil
}

func (r *memRepo) GetDraft(_ context.Context, dealerID string) (domain.Order, error) {
	for _, o := range r.orders {
		if o.DealerID == dealerID && o.Status == domain.StatusDraft {
			return *o, nil
		}
	}
	return domain.Order{}, domain.ErrNoDraft
}

func (r *memRepo) EnsureDraft(ctx context.Context, dealerID string) (domain.Order, error) {
	if o, err := r.GetDraft(ctx, dealerID); err == nil {
		return o, nil
	}
	o := domain.NewDraft(dealerID)
	r.orders[o.ID] = &o
	return o, nil
}

func (r *memRepo) ListByDealer(_ context.Context, dealerID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range r.orders {
		if o.DealerID == dealerID && o.Status != domain.StatusDraft {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memRepo) ListByStatus(_ context.Context, status domain.Status) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range r.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memRepo) SaveLine(_ context.Context, o domain.Order, _ domain.Line) error {
	st := r.orders[o.ID]
	st.Lines, st.Subtotal, st.Total = o.Lines, o.Subtotal, o.Total
	return nil
}

func (r *memRepo) DeleteLine(_ context.Context, o domain.Order, _ string) error {
	st := r.orders[o.ID]
	st.Lines, st.Subtotal, st.Total = o.Lines, o.Subtotal, o.Total
	return nil
}

func (r *memRepo) SetDestination(_ context.Context, id string, d domain.Destination) error {
	r.orders[id].Destination = d
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	delete(r.orders, id)
	return nil
}

func (r *memRepo) Transition(_ context.Context, id string, from, to domain.Status,
	_ string, _ []byte, _ string, update application.StatusUpdate) error {
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return application.ErrStatusConflict
	}
	o.Status = to
	if update.TrackingNumber != nil {
		o.TrackingNumber = *update.TrackingNumber
	}
	return nil
}

type memCatalog struct{ products map[string]catalogdom.Product }

func (c *memCatalog) ProductWithVariants(_ context.Context, id string) (catalogdom.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return catalogdom.Product{}, domain.ErrOrderNotFound
	}
	return p, nil
}

func (c *memCatalog) MatchVariant(_ context.Context, p catalogdom.Product, attrs map[string]string) (catalogdom.Variant, error) {
	return catalogdom.BuildVariantIndex(p.ActiveVariants()).Match(attrs)
}

type memShipping struct{ fail bool }

func (s *memShipping) CreateDocument(context.Context, shipdom.DocumentRequest) (shipdom.Document, error) {
	if s.fail {
		return shipdom.Document{}, errors.New("api down")
	}
	return shipdom.Document{TrackingNumber: "2045", DocRef: "ref"}, nil
}

func (s *memShipping) FetchLabel(context.Context, string) ([]byte, error) {
	return []byte("%PDF"), nil
}

type memPlaces struct{}

func (memPlaces) SearchCities(_ context.Context, q string) ([]shipdom.Place, error) {
	return []shipdom.Place{{Name: q, Ref: "city-1"}}, nil
}

func (memPlaces) Warehouses(_ context.Context, _, q string) ([]shipdom.Place, error) {
	return []shipdom.Place{{Name: q, Ref: "wh-1"}}, nil
}

type memCache struct {
	statuses map[string]string
	dealers  map[string]string
}

func newMemCache() *memCache {
	return &memCache{statuses: map[string]string{}, dealers: map[string]string{}}
}

func (c *memCache) Set(_ context.Context, orderID, dealerID string, status domain.Status) {
	c.statuses[orderID] = string(status)
	c.dealers[orderID] = dealerID
}

func (c *memCache) Get(_ context.Context, orderID string) (string, domain.Status, bool) {
	st, ok := c.statuses[orderID]
	return c.dealers[orderID], domain.Status(st), ok
}

func (c *memCache) Invalidate(_ context.Context, orderID string) {
	delete(c.statuses, orderID)
	delete(c.dealers, orderID)
}

type harness struct {
	srv  *httptest.Server
	ship *memShipping
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logging.New()
	repo := &memRepo{orders: map[string]*domain.Order{}}
	store := memory.NewStore()
	store.SetStock(invdom.UnitRef{ProductID: "p1"}, 5)
	ship := &memShipping{}

	catalog := &memCatalog{products: map[string]catalogdom.Product{
		"p1": {ID: "p1", Name: "Carp Mix", IsActive: true, WholesalePrice: decimal.NewFromInt(100)},
	}}
	engine := invapp.NewEngine(log, store)
	svc := application.NewService(log, repo, engine, catalog, ship, memPlaces{}, newMemCache())

	h := NewHandler(log, svc, memPlaces{}, engine)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, ship: ship}
}

func (h *harness) do(t *testing.T, method, path, body string, staff bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Dealer-ID", "dealer-1")
	if staff {
		req.Header.Set("X-Staff", "true")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeOrder(t *testing.T, resp *http.Response) orderJSON {
	t.Helper()
	var o orderJSON
	if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return o
}

func TestCartFlow(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/cart", "", false)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty cart status = %d", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/cart/lines", `{"product_id":"p1","qty":2}`, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add line status = %d", resp.StatusCode)
	}
	o := decodeOrder(t, resp)
	if o.Status != "draft" || len(o.Lines) != 1 || o.Total != "200.00" {
		t.Fatalf("cart = %+v", o)
	}

	resp = h.do(t, http.MethodPost, "/cart/submit", "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	if o = decodeOrder(t, resp); o.Status != "submitted" {
		t.Fatalf("status = %s", o.Status)
	}
}

func TestInsufficientStockIs409WithDetails(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/cart/lines", `{"product_id":"p1","qty":9}`, false)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	var body errorJSON
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Shortages) != 1 {
		t.Fatalf("shortages = %+v", body.Shortages)
	}
	if s := body.Shortages[0]; s.ProductID != "p1" || s.Requested != 9 || s.Available != 5 {
		t.Fatalf("shortage = %+v", s)
	}
}

func TestStaffOnlyTransitions(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/cart/lines", `{"product_id":"p1","qty":1}`, false)
	resp := h.do(t, http.MethodPost, "/cart/submit", "", false)
	o := decodeOrder(t, resp)

	resp = h.do(t, http.MethodPost, "/orders/"+o.ID+"/confirm", "", false)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("dealer confirm status = %d", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/orders/"+o.ID+"/confirm", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("staff confirm status = %d", resp.StatusCode)
	}

	// Confirming twice is a lifecycle conflict.
	resp = h.do(t, http.MethodPost, "/orders/"+o.ID+"/confirm", "", true)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double confirm status = %d", resp.StatusCode)
	}
}

func TestShipFailureIs502(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/cart/lines", `{"product_id":"p1","qty":1}`, false)
	h.do(t, http.MethodPost, "/cart/destination", `{"city":"Kyiv","warehouse":"12"}`, false)
	resp := h.do(t, http.MethodPost, "/cart/submit", "", false)
	o := decodeOrder(t, resp)
	h.do(t, http.MethodPost, "/orders/"+o.ID+"/confirm", "", true)

	h.ship.fail = true
	resp = h.do(t, http.MethodPost, "/orders/"+o.ID+"/ship", "", true)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("failed ship status = %d, want 502", resp.StatusCode)
	}

	h.ship.fail = false
	resp = h.do(t, http.MethodPost, "/orders/"+o.ID+"/ship", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retry ship status = %d", resp.StatusCode)
	}
	if o = decodeOrder(t, resp); o.TrackingNumber != "2045" {
		t.Fatalf("tracking = %s", o.TrackingNumber)
	}
}

func TestUnknownOrderIs404(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/orders/nope", "", true)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/cart/lines", `{"product_id":"p1","qty":1}`, false)
	resp := h.do(t, http.MethodPost, "/cart/submit", "", false)
	o := decodeOrder(t, resp)

	resp = h.do(t, http.MethodGet, "/orders/"+o.ID+"/status", "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status poll = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "submitted" {
		t.Fatalf("status = %q", body["status"])
	}

	resp = h.do(t, http.MethodGet, "/orders/nope/status", "", false)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown order status poll = %d", resp.StatusCode)
	}
}

func TestStockAdjust(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/stock/adjust", `{"product_id":"p1","delta":3}`, false)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("dealer adjust status = %d", resp.StatusCode)
	}

	resp = h.do(t, http.MethodPost, "/stock/adjust", `{"product_id":"p1","delta":3}`, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("staff adjust status = %d", resp.StatusCode)
	}
	var body map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["available"] != 8 {
		t.Fatalf("available = %d, want 8", body["available"])
	}

	// A write-off below zero is rejected as a stock conflict.
	resp = h.do(t, http.MethodPost, "/stock/adjust", `{"product_id":"p1","delta":-20}`, true)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("over-write-off status = %d, want 409", resp.StatusCode)
	}
}

func TestBadQuantityIs400(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodPost, "/cart/lines", `{"product_id":"p1","qty":0}`, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
