package woo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HurmakR/herabuna-b2b/pkg/logging"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(logging.New(), srv.URL, "/wp-json/wc/v3", "ck_test", "cs_test")
}

func TestFetchProducts(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wc/v3/products" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("consumer_key") != "ck_test" || q.Get("consumer_secret") != "cs_test" {
			t.Error("missing auth params")
		}
		if q.Get("status") != "publish" {
			t.Errorf("status = %s", q.Get("status"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 11, "sku": "MIX-1", "name": "Carp Mix", "type": "simple",
			 "status": "publish", "price": "350.50", "stock_quantity": 14, "weight": "2.5"},
			{"id": 12, "sku": "ROD-1", "name": "Herabuna Rod", "type": "variable",
			 "status": "publish", "price": "", "stock_quantity": null, "weight": "",
			 "variations": [121, 122]}
		]`))
	}))

	products, err := c.FetchProducts(context.Background())
	if err != nil {
		t.Fatalf("FetchProducts: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("len = %d", len(products))
	}

	mix := products[0]
	if mix.WooID != 11 || mix.SKU != "MIX-1" || !mix.Active {
		t.Fatalf("mix = %+v", mix)
	}
	if mix.WeightGrams != 2500 {
		t.Fatalf("weight = %d, want 2500", mix.WeightGrams)
	}
	if mix.RetailPrice.String() != "350.5" {
		t.Fatalf("price = %s", mix.RetailPrice)
	}
	if mix.HasVariants {
		t.Fatal("simple product flagged variable")
	}

	rod := products[1]
	if !rod.HasVariants {
		t.Fatal("variable product not flagged")
	}
	if rod.StockQty != 0 || !rod.RetailPrice.IsZero() {
		t.Fatalf("rod = %+v", rod)
	}
}

func TestFetchProductsPaging(t *testing.T) {
	pages := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "1" {
			// A full page forces a second request.
			out := make([]map[string]any, perPage)
			for i := range out {
				out[i] = map[string]any{"id": i + 1, "sku": "S", "status": "publish"}
			}
			_ = json.NewEncoder(w).Encode(out)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))

	products, err := c.FetchProducts(context.Background())
	if err != nil {
		t.Fatalf("FetchProducts: %v", err)
	}
	if len(products) != perPage {
		t.Fatalf("len = %d, want %d", len(products), perPage)
	}
	if pages != 2 {
		t.Fatalf("pages fetched = %d, want 2", pages)
	}
}

func TestFetchVariations(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wc/v3/products/12/variations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 121, "sku": "ROD-1-39", "status": "publish", "price": "1200.00",
			 "stock_quantity": 3, "weight": "0.12",
			 "attributes": [{"name": "Length", "option": "3.9m"}]}
		]`))
	}))

	variations, err := c.FetchVariations(context.Background(), 12)
	if err != nil {
		t.Fatalf("FetchVariations: %v", err)
	}
	if len(variations) != 1 {
		t.Fatalf("len = %d", len(variations))
	}
	v := variations[0]
	if v.WooVariationID != 121 || v.StockQty != 3 || v.WeightGrams != 120 {
		t.Fatalf("variation = %+v", v)
	}
	if v.Attributes["Length"] != "3.9m" {
		t.Fatalf("attributes = %v", v.Attributes)
	}
}

func TestPushStock(t *testing.T) {
	var got map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/wp-json/wc/v3/products/11" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{}`))
	}))

	if err := c.PushStock(context.Background(), 11, 9); err != nil {
		t.Fatalf("PushStock: %v", err)
	}
	if got["stock_quantity"].(float64) != 9 || got["manage_stock"] != true {
		t.Fatalf("body = %v", got)
	}
}

func TestPushVariationStockError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":"woocommerce_rest_invalid_id"}`, http.StatusNotFound)
	}))

	if err := c.PushVariationStock(context.Background(), 12, 999, 1); err == nil {
		t.Fatal("want error on 404")
	}
}

func TestWeightToGrams(t *testing.T) {
	cases := map[string]int{
		"":     0,
		"bad":  0,
		"-1":   0,
		"0.12": 120,
		"2.5":  2500,
		"10":   10000,
	}
	for in, want := range cases {
		if got := weightToGrams(in); got != want {
			t.Errorf("weightToGrams(%q) = %d, want %d", in, got, want)
		}
	}
}
