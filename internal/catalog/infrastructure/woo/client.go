package woo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HurmakR/herabuna-b2b/internal/catalog/domain"
)

const (
	perPage        = 100
	defaultTimeout = 30 * time.Second
)

// Client is a WooCommerce REST API v3 client authenticated with
// consumer key/secret query parameters.
type Client struct {
	log     *slog.Logger
	baseURL string // e.g. https://shop.example.com/wp-json/wc/v3
	key     string
	secret  string
	http    *http.Client
}

func NewClient(log *slog.Logger, baseURL, apiRoot, key, secret string) *Client {
	return &Client{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/") + "/" + strings.Trim(apiRoot, "/"),
		key:     key,
		secret:  secret,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

type wooAttribute struct {
	Name    string   `json:"name"`
	Option  string   `json:"option,omitempty"`
	Options []string `json:"options,omitempty"`
}

type wooProduct struct {
	ID            int64          `json:"id"`
	SKU           string         `json:"sku"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	Price         string         `json:"price"`
	StockQuantity *int           `json:"stock_quantity"`
	Weight        string         `json:"weight"`
	Attributes    []wooAttribute `json:"attributes"`
	Variations    []int64        `json:"variations"`
}

type wooVariation struct {
	ID            int64          `json:"id"`
	SKU           string         `json:"sku"`
	Status        string         `json:"status"`
	Price         string         `json:"price"`
	StockQuantity *int           `json:"stock_quantity"`
	Weight        string         `json:"weight"`
	Attributes    []wooAttribute `json:"attributes"`
}

// FetchProducts pages through all published products.
func (c *Client) FetchProducts(ctx context.Context) ([]domain.ProductSnapshot, error) {
	var out []domain.ProductSnapshot
	for page := 1; ; page++ {
		var batch []wooProduct
		params := url.Values{
			"status":   {"publish"},
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		}
		if err := c.get(ctx, "/products", params, &batch); err != nil {
			return nil, err
		}
		for _, p := range batch {
			out = append(out, productSnapshot(p))
		}
		if len(batch) < perPage {
			return out, nil
		}
	}
}

// FetchVariations lists all variations of a variable product.
func (c *Client) FetchVariations(ctx context.Context, wooID int64) ([]domain.VariantSnapshot, error) {
	var out []domain.VariantSnapshot
	for page := 1; ; page++ {
		var batch []wooVariation
		params := url.Values{
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		}
		path := fmt.Sprintf("/products/%d/variations", wooID)
		if err := c.get(ctx, path, params, &batch); err != nil {
			return nil, err
		}
		for _, v := range batch {
			out = append(out, variantSnapshot(v))
		}
		if len(batch) < perPage {
			return out, nil
		}
	}
}

// PushStock writes the absolute product quantity back to the catalog.
func (c *Client) PushStock(ctx context.Context, wooID int64, qty int) error {
	body := map[string]any{"manage_stock": true, "stock_quantity": qty}
	return c.put(ctx, fmt.Sprintf("/products/%d", wooID), body)
}

// PushVariationStock writes the absolute variation quantity back.
func (c *Client) PushVariationStock(ctx context.Context, wooID, variationID int64, qty int) error {
	body := map[string]any{"manage_stock": true, "stock_quantity": qty}
	return c.put(ctx, fmt.Sprintf("/products/%d/variations/%d", wooID, variationID), body)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path, params), nil)
	if err != nil {
		return err
	}
	return c.do(req, v)
}

func (c *Client) put(ctx context.Context, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url(path, nil), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) url(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("consumer_key", c.key)
	params.Set("consumer_secret", c.secret)
	return c.baseURL + path + "?" + params.Encode()
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("woocommerce: %s %s: status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func productSnapshot(p wooProduct) domain.ProductSnapshot {
	attrs := make(map[string]string, len(p.Attributes))
	for _, a := range p.Attributes {
		if len(a.Options) > 0 {
			attrs[a.Name] = strings.Join(a.Options, ", ")
		} else if a.Option != "" {
			attrs[a.Name] = a.Option
		}
	}
	return domain.ProductSnapshot{
		WooID:       p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		RetailPrice: parsePrice(p.Price),
		StockQty:    intOrZero(p.StockQuantity),
		Active:      p.Status == "publish",
		WeightGrams: weightToGrams(p.Weight),
		Attributes:  attrs,
		HasVariants: p.Type == "variable" || len(p.Variations) > 0,
	}
}

func variantSnapshot(v wooVariation) domain.VariantSnapshot {
	attrs := make(map[string]string, len(v.Attributes))
	for _, a := range v.Attributes {
		attrs[a.Name] = a.Option
	}
	return domain.VariantSnapshot{
		WooVariationID: v.ID,
		SKU:            v.SKU,
		Attributes:     attrs,
		RetailPrice:    parsePrice(v.Price),
		StockQty:       intOrZero(v.StockQuantity),
		Active:         v.Status == "publish",
		WeightGrams:    weightToGrams(v.Weight),
	}
}

func parsePrice(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// weightToGrams converts the store's kilogram strings ("2.5") to grams.
func weightToGrams(s string) int {
	if s == "" {
		return 0
	}
	kg, err := strconv.ParseFloat(s, 64)
	if err != nil || kg <= 0 {
		return 0
	}
	return int(math.Round(kg * 1000))
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
