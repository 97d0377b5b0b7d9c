package novaposhta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/HurmakR/herabuna-b2b/internal/shipping/domain"
)

const defaultTimeout = 20 * time.Second

// Client speaks the Nova Poshta JSON API: every call is a POST of
// {apiKey, modelName, calledMethod, methodProperties} to a single endpoint.
type Client struct {
	log    *slog.Logger
	apiURL string
	apiKey string

	// Sender side of every created document, configured once.
	senderCityRef   string
	senderWarehouse string

	http *http.Client
}

func NewClient(log *slog.Logger, apiURL, apiKey, senderCityRef, senderWarehouse string) *Client {
	return &Client{
		log:             log,
		apiURL:          apiURL,
		apiKey:          apiKey,
		senderCityRef:   senderCityRef,
		senderWarehouse: senderWarehouse,
		http:            &http.Client{Timeout: defaultTimeout},
	}
}

type request struct {
	APIKey           string `json:"apiKey"`
	ModelName        string `json:"modelName"`
	CalledMethod     string `json:"calledMethod"`
	MethodProperties any    `json:"methodProperties"`
}

type response struct {
	Success bool              `json:"success"`
	Data    []json.RawMessage `json:"data"`
	Errors  []string          `json:"errors"`
}

// SearchCities resolves a free-text city name to provider references.
func (c *Client) SearchCities(ctx context.Context, query string) ([]domain.Place, error) {
	var data []json.RawMessage
	err := c.call(ctx, "Address", "getCities", map[string]any{
		"FindByString": query,
	}, &data)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Place, 0, len(data))
	for _, raw := range data {
		var city struct {
			Description string `json:"Description"`
			Ref         string `json:"Ref"`
		}
		if err := json.Unmarshal(raw, &city); err != nil {
			return nil, err
		}
		out = append(out, domain.Place{Name: city.Description, Ref: city.Ref})
	}
	return out, nil
}

// Warehouses lists pickup points of a city, optionally filtered by a
// free-text fragment of the warehouse description.
func (c *Client) Warehouses(ctx context.Context, cityRef, query string) ([]domain.Place, error) {
	var data []json.RawMessage
	err := c.call(ctx, "AddressGeneral", "getWarehouses", map[string]any{
		"CityRef": cityRef,
	}, &data)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Place, 0, len(data))
	for _, raw := range data {
		var wh struct {
			Description string `json:"Description"`
			Ref         string `json:"Ref"`
		}
		if err := json.Unmarshal(raw, &wh); err != nil {
			return nil, err
		}
		if needle != "" && !strings.Contains(strings.ToLower(wh.Description), needle) {
			continue
		}
		out = append(out, domain.Place{Name: wh.Description, Ref: wh.Ref})
	}
	return out, nil
}

// CreateDocument registers an internet document (waybill) and returns the
// tracking number with the provider reference.
func (c *Client) CreateDocument(ctx context.Context, req domain.DocumentRequest) (domain.Document, error) {
	weightKg := fmt.Sprintf("%.3f", float64(req.WeightGrams)/1000)
	var data []json.RawMessage
	err := c.call(ctx, "InternetDocument", "save", map[string]any{
		"PayerType":        "Recipient",
		"PaymentMethod":    "Cash",
		"CargoType":        "Parcel",
		"ServiceType":      "WarehouseWarehouse",
		"Weight":           weightKg,
		"SeatsAmount":      "1",
		"Description":      req.Description,
		"Cost":             req.DeclaredValue,
		"CitySender":       c.senderCityRef,
		"SenderAddress":    c.senderWarehouse,
		"CityRecipient":    req.CityRef,
		"RecipientAddress": req.WarehouseRef,
	}, &data)
	if err != nil {
		return domain.Document{}, err
	}
	if len(data) == 0 {
		return domain.Document{}, errors.New("novaposhta: save returned no document")
	}

	var doc struct {
		Ref          string `json:"Ref"`
		IntDocNumber string `json:"IntDocNumber"`
	}
	if err := json.Unmarshal(data[0], &doc); err != nil {
		return domain.Document{}, err
	}
	return domain.Document{TrackingNumber: doc.IntDocNumber, DocRef: doc.Ref}, nil
}

// FetchLabel downloads the printable marking for a created document.
func (c *Client) FetchLabel(ctx context.Context, docRef string) ([]byte, error) {
	base := strings.TrimSuffix(c.apiURL, "/json/")
	url := fmt.Sprintf("%s/orders/printMarkings/orders[]/%s/type/pdf/apiKey/%s", base, docRef, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("novaposhta: print markings: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) call(ctx context.Context, model, method string, props any, data *[]json.RawMessage) error {
	raw, err := json.Marshal(request{
		APIKey:           c.apiKey,
		ModelName:        model,
		CalledMethod:     method,
		MethodProperties: props,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("novaposhta: %s.%s: status %d", model, method, resp.StatusCode)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return err
	}
	if !r.Success {
		return fmt.Errorf("novaposhta: %s.%s: %s", model, method, strings.Join(r.Errors, "; "))
	}
	*data = r.Data
	return nil
}
