package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Issuer forwards confirmed orders to the accounting webhook that issues
// the payment invoice.
type Issuer struct {
	log        *slog.Logger
	webhookURL string
	http       *http.Client
}

func NewIssuer(log *slog.Logger, webhookURL string) *Issuer {
	return &Issuer{
		log:        log,
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: defaultTimeout},
	}
}

type Request struct {
	OrderID  string `json:"order_id"`
	DealerID string `json:"dealer_id"`
	Total    string `json:"total"`
}

func (i *Issuer) Issue(ctx context.Context, req Request) error {
	if i.webhookURL == "" {
		return nil
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := i.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("invoice webhook: status %d", resp.StatusCode)
	}
	return nil
}
