package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/factbot/internal/model"
)

// YooKassaGateway creates payments through the YooKassa REST API
type YooKassaGateway struct {
	client    *http.Client
	baseURL   string
	shopID    string
	secretKey string
	returnURL string
	currency  string
}

// NewYooKassaGateway creates a YooKassa gateway. A nil client uses a 30s timeout client.
func NewYooKassaGateway(config model.PaymentConfig, client *http.Client) (*YooKassaGateway, error) {
	if config.ShopID == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("yookassa shop id and secret key are required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = model.DefaultConfig().Payment.BaseURL
	}
	currency := config.Currency
	if currency == "" {
		currency = "RUB"
	}

	return &YooKassaGateway{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		shopID:    config.ShopID,
		secretKey: config.SecretKey,
		returnURL: config.ReturnURL,
		currency:  currency,
	}, nil
}

// Name returns the gateway name
func (g *YooKassaGateway) Name() string {
	return "yookassa"
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createPaymentRequest struct {
	Amount       amount            `json:"amount"`
	Confirmation confirmation      `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
}

type paymentObject struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Amount       amount            `json:"amount"`
	Confirmation confirmation      `json:"confirmation"`
	Metadata     map[string]string `json:"metadata"`
}

// CreatePayment registers a redirect payment for pkg
func (g *YooKassaGateway) CreatePayment(ctx context.Context, userID string, pkg model.Package) (*Payment, error) {
	body := createPaymentRequest{
		Amount: amount{
			Value:    fmt.Sprintf("%d.00", pkg.Price),
			Currency: g.currency,
		},
		Confirmation: confirmation{
			Type:      "redirect",
			ReturnURL: g.returnURL,
		},
		Capture:     true,
		Description: fmt.Sprintf("%d fact-check requests", pkg.Requests),
		Metadata: map[string]string{
			"user_id":  userID,
			"requests": strconv.Itoa(pkg.Requests),
			"package":  pkg.ID,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode payment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payments", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())

	obj, err := g.do(req)
	if err != nil {
		return nil, err
	}

	return &Payment{
		ID:              obj.ID,
		Status:          obj.Status,
		ConfirmationURL: obj.Confirmation.ConfirmationURL,
		UserID:          userID,
		PackageID:       pkg.ID,
		Requests:        pkg.Requests,
		Amount:          pkg.Price,
	}, nil
}

// GetPayment fetches a payment as recorded by YooKassa. User and request
// count come from the metadata set in CreatePayment.
func (g *YooKassaGateway) GetPayment(ctx context.Context, id string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/payments/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	obj, err := g.do(req)
	if err != nil {
		return nil, err
	}

	requests, _ := strconv.Atoi(obj.Metadata["requests"])
	price, _ := strconv.ParseFloat(obj.Amount.Value, 64)

	return &Payment{
		ID:        obj.ID,
		Status:    obj.Status,
		UserID:    obj.Metadata["user_id"],
		PackageID: obj.Metadata["package"],
		Requests:  requests,
		Amount:    int(price),
	}, nil
}

// do sends an authenticated request and decodes the payment object
func (g *YooKassaGateway) do(req *http.Request) (*paymentObject, error) {
	req.SetBasicAuth(g.shopID, g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yookassa request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPaymentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("yookassa API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var obj paymentObject
	if err := json.Unmarshal(respBody, &obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("yookassa response has no payment id")
	}
	return &obj, nil
}
