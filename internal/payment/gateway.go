package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ppiankov/factbot/internal/model"
)

var (
	// ErrUnknownPackage is returned for package ids that are not on sale
	ErrUnknownPackage = errors.New("unknown package")

	// ErrPaymentNotFound is returned when the provider has no payment with the given id
	ErrPaymentNotFound = errors.New("payment not found")
)

// Payment statuses
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusCanceled  = "canceled"
)

// Payment is a created payment awaiting confirmation by the user
type Payment struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	ConfirmationURL string `json:"confirmation_url"`
	UserID          string `json:"user_id"`
	PackageID       string `json:"package"`
	Requests        int    `json:"requests"`
	Amount          int    `json:"amount"`
}

// Gateway creates payments for request packages
type Gateway interface {
	Name() string
	CreatePayment(ctx context.Context, userID string, pkg model.Package) (*Payment, error)
}

// FindPackage looks up a package by its id
func FindPackage(packages []model.Package, id string) (model.Package, error) {
	for _, p := range packages {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Package{}, fmt.Errorf("%w: %s", ErrUnknownPackage, id)
}

// NewGateway builds the configured payment gateway
func NewGateway(config model.PaymentConfig, client *http.Client) (Gateway, error) {
	switch strings.ToLower(config.Provider) {
	case "", "stub":
		return NewStubGateway(config.StubURL), nil

	case "yookassa":
		gw, err := NewYooKassaGateway(config, client)
		if err != nil {
			return nil, err
		}
		return gw, nil

	default:
		return nil, fmt.Errorf("unknown payment provider: %s (supported: stub, yookassa)", config.Provider)
	}
}

// StubGateway returns placeholder payments without contacting a provider
type StubGateway struct {
	url string
}

// NewStubGateway creates a stub gateway that points every payment at url
func NewStubGateway(url string) *StubGateway {
	if url == "" {
		url = model.DefaultConfig().Payment.StubURL
	}
	return &StubGateway{url: url}
}

// Name returns the gateway name
func (g *StubGateway) Name() string {
	return "stub"
}

// CreatePayment returns a pending payment stub-<user>-<amount>
func (g *StubGateway) CreatePayment(ctx context.Context, userID string, pkg model.Package) (*Payment, error) {
	return &Payment{
		ID:              fmt.Sprintf("stub-%s-%d", userID, pkg.Price),
		Status:          StatusPending,
		ConfirmationURL: g.url,
		UserID:          userID,
		PackageID:       pkg.ID,
		Requests:        pkg.Requests,
		Amount:          pkg.Price,
	}, nil
}
