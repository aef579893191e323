package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/factbot/internal/cache"
	"github.com/ppiankov/factbot/internal/metrics"
	"github.com/ppiankov/factbot/internal/model"
)

// Notification events
const (
	EventSucceeded = "payment.succeeded"
	EventCanceled  = "payment.canceled"
)

// dedupeTTL is how long a processed payment id is remembered
const dedupeTTL = 7 * 24 * time.Hour

var (
	// ErrDuplicate is returned for notifications that were already processed
	ErrDuplicate = errors.New("payment already processed")

	// ErrInvalidNotification is returned for notifications missing required fields
	ErrInvalidNotification = errors.New("invalid payment notification")
)

// Notification is the webhook body sent by the payment provider. Only the
// event and payment id are trusted; everything else is read back from the
// provider.
type Notification struct {
	Type   string        `json:"type"`
	Event  string        `json:"event"`
	Object paymentObject `json:"object"`
}

// Crediter adds purchased requests to a user's balance
type Crediter interface {
	Credit(userID string, requests int) model.Account
}

// Verifier looks a payment up at the provider
type Verifier interface {
	GetPayment(ctx context.Context, id string) (*Payment, error)
}

// NotificationHandler credits the ledger when a payment succeeds
type NotificationHandler struct {
	verifier Verifier
	ledger   Crediter
	seen     cache.Cache
	metrics  *metrics.Metrics
	logger   *zerolog.Logger

	// OnCredit is called after a successful credit, e.g. to notify the user
	OnCredit func(userID string, requests int, account model.Account)
}

// NewNotificationHandler creates a handler. verifier confirms every payment
// before it is credited; seen stores processed payment ids.
func NewNotificationHandler(verifier Verifier, ledger Crediter, seen cache.Cache, m *metrics.Metrics, logger *zerolog.Logger) *NotificationHandler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NotificationHandler{
		verifier: verifier,
		ledger:   ledger,
		seen:     seen,
		metrics:  m,
		logger:   logger,
	}
}

// Process applies a notification. A succeeded payment is fetched from the
// provider and credited exactly once per id, using the provider's record.
func (h *NotificationHandler) Process(ctx context.Context, n Notification) error {
	switch n.Event {
	case EventSucceeded:
	case EventCanceled:
		h.metrics.ObservePayment("canceled")
		h.logger.Info().Str("payment_id", n.Object.ID).Msg("payment canceled")
		return nil
	default:
		h.logger.Debug().Str("event", n.Event).Msg("ignoring payment event")
		return nil
	}

	id := n.Object.ID
	if id == "" {
		return fmt.Errorf("%w: missing payment id", ErrInvalidNotification)
	}

	key := cache.Key("payment", id)
	if _, ok := h.seen.Get(key); ok {
		h.metrics.ObservePayment("duplicate")
		return ErrDuplicate
	}

	p, err := h.verifier.GetPayment(ctx, id)
	if errors.Is(err, ErrPaymentNotFound) {
		h.metrics.ObservePayment("rejected")
		return fmt.Errorf("%w: payment %q is unknown to the provider", ErrInvalidNotification, id)
	}
	if err != nil {
		return fmt.Errorf("verify payment %q: %w", id, err)
	}

	if p.Status != StatusSucceeded {
		h.metrics.ObservePayment("rejected")
		return fmt.Errorf("%w: payment %q is %s", ErrInvalidNotification, id, p.Status)
	}
	if p.UserID == "" || p.Requests <= 0 {
		h.metrics.ObservePayment("rejected")
		return fmt.Errorf("%w: payment %q has no user or request count", ErrInvalidNotification, id)
	}

	if err := h.seen.Add(key, true, dedupeTTL); err != nil {
		h.metrics.ObservePayment("duplicate")
		return ErrDuplicate
	}

	account := h.ledger.Credit(p.UserID, p.Requests)
	h.metrics.ObservePayment("succeeded")
	h.logger.Info().
		Str("payment_id", id).
		Str("user_id", p.UserID).
		Int("requests", p.Requests).
		Int("balance", account.Balance).
		Msg("payment credited")

	if h.OnCredit != nil {
		h.OnCredit(p.UserID, p.Requests, account)
	}
	return nil
}

// ServeHTTP decodes a webhook notification and processes it
func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var n Notification
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&n); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	err := h.Process(r.Context(), n)
	switch {
	case err == nil, errors.Is(err, ErrDuplicate):
		// Duplicates are acknowledged so the provider stops retrying
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, ErrInvalidNotification):
		h.logger.Warn().Err(err).Msg("rejected payment notification")
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error().Err(err).Msg("payment notification failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
