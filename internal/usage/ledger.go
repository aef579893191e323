package usage

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/factbot/internal/model"
)

var (
	// ErrDailyLimit is returned when the free quota is spent and the balance is empty
	ErrDailyLimit = errors.New("daily request limit reached")

	// ErrInsufficientBalance is returned when a paid operation costs more than the balance
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnknownPromo is returned for promo codes that do not exist
	ErrUnknownPromo = errors.New("promo code not found")
)

// Ledger tracks per-user request usage in memory. State is lost on restart.
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	config   model.UsageConfig
	now      func() time.Time
}

// NewLedger creates an empty ledger
func NewLedger(config model.UsageConfig) *Ledger {
	if config.DailyLimit < 0 {
		config.DailyLimit = 0
	}
	return &Ledger{
		accounts: make(map[string]*model.Account),
		config:   config,
		now:      time.Now,
	}
}

// Register creates the account if it does not exist and records the username
func (l *Ledger) Register(userID, username string) model.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(userID)
	if username != "" {
		acc.Username = username
	}
	return *acc
}

// Stats returns a snapshot of the user's account
func (l *Ledger) Stats(userID string) model.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	return *l.account(userID)
}

// Allow reports whether the user may make one more regular request
func (l *Ledger) Allow(userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(userID)
	if acc.DailyRequests < acc.DailyLimit || acc.Balance > 0 {
		return nil
	}
	return ErrDailyLimit
}

// Charge records a completed request. The free daily quota is used first,
// after that cost is deducted from the balance, never below zero.
func (l *Ledger) Charge(userID string, cost int) model.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(userID)
	if acc.DailyRequests >= acc.DailyLimit {
		acc.Balance -= cost
		if acc.Balance < 0 {
			acc.Balance = 0
		}
	}
	acc.DailyRequests++
	acc.TotalRequests++

	return *acc
}

// Reservation is a regular request charged ahead of the upstream call
type Reservation struct {
	UserID string
	Paid   bool // taken from the balance rather than the free quota
}

// Reserve checks and charges one regular request in a single step, so
// parallel requests cannot spend the same quota or balance twice. Call
// Release if the request does not complete.
func (l *Ledger) Reserve(userID string) (Reservation, model.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(userID)
	res := Reservation{UserID: userID}
	switch {
	case acc.DailyRequests < acc.DailyLimit:
	case acc.Balance > 0:
		acc.Balance--
		res.Paid = true
	default:
		return Reservation{}, *acc, ErrDailyLimit
	}
	acc.DailyRequests++
	acc.TotalRequests++

	return res, *acc, nil
}

// Release gives back a reservation whose request failed
func (l *Ledger) Release(res Reservation) model.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(res.UserID)
	if res.Paid {
		acc.Balance++
	}
	if acc.DailyRequests > 0 {
		acc.DailyRequests--
	}
	if acc.TotalRequests > 0 {
		acc.TotalRequests--
	}
	return *acc
}

// Credit adds purchased or refunded requests to the balance
func (l *Ledger) Credit(userID string, requests int) model.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(userID)
	if requests > 0 {
		acc.Balance += requests
	}
	return *acc
}

// ApplyPromo credits the requests bound to a promo code and returns how many were added
func (l *Ledger) ApplyPromo(userID, code string) (int, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	added, ok := l.lookupPromo(code)
	if !ok || added <= 0 {
		return 0, ErrUnknownPromo
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(userID)
	acc.Balance += added

	for _, resetCode := range l.config.DeepResearchResetCodes {
		if strings.EqualFold(resetCode, code) {
			acc.FreeDeepResearchUsed = false
		}
	}

	return added, nil
}

// CanUseFreeDeepResearch reports whether the one free deep research is still available
func (l *Ledger) CanUseFreeDeepResearch(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return !l.account(userID).FreeDeepResearchUsed
}

// ChargeDeepResearch pays for one deep research. The first one is free;
// later ones cost DeepResearchCost requests from the balance.
func (l *Ledger) ChargeDeepResearch(userID string) (free bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(userID)
	if !acc.FreeDeepResearchUsed {
		acc.FreeDeepResearchUsed = true
		acc.TotalRequests++
		return true, nil
	}

	if acc.Balance < l.config.DeepResearchCost {
		return false, ErrInsufficientBalance
	}

	acc.Balance -= l.config.DeepResearchCost
	acc.TotalRequests++
	return false, nil
}

// RefundDeepResearch reverses ChargeDeepResearch after a failed upstream call
func (l *Ledger) RefundDeepResearch(userID string, free bool) model.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.account(userID)
	if free {
		acc.FreeDeepResearchUsed = false
	} else {
		acc.Balance += l.config.DeepResearchCost
	}
	if acc.TotalRequests > 0 {
		acc.TotalRequests--
	}
	return *acc
}

// DeepResearchCost returns the price of a paid deep research in requests
func (l *Ledger) DeepResearchCost() int {
	return l.config.DeepResearchCost
}

// ResetDaily zeroes every user's daily counter
func (l *Ledger) ResetDaily() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := startOfDay(l.now())
	for _, acc := range l.accounts {
		acc.DailyRequests = 0
		acc.LastReset = today
	}
	return len(l.accounts)
}

// Len returns the number of known users
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.accounts)
}

// account returns the user's account, creating it and applying the lazy
// daily reset as needed. Callers must hold l.mu.
func (l *Ledger) account(userID string) *model.Account {
	today := startOfDay(l.now())

	acc, ok := l.accounts[userID]
	if !ok {
		acc = &model.Account{
			UserID:     userID,
			DailyLimit: l.config.DailyLimit,
			LastReset:  today,
		}
		l.accounts[userID] = acc
		return acc
	}

	if !acc.LastReset.Equal(today) {
		acc.DailyRequests = 0
		acc.LastReset = today
	}
	return acc
}

func (l *Ledger) lookupPromo(code string) (int, bool) {
	for k, v := range l.config.PromoCodes {
		if strings.EqualFold(k, code) {
			return v, true
		}
	}
	return 0, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
